package asset

import "strings"

// DiffResult partitions a draft manifest against a baseline. Added,
// Removed and Reordered hold entry ids; Updated maps ids to the names
// of the fields that changed. The diff is purely structural: it never
// inspects authorship or timestamps, and the same two lists always
// produce the same result.
type DiffResult struct {
	Added     []string
	Removed   []string
	Reordered []string
	Updated   map[string][]string
}

// Empty reports whether the draft is identical to the baseline.
func (d DiffResult) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 &&
		len(d.Reordered) == 0 && len(d.Updated) == 0
}

// Diff computes the structural difference between the last-broadcast
// baseline and a draft entry list. For each draft entry: an id absent
// from the baseline is added; otherwise title, notes, sha256, bytes and
// url are compared field by field and the changed field names recorded
// as updated. An entry whose index differs between baseline and draft
// is reordered, independent of its update status. Baseline ids absent
// from the draft are removed.
func Diff(baseline, draft []Entry) DiffResult {
	result := DiffResult{Updated: make(map[string][]string)}

	baseIndex := make(map[string]int, len(baseline))
	for i, e := range baseline {
		baseIndex[e.ID] = i
	}

	draftIDs := make(map[string]struct{}, len(draft))
	for i, e := range draft {
		draftIDs[e.ID] = struct{}{}

		basePos, ok := baseIndex[e.ID]
		if !ok {
			result.Added = append(result.Added, e.ID)
			continue
		}

		if fields := changedFields(baseline[basePos], e); len(fields) > 0 {
			result.Updated[e.ID] = fields
		}
		if basePos != i {
			result.Reordered = append(result.Reordered, e.ID)
		}
	}

	for _, e := range baseline {
		if _, ok := draftIDs[e.ID]; !ok {
			result.Removed = append(result.Removed, e.ID)
		}
	}

	return result
}

// changedFields returns the names of content fields that differ between
// two entries with the same id. Hash comparison is case-insensitive to
// match validation.
func changedFields(base, draft Entry) []string {
	var fields []string
	if base.Title != draft.Title {
		fields = append(fields, "title")
	}
	if base.Notes != draft.Notes {
		fields = append(fields, "notes")
	}
	if !strings.EqualFold(base.SHA256, draft.SHA256) {
		fields = append(fields, "sha256")
	}
	if base.Bytes != draft.Bytes {
		fields = append(fields, "bytes")
	}
	if base.URL != draft.URL {
		fields = append(fields, "url")
	}
	return fields
}
