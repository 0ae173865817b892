package asset

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Entry describes one audio asset in a facilitator-authored manifest.
// Identity is the ID; entries are immutable once broadcast, and a new
// manifest fully replaces the previous one.
type Entry struct {
	ID     string `json:"id"`
	SHA256 string `json:"sha256"`
	Bytes  int64  `json:"bytes"`
	Title  string `json:"title,omitempty"`
	Notes  string `json:"notes,omitempty"`
	URL    string `json:"url,omitempty"`
}

// sha256Pattern matches a 64-digit hex digest, case-insensitively.
var sha256Pattern = regexp.MustCompile(`(?i)^[a-f0-9]{64}$`)

// ValidationIssue reports one problem found in a draft manifest. Index
// and ID locate the offending entry; a global issue (such as duplicate
// ids across the draft) uses Index -1.
type ValidationIssue struct {
	Index   int
	ID      string
	Field   string
	Message string
}

// String renders the issue for diagnostics.
func (v ValidationIssue) String() string {
	if v.Index < 0 {
		return fmt.Sprintf("manifest: %s", v.Message)
	}
	return fmt.Sprintf("entry %d (%q) %s: %s", v.Index, v.ID, v.Field, v.Message)
}

// ValidationIssues is the accumulated set of problems in a draft.
type ValidationIssues []ValidationIssue

// Error implements the error interface, joining all issues.
func (v ValidationIssues) Error() string {
	parts := make([]string, len(v))
	for i, issue := range v {
		parts[i] = issue.String()
	}
	return strings.Join(parts, "; ")
}

// Err returns the issues as an error, or nil when the draft is valid.
// A non-nil result blocks sending the manifest.
func (v ValidationIssues) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Validate checks a draft entry list and accumulates every problem it
// finds rather than stopping at the first. Per-entry checks: non-empty
// id, well-formed sha256, positive byte count, and http(s) url when a
// url is present. Duplicate ids across the draft are reported once as a
// single global issue listing the offending ids.
func Validate(draft []Entry) ValidationIssues {
	var issues ValidationIssues

	seen := make(map[string]int)
	for i, e := range draft {
		if e.ID == "" {
			issues = append(issues, ValidationIssue{
				Index: i, ID: e.ID, Field: "id",
				Message: "id must not be empty",
			})
		} else {
			seen[e.ID]++
		}

		if !sha256Pattern.MatchString(e.SHA256) {
			issues = append(issues, ValidationIssue{
				Index: i, ID: e.ID, Field: "sha256",
				Message: "must be a 64-digit hex SHA-256",
			})
		}

		if e.Bytes <= 0 {
			issues = append(issues, ValidationIssue{
				Index: i, ID: e.ID, Field: "bytes",
				Message: "must be a positive byte count",
			})
		}

		if e.URL != "" && !strings.HasPrefix(e.URL, "http://") && !strings.HasPrefix(e.URL, "https://") {
			issues = append(issues, ValidationIssue{
				Index: i, ID: e.ID, Field: "url",
				Message: "must start with http:// or https://",
			})
		}
	}

	var dups []string
	for id, count := range seen {
		if count > 1 {
			dups = append(dups, id)
		}
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		issues = append(issues, ValidationIssue{
			Index: -1, Field: "id",
			Message: fmt.Sprintf("duplicate ids: %s", strings.Join(dups, ", ")),
		})
	}

	return issues
}
