package asset

import (
	"strings"
	"testing"
)

const (
	digestA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	digestB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func validEntry(id string) Entry {
	return Entry{ID: id, SHA256: digestA, Bytes: 1024}
}

func TestValidateAcceptsValidDraft(t *testing.T) {
	draft := []Entry{
		{ID: "intro", SHA256: digestA, Bytes: 100, Title: "Intro", URL: "https://example.com/intro.wav"},
		{ID: "drone", SHA256: strings.ToUpper(digestB), Bytes: 5000},
	}

	if issues := Validate(draft); len(issues) != 0 {
		t.Errorf("valid draft produced issues: %v", issues)
	}
}

func TestValidateAccumulatesAllIssues(t *testing.T) {
	draft := []Entry{
		{ID: "", SHA256: "nothex", Bytes: 0},
		{ID: "ok", SHA256: digestA, Bytes: 10, URL: "ftp://example.com/x"},
	}

	issues := Validate(draft)
	// Entry 0: empty id, bad sha256, non-positive bytes. Entry 1: bad
	// url scheme. All four reported in one pass.
	if len(issues) != 4 {
		t.Fatalf("got %d issues, want 4: %v", len(issues), issues)
	}

	fields := map[string]int{}
	for _, issue := range issues {
		fields[issue.Field]++
	}
	for _, f := range []string{"id", "sha256", "bytes", "url"} {
		if fields[f] == 0 {
			t.Errorf("no issue reported for field %q", f)
		}
	}
}

func TestValidateSHA256Shape(t *testing.T) {
	tests := []struct {
		sha   string
		valid bool
	}{
		{digestA, true},
		{strings.ToUpper(digestA), true},
		{digestA[:63], false},
		{digestA + "a", false},
		{strings.Replace(digestA, "a", "g", 1), false},
		{"", false},
	}

	for _, tt := range tests {
		draft := []Entry{{ID: "x", SHA256: tt.sha, Bytes: 1}}
		issues := Validate(draft)
		if tt.valid && len(issues) != 0 {
			t.Errorf("sha %q rejected: %v", tt.sha, issues)
		}
		if !tt.valid && len(issues) == 0 {
			t.Errorf("sha %q accepted", tt.sha)
		}
	}
}

func TestValidateDuplicateIDsReportedOnceGlobally(t *testing.T) {
	draft := []Entry{
		validEntry("b"),
		validEntry("a"),
		validEntry("b"),
		validEntry("a"),
		validEntry("a"),
	}

	issues := Validate(draft)
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want exactly 1 global duplicate issue: %v", len(issues), issues)
	}

	issue := issues[0]
	if issue.Index != -1 {
		t.Errorf("duplicate issue index = %d, want -1", issue.Index)
	}
	// Duplicated ids are listed sorted.
	if issue.Message != "duplicate ids: a, b" {
		t.Errorf("duplicate message = %q", issue.Message)
	}
}

func TestValidationIssuesErr(t *testing.T) {
	var none ValidationIssues
	if err := none.Err(); err != nil {
		t.Errorf("empty issues should yield nil error, got %v", err)
	}

	issues := Validate([]Entry{{ID: "", SHA256: digestA, Bytes: 1}})
	err := issues.Err()
	if err == nil {
		t.Fatal("issues should yield a non-nil error")
	}
	if !strings.Contains(err.Error(), "id") {
		t.Errorf("error %q does not mention the offending field", err.Error())
	}
}
