package asset

import (
	"reflect"
	"strings"
	"testing"
)

func TestDiffIdenticalListsIsEmpty(t *testing.T) {
	list := []Entry{validEntry("a"), validEntry("b"), validEntry("c")}

	d := Diff(list, list)
	if !d.Empty() {
		t.Errorf("Diff(A, A) = %+v, want empty", d)
	}
}

func TestDiffAddedAndRemoved(t *testing.T) {
	baseline := []Entry{validEntry("a"), validEntry("b")}
	draft := []Entry{validEntry("a"), validEntry("c")}

	d := Diff(baseline, draft)
	if !reflect.DeepEqual(d.Added, []string{"c"}) {
		t.Errorf("Added = %v, want [c]", d.Added)
	}
	if !reflect.DeepEqual(d.Removed, []string{"b"}) {
		t.Errorf("Removed = %v, want [b]", d.Removed)
	}
}

func TestDiffUpdatedFieldNames(t *testing.T) {
	base := Entry{ID: "a", SHA256: digestA, Bytes: 100, Title: "One", Notes: "n", URL: "https://x/1"}
	changed := Entry{ID: "a", SHA256: digestB, Bytes: 200, Title: "Two", Notes: "n", URL: "https://x/2"}

	d := Diff([]Entry{base}, []Entry{changed})
	fields, ok := d.Updated["a"]
	if !ok {
		t.Fatal("entry a should be reported as updated")
	}

	want := []string{"title", "sha256", "bytes", "url"}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("changed fields = %v, want %v", fields, want)
	}
}

func TestDiffHashComparisonCaseInsensitive(t *testing.T) {
	base := validEntry("a")
	draft := base
	draft.SHA256 = strings.ToUpper(base.SHA256)

	d := Diff([]Entry{base}, []Entry{draft})
	if !d.Empty() {
		t.Errorf("case-only hash change should not count as updated: %+v", d)
	}
}

func TestDiffReordered(t *testing.T) {
	baseline := []Entry{validEntry("a"), validEntry("b"), validEntry("c")}
	draft := []Entry{validEntry("b"), validEntry("a"), validEntry("c")}

	d := Diff(baseline, draft)
	if !reflect.DeepEqual(d.Reordered, []string{"b", "a"}) {
		t.Errorf("Reordered = %v, want [b a]", d.Reordered)
	}
	if len(d.Updated) != 0 {
		t.Errorf("pure reorder should not mark updates: %v", d.Updated)
	}
}

func TestDiffReorderedIndependentOfUpdated(t *testing.T) {
	baseline := []Entry{validEntry("a"), validEntry("b")}
	moved := validEntry("b")
	moved.Title = "renamed"
	draft := []Entry{moved, validEntry("a")}

	d := Diff(baseline, draft)
	if !reflect.DeepEqual(d.Reordered, []string{"b", "a"}) {
		t.Errorf("Reordered = %v, want [b a]", d.Reordered)
	}
	if _, ok := d.Updated["b"]; !ok {
		t.Error("entry b should also be reported as updated")
	}
}

func TestDiffDeterministic(t *testing.T) {
	baseline := []Entry{validEntry("a"), validEntry("b"), validEntry("c")}
	draft := []Entry{validEntry("c"), validEntry("d")}

	first := Diff(baseline, draft)
	for i := 0; i < 10; i++ {
		if !reflect.DeepEqual(Diff(baseline, draft), first) {
			t.Fatal("diff of the same inputs varied between runs")
		}
	}
}
