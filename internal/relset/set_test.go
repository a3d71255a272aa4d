package relset

import (
	"testing"

	"github.com/starford/othala/internal/relation"
)

func TestAdd_BlankAndPlaceholderRejected(t *testing.T) {
	s := New()
	for _, v := range []string{"", "   ", "null", "NULL", "undefined", " Undefined "} {
		if s.Add(relation.Friend, v) {
			t.Errorf("Add(friend, %q) should be a no-op", v)
		}
	}
	if s.Size() != 0 {
		t.Errorf("size = %d, want 0", s.Size())
	}
}

func TestAdd_Deduplicates(t *testing.T) {
	s := New()
	s.Add(relation.Friend, "name:Alice")
	s.Add(relation.Friend, "name:Bob")
	s.Add(relation.Friend, "name:Alice")
	if s.Size() != 2 {
		t.Errorf("size = %d, want 2", s.Size())
	}
}

func TestEntries_Sorted(t *testing.T) {
	s := New()
	s.Add(relation.Parent, "name:Zed")
	s.Add(relation.Child, "name:Amy")
	s.Add(relation.Parent, "name:Ann")

	got := s.Entries()
	want := []Entry{
		{relation.Child, "name:Amy"},
		{relation.Parent, "name:Ann"},
		{relation.Parent, "name:Zed"},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestToFrontMatterFields_NoGaps(t *testing.T) {
	s := New()
	s.Add(relation.Friend, "name:Alice")
	s.Add(relation.Friend, "name:Bob")
	s.Add(relation.Friend, "name:Carol")
	s.Remove(relation.Friend, "name:Bob")

	fields := s.ToFrontMatterFields()
	if len(fields) != 2 {
		t.Fatalf("len(fields) = %d, want 2", len(fields))
	}
	if fields["RELATED[friend]"] != "name:Alice" {
		t.Errorf("bare key = %q", fields["RELATED[friend]"])
	}
	// Removal re-compacts: Carol takes index 1, no gap at 2.
	if fields["RELATED[1:friend]"] != "name:Carol" {
		t.Errorf("RELATED[1:friend] = %q, want name:Carol", fields["RELATED[1:friend]"])
	}
	if _, ok := fields["RELATED[2:friend]"]; ok {
		t.Error("unexpected gap-preserving key RELATED[2:friend]")
	}
}

func TestFromFrontMatter_AcceptedForms(t *testing.T) {
	record := map[string]any{
		"RELATED[friend]":    "name:Alice",
		"RELATED[1:friend]":  "name:Bob",
		"RELATED;TYPE=child": "name:Carol",
		"RELATED.spouse":     "name:Dave",
		"RELATED[mother]":    "name:Eve", // gendered key normalizes to parent
		"FN":                 "Me",
		"RELATED[x]":         42, // non-string skipped
	}
	s := FromFrontMatter(record)
	if s.Size() != 5 {
		t.Fatalf("size = %d, want 5: %+v", s.Size(), s.Entries())
	}
	if !s.Contains(relation.Friend, "name:Alice") || !s.Contains(relation.Friend, "name:Bob") {
		t.Error("bracket forms not decoded")
	}
	if !s.Contains(relation.Child, "name:Carol") {
		t.Error("TYPE= form not decoded")
	}
	if !s.Contains(relation.Spouse, "name:Dave") {
		t.Error("dot form not decoded")
	}
	if !s.Contains(relation.Parent, "name:Eve") {
		t.Error("gendered key should normalize to canonical kind")
	}
}

func TestFromFrontMatter_FiltersPlaceholders(t *testing.T) {
	record := map[string]any{
		"RELATED[friend]":   "null",
		"RELATED[1:friend]": "",
		"RELATED[2:friend]": "undefined",
		"RELATED[3:friend]": "name:Real",
	}
	s := FromFrontMatter(record)
	if s.Size() != 1 {
		t.Errorf("size = %d, want 1", s.Size())
	}
}

func TestParseKey(t *testing.T) {
	cases := []struct {
		key  string
		kind relation.Kind
		ok   bool
	}{
		{"RELATED[friend]", "friend", true},
		{"RELATED[2:parent]", "parent", true},
		{"RELATED;TYPE=spouse", "spouse", true},
		{"RELATED.child", "child", true},
		{"RELATED", "", true},
		{"RELATED[]", "", false},
		{"UNRELATED[friend]", "", false},
		{"FN", "", false},
	}
	for _, c := range cases {
		kind, ok := ParseKey(c.key)
		if ok != c.ok || kind != c.kind {
			t.Errorf("ParseKey(%q) = (%q, %v), want (%q, %v)", c.key, kind, ok, c.kind, c.ok)
		}
	}
}

func TestDiffAgainst(t *testing.T) {
	current := FromEntries([]Entry{
		{relation.Friend, "name:Alice"},
		{relation.Parent, "name:Jane"},
	})
	desired := FromEntries([]Entry{
		{relation.Friend, "name:Alice"},
		{relation.Friend, "name:Bob"},
	})

	d := current.DiffAgainst(desired)
	if len(d.Added) != 1 || d.Added[0] != (Entry{relation.Friend, "name:Bob"}) {
		t.Errorf("Added = %+v", d.Added)
	}
	if len(d.Removed) != 1 || d.Removed[0] != (Entry{relation.Parent, "name:Jane"}) {
		t.Errorf("Removed = %+v", d.Removed)
	}
}
