// Package relset implements the deduplicated, deterministically ordered
// collection of (kind, target) relationship entries for one contact, and
// the mapping between that collection and RELATED* frontmatter keys.
package relset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starford/othala/internal/relation"
)

// Entry is one (kind, target value) relationship pair. Kind is always
// canonical and genderless; Value is a namespaced reference string.
type Entry struct {
	Kind  relation.Kind `json:"kind"`
	Value string        `json:"value"`
}

// Diff is the exact-pair symmetric difference between two sets.
type Diff struct {
	Added   []Entry
	Removed []Entry
}

// Set holds relationship entries with no two entries sharing both kind and
// value. Iteration order is always sorted by (kind, value).
type Set struct {
	entries map[string]Entry
}

// New returns an empty set.
func New() *Set {
	return &Set{entries: make(map[string]Entry)}
}

// FromEntries builds a set from pairs, collapsing exact duplicates and
// dropping blank or placeholder values.
func FromEntries(pairs []Entry) *Set {
	s := New()
	for _, p := range pairs {
		s.Add(p.Kind, p.Value)
	}
	return s
}

// FromFrontMatter scans a frontmatter record for RELATED* keys and builds
// a set from their string values. Non-string values are skipped here; the
// frontmatter codec handles the malformed nested-object shape.
func FromFrontMatter(record map[string]any) *Set {
	s := New()
	for key, raw := range record {
		kind, ok := ParseKey(key)
		if !ok || kind == "" {
			continue
		}
		if v, ok := raw.(string); ok {
			s.Add(relation.BaseKind(string(kind)), v)
		}
	}
	return s
}

// ParseKey extracts the kind from a RELATED frontmatter key. Accepted
// forms: RELATED, RELATED[kind], RELATED[index:kind], RELATED;TYPE=kind,
// and RELATED.kind. The bare form returns an empty kind with ok=true so
// that callers can still recognize the key as relationship-bearing.
func ParseKey(key string) (relation.Kind, bool) {
	const prefix = "RELATED"
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	rest := key[len(prefix):]
	switch {
	case rest == "":
		return "", true
	case strings.HasPrefix(rest, "[") && strings.HasSuffix(rest, "]"):
		inner := rest[1 : len(rest)-1]
		if i := strings.Index(inner, ":"); i >= 0 {
			inner = inner[i+1:]
		}
		inner = strings.TrimSpace(inner)
		if inner == "" {
			return "", false
		}
		return relation.Kind(inner), true
	case strings.HasPrefix(rest, ";TYPE="):
		kind := strings.TrimSpace(rest[len(";TYPE="):])
		if kind == "" {
			return "", false
		}
		return relation.Kind(kind), true
	case strings.HasPrefix(rest, "."):
		kind := strings.TrimSpace(rest[1:])
		if kind == "" {
			return "", false
		}
		return relation.Kind(kind), true
	default:
		return "", false
	}
}

// isPlaceholder reports whether a target value must never be stored:
// blank strings and the literal "null"/"undefined" artifacts.
func isPlaceholder(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	return v == "" || v == "null" || v == "undefined"
}

func entryKey(kind relation.Kind, value string) string {
	return string(kind) + "\x00" + value
}

// Add inserts a (kind, value) pair. It is a no-op for blank or placeholder
// values and for pairs already present. Returns true when the set grew.
func (s *Set) Add(kind relation.Kind, value string) bool {
	if isPlaceholder(value) {
		return false
	}
	value = strings.TrimSpace(value)
	k := entryKey(kind, value)
	if _, ok := s.entries[k]; ok {
		return false
	}
	s.entries[k] = Entry{Kind: kind, Value: value}
	return true
}

// Remove deletes an exact (kind, value) pair. Returns true when a pair
// was removed.
func (s *Set) Remove(kind relation.Kind, value string) bool {
	k := entryKey(kind, strings.TrimSpace(value))
	if _, ok := s.entries[k]; !ok {
		return false
	}
	delete(s.entries, k)
	return true
}

// RemoveFunc deletes every entry for which pred returns true and reports
// how many entries were removed.
func (s *Set) RemoveFunc(pred func(Entry) bool) int {
	n := 0
	for k, e := range s.entries {
		if pred(e) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// Contains reports whether the exact (kind, value) pair is present.
func (s *Set) Contains(kind relation.Kind, value string) bool {
	_, ok := s.entries[entryKey(kind, strings.TrimSpace(value))]
	return ok
}

// Size returns the number of entries.
func (s *Set) Size() int {
	return len(s.entries)
}

// Entries returns all entries sorted by (kind, value).
func (s *Set) Entries() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// DiffAgainst compares s (the current state) with other (the desired
// state): Added holds entries present in other but not in s, Removed the
// entries present in s but not in other.
func (s *Set) DiffAgainst(other *Set) Diff {
	var d Diff
	for _, e := range other.Entries() {
		if !s.Contains(e.Kind, e.Value) {
			d.Added = append(d.Added, e)
		}
	}
	for _, e := range s.Entries() {
		if !other.Contains(e.Kind, e.Value) {
			d.Removed = append(d.Removed, e)
		}
	}
	return d
}

// ToFrontMatterFields renders the set as canonical frontmatter keys. The
// first entry of a kind uses the bare RELATED[kind] key; subsequent
// entries use RELATED[1:kind], RELATED[2:kind], and so on with no gaps.
// Indices are assigned by output position, never preserved from input, so
// removals always re-compact the remaining slots.
func (s *Set) ToFrontMatterFields() map[string]string {
	out := make(map[string]string, len(s.entries))
	counts := make(map[relation.Kind]int)
	for _, e := range s.Entries() {
		n := counts[e.Kind]
		counts[e.Kind] = n + 1
		if n == 0 {
			out[fmt.Sprintf("RELATED[%s]", e.Kind)] = e.Value
		} else {
			out[fmt.Sprintf("RELATED[%d:%s]", n, e.Kind)] = e.Value
		}
	}
	return out
}
