// Package frontmatter splits and renders the YAML frontmatter block of a
// contact note and maps RELATED* keys to relationship entries, including
// tolerance for the malformed shapes older writers produced.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/othala/internal/relation"
	"github.com/starford/othala/internal/relset"
)

// Well-known structured field names (vCard-derived).
const (
	FieldUID    = "UID"
	FieldName   = "FN"
	FieldGender = "GENDER"
	FieldRev    = "REV"
)

// RevFormat is the timestamp layout of the REV revision field.
const RevFormat = "20060102T150405Z"

const delim = "---"

// Split separates YAML frontmatter (between leading --- delimiters) from
// the note body. If no frontmatter is found, or the YAML block does not
// parse, the entire content is body and the record is nil.
func Split(data []byte) (map[string]any, string) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var record map[string]any
	if err := yaml.Unmarshal(yamlBlock, &record); err != nil {
		return nil, string(data)
	}
	return record, body
}

// Render serializes a record and body back into note content. An empty
// record renders as body only.
func Render(record map[string]any, body string) ([]byte, error) {
	if len(record) == 0 {
		return []byte(body), nil
	}
	y, err := yaml.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("frontmatter: marshal: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(y)
	buf.WriteString(delim + "\n")
	if body != "" {
		buf.WriteString("\n")
		buf.WriteString(body)
	}
	return buf.Bytes(), nil
}

// DecodeRelated extracts all relationship entries from a record. Flat
// string values go through relset.FromFrontMatter semantics; a RELATED key
// whose value is a map (the dot-path shape after a YAML layer nested it)
// expands each string-valued property as kind "<parentKind>.<property>",
// or just "<property>" when the parent key carried no kind. Non-string
// nested values are silently skipped.
func DecodeRelated(record map[string]any) *relset.Set {
	s := relset.New()
	for key, raw := range record {
		parentKind, ok := relset.ParseKey(key)
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case string:
			if parentKind == "" {
				continue
			}
			s.Add(relation.BaseKind(string(parentKind)), v)
		case map[string]any:
			for prop, nested := range v {
				nv, ok := nested.(string)
				if !ok {
					continue
				}
				kind := prop
				if parentKind != "" {
					kind = string(parentKind) + "." + prop
				}
				s.Add(relation.BaseKind(kind), nv)
			}
		}
	}
	return s
}

// AllocateKeys computes the minimal add-only patch that inserts the given
// entries into a record: existing RELATED* keys are never touched, and
// each new entry takes the lowest free index slot for its kind (bare key
// first, then [1:kind], [2:kind], ...).
func AllocateKeys(record map[string]any, added []relset.Entry) map[string]string {
	used := make(map[relation.Kind]map[int]bool)
	mark := func(kind relation.Kind, idx int) {
		if used[kind] == nil {
			used[kind] = make(map[int]bool)
		}
		used[kind][idx] = true
	}

	for key := range record {
		kind, ok := relset.ParseKey(key)
		if !ok || kind == "" {
			continue
		}
		canonical := relation.BaseKind(string(kind))
		idx := 0
		if i := strings.Index(key, "["); i >= 0 {
			inner := strings.TrimSuffix(key[i+1:], "]")
			if j := strings.Index(inner, ":"); j >= 0 {
				fmt.Sscanf(inner[:j], "%d", &idx)
			}
		}
		mark(canonical, idx)
	}

	patch := make(map[string]string, len(added))
	for _, e := range added {
		idx := 0
		for used[e.Kind][idx] {
			idx++
		}
		mark(e.Kind, idx)
		if idx == 0 {
			patch[fmt.Sprintf("RELATED[%s]", e.Kind)] = e.Value
		} else {
			patch[fmt.Sprintf("RELATED[%d:%s]", idx, e.Kind)] = e.Value
		}
	}
	return patch
}

// ReplaceAll computes the full-replacement patch for a record: the
// canonical rendering of set, plus the list of stale RELATED* keys to
// delete. Keys already holding the canonical value are omitted from the
// patch so an unchanged record produces an empty one.
func ReplaceAll(record map[string]any, set *relset.Set) (patch map[string]string, remove []string) {
	want := set.ToFrontMatterFields()
	patch = make(map[string]string, len(want))
	for key, value := range want {
		if cur, ok := record[key].(string); ok && cur == value {
			continue
		}
		patch[key] = value
	}
	for key := range record {
		if _, ok := relset.ParseKey(key); !ok {
			continue
		}
		if _, keep := want[key]; !keep {
			remove = append(remove, key)
		}
	}
	return patch, remove
}

// Apply mutates record with a patch and key removals, returning true when
// anything actually changed. The caller only bumps REV on a real change.
func Apply(record map[string]any, patch map[string]string, remove []string) bool {
	changed := false
	for key, value := range patch {
		if cur, ok := record[key].(string); ok && cur == value {
			continue
		}
		record[key] = value
		changed = true
	}
	for _, key := range remove {
		if _, ok := record[key]; ok {
			delete(record, key)
			changed = true
		}
	}
	return changed
}

// StringField returns the trimmed string value of a field, or "".
func StringField(record map[string]any, key string) string {
	if record == nil {
		return ""
	}
	if v, ok := record[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// Touch stamps the REV field with the current revision timestamp.
func Touch(record map[string]any, now time.Time) {
	record[FieldRev] = now.UTC().Format(RevFormat)
}
