// Package contact parses a vault note into a contact: identity fields,
// the frontmatter relationship set, and the markdown Related section.
package contact

import (
	"path/filepath"
	"strings"

	"github.com/starford/othala/internal/frontmatter"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/namespace"
	"github.com/starford/othala/internal/related"
	"github.com/starford/othala/internal/relation"
	"github.com/starford/othala/internal/relset"
)

// Contact is one parsed contact note.
type Contact struct {
	Path    string
	Record  map[string]any
	Body    string
	UID     string // raw UID field, may be empty
	Node    models.ContactNode
	Fields  *relset.Set     // relationships from frontmatter
	Related related.Section // relationships from the body
}

// ParseNote decodes a note into a Contact. It never fails: notes without
// frontmatter or without a Related section are still contacts.
func ParseNote(path string, data []byte) *Contact {
	record, body := frontmatter.Split(data)

	name := frontmatter.StringField(record, frontmatter.FieldName)
	if name == "" {
		name = firstHeading(body)
	}
	if name == "" {
		name = pathStem(path)
	}

	uid := frontmatter.StringField(record, frontmatter.FieldUID)
	gender := models.Gender(frontmatter.StringField(record, frontmatter.FieldGender))

	return &Contact{
		Path:   path,
		Record: record,
		Body:   body,
		UID:    uid,
		Node: models.ContactNode{
			ID:     DeriveID(uid, name),
			Name:   name,
			Gender: gender,
			Path:   path,
		},
		Fields:  frontmatter.DecodeRelated(record),
		Related: related.Decode(body),
	}
}

// DeriveID returns the stable graph identifier for a contact: the UID when
// known, otherwise a name-derived key. The same derivation is used for
// relationship targets that resolve to no note, so both sides of a
// name-only relationship land on the same node.
func DeriveID(uid, name string) string {
	if uid = strings.TrimSpace(uid); uid != "" {
		return uid
	}
	return "name:" + strings.TrimSpace(name)
}

// TargetID converts a frontmatter reference value to a graph identifier,
// consulting lk for name references when available.
func TargetID(ref *namespace.Ref, lk namespace.Lookup) string {
	if ref == nil {
		return ""
	}
	if node := namespace.Resolve(ref, lk); node != nil {
		return node.ID
	}
	switch ref.Type {
	case namespace.RefUUID, namespace.RefUID:
		return ref.Value
	default:
		return DeriveID("", ref.Value)
	}
}

// Edges returns the union of both representations as canonical graph
// edges, resolving targets through lk where possible.
func (c *Contact) Edges(lk namespace.Lookup) []models.RelationshipEdge {
	seen := make(map[string]struct{})
	var out []models.RelationshipEdge

	add := func(kind relation.Kind, target string) {
		if target == "" || kind == "" {
			return
		}
		key := string(kind) + "\x00" + target
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, models.RelationshipEdge{
			Source: c.Node.ID,
			Target: target,
			Kind:   string(kind),
		})
	}

	for _, e := range c.Fields.Entries() {
		add(e.Kind, TargetID(namespace.Parse(e.Value), lk))
	}
	for _, it := range c.Related.Items {
		kind := relation.BaseKind(it.Kind)
		if node := lookupByName(lk, it.Target); node != nil {
			add(kind, node.ID)
		} else {
			add(kind, DeriveID("", it.Target))
		}
	}
	return out
}

func lookupByName(lk namespace.Lookup, name string) *models.ContactNode {
	if lk == nil {
		return nil
	}
	return lk.ByName(name)
}

// firstHeading returns the text of the first H1 heading in body.
func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// pathStem returns the note filename without directory or extension.
func pathStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
