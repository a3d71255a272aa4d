// Package namespace parses and builds the three reference encodings used
// to point at a related contact: urn:uuid:, uid:, and name:.
package namespace

import (
	"regexp"
	"strings"

	"github.com/starford/othala/internal/models"
)

// RefType tags the encoding of a reference value.
type RefType string

// Reference encodings, in order of preference when serializing.
const (
	RefUUID RefType = "urn:uuid"
	RefUID  RefType = "uid"
	RefName RefType = "name"
)

// Ref is a parsed reference to a related contact.
type Ref struct {
	Type  RefType
	Value string
}

var uuidShape = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// Parse recognizes the three reference prefixes and returns nil for
// anything else. Bare names without a prefix are intentionally invalid in
// the frontmatter encoding; the markdown codec handles those separately.
func Parse(value string) *Ref {
	v := strings.TrimSpace(value)
	switch {
	case strings.HasPrefix(v, "urn:uuid:"):
		id := v[len("urn:uuid:"):]
		if id == "" {
			return nil
		}
		return &Ref{Type: RefUUID, Value: id}
	case strings.HasPrefix(v, "uid:"):
		id := v[len("uid:"):]
		if id == "" {
			return nil
		}
		return &Ref{Type: RefUID, Value: id}
	case strings.HasPrefix(v, "name:"):
		id := v[len("name:"):]
		if id == "" {
			return nil
		}
		return &Ref{Type: RefName, Value: id}
	default:
		return nil
	}
}

// Build serializes a reference to a contact. UUID-shaped identifiers get
// the urn:uuid: prefix, other non-blank identifiers get uid:, and name: is
// the fallback when no stable identifier is known.
func Build(identifier, displayName string) string {
	id := strings.TrimSpace(identifier)
	switch {
	case uuidShape.MatchString(id):
		return "urn:uuid:" + id
	case id != "":
		return "uid:" + id
	default:
		return "name:" + displayName
	}
}

// IsUUID reports whether id has the canonical UUID shape.
func IsUUID(id string) bool {
	return uuidShape.MatchString(strings.TrimSpace(id))
}

// Lookup locates contacts by stable identifier or display name.
// Implementations return nil (not an error) when nothing matches.
type Lookup interface {
	ByUID(uid string) *models.ContactNode
	ByName(name string) *models.ContactNode
}

// Resolve dispatches a reference to the appropriate lookup. A nil result
// means the reference is unresolved; callers must treat that as a valid
// name-only relationship, not an error.
func Resolve(ref *Ref, lk Lookup) *models.ContactNode {
	if ref == nil || lk == nil {
		return nil
	}
	switch ref.Type {
	case RefUUID, RefUID:
		return lk.ByUID(ref.Value)
	case RefName:
		return lk.ByName(ref.Value)
	default:
		return nil
	}
}
