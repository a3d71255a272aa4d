package index

import (
	"github.com/starford/othala/internal/contact"
	"github.com/starford/othala/internal/models"
)

// Lookup adapts the index to the namespace.Lookup collaborator interface.
// Misses and query errors both surface as nil: an unresolved reference is
// a valid name-only relationship, not a failure.
type Lookup struct {
	DB *DB
}

func rowToNode(c *ContactRow) *models.ContactNode {
	if c == nil {
		return nil
	}
	return &models.ContactNode{
		ID:     contact.DeriveID(c.UID, c.Name),
		Name:   c.Name,
		Gender: models.Gender(c.Gender),
		Path:   c.Path,
	}
}

// ByUID returns the contact with the given UID, or nil.
func (l Lookup) ByUID(uid string) *models.ContactNode {
	c, err := l.DB.ByUID(uid)
	if err != nil {
		return nil
	}
	return rowToNode(c)
}

// ByName returns the contact with the given display name, or nil.
func (l Lookup) ByName(name string) *models.ContactNode {
	c, err := l.DB.ByName(name)
	if err != nil {
		return nil
	}
	return rowToNode(c)
}
