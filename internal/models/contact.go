// Package models defines the domain types for Othala.
package models

import "time"

// Gender is a contact's recorded gender, following the vCard GENDER
// component values. The zero value means "not recorded".
type Gender string

// Gender values.
const (
	GenderUnset     Gender = ""
	GenderMale      Gender = "M"
	GenderFemale    Gender = "F"
	GenderNonBinary Gender = "NB"
	GenderUnknown   Gender = "U"
)

// ContactNode is the identity of one contact in the relationship graph.
// ID is the stable identifier: the UID frontmatter field when the contact
// has one, otherwise a name-derived key. Path is a back-reference to the
// backing note (relative to the vault root); it is empty for contacts that
// are only known by name from someone else's relationship list.
type ContactNode struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Gender Gender `json:"gender,omitempty"`
	Path   string `json:"path,omitempty"`
}

// RelationshipEdge is a directed, typed edge between two contacts.
// Kind is always a canonical genderless relationship kind; gendered
// surface forms ("father", "aunt") are a presentation concern only.
type RelationshipEdge struct {
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// ContactMetadata is a lightweight representation returned by list operations.
type ContactMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
