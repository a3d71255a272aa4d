package api

import (
	"github.com/starford/othala/internal/contactservice"
	"github.com/starford/othala/internal/index"
)

// CreateContactRequest is the request body for creating a contact.
type CreateContactRequest struct {
	Name   string `json:"name" example:"Jane Doe" validate:"required"`
	Gender string `json:"gender,omitempty" example:"F"`
}

// UpdateContactRequest is the request body for updating a contact note.
type UpdateContactRequest struct {
	Content string `json:"content" example:"---\nFN: Jane Doe\n---\n# Jane Doe" validate:"required"`
}

// AddRelationshipRequest is the request body for adding a relationship.
type AddRelationshipRequest struct {
	Path   string `json:"path" example:"Jane Doe.md" validate:"required"`
	Kind   string `json:"kind" example:"friend" validate:"required"`
	Target string `json:"target" example:"Bob Smith" validate:"required"`
}

// ContactDetail is the full contact response type (aliased from the domain layer).
type ContactDetail = contactservice.ContactDetail

// ContactListItem is a lightweight item in a list response (aliased from the domain layer).
type ContactListItem = contactservice.ContactListItem

// ContactListResponse wraps paginated contact listings.
type ContactListResponse struct {
	Contacts []ContactListItem `json:"contacts" validate:"required"`
	Total    int               `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// GraphResponse wraps the relationship graph.
type GraphResponse struct {
	Nodes []contactservice.GraphNode `json:"nodes" validate:"required"`
	Edges []contactservice.GraphEdge `json:"edges" validate:"required"`
}

// GraphStatsResponse carries graph size counters.
type GraphStatsResponse struct {
	Nodes int `json:"nodes" example:"120" validate:"required"`
	Edges int `json:"edges" example:"340" validate:"required"`
}

// SyncResponse reports the outcome of a consistency pass.
type SyncResponse struct {
	Processed int      `json:"processed" example:"3" validate:"required"`
	Errors    []string `json:"errors,omitempty"`
}
