// Package contactservice coordinates storage, index, and engine operations
// for the API and MCP surfaces.
package contactservice

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/contact"
	"github.com/starford/othala/internal/engine"
	"github.com/starford/othala/internal/frontmatter"
	"github.com/starford/othala/internal/graph"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/related"
	"github.com/starford/othala/internal/storage"
)

// ContactDetail is the full representation of a contact note.
type ContactDetail struct {
	Path          string             `json:"path"`
	UID           string             `json:"uid,omitempty"`
	Name          string             `json:"name"`
	Gender        string             `json:"gender,omitempty"`
	Content       string             `json:"content"`
	Checksum      string             `json:"checksum"`
	Relationships []RelationshipItem `json:"relationships"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// RelationshipItem is one outgoing relationship of a contact.
type RelationshipItem struct {
	Kind       string `json:"kind"`
	Target     string `json:"target"`
	TargetName string `json:"target_name,omitempty"`
}

// ContactListItem is a lightweight item in a list response.
type ContactListItem struct {
	Path      string    `json:"path"`
	UID       string    `json:"uid,omitempty"`
	Name      string    `json:"name"`
	Gender    string    `json:"gender,omitempty"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GraphNode is one contact in the graph response.
type GraphNode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// GraphEdge is one relationship in the graph response.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
}

// Service coordinates the vault, the index, the graph, and the sync engine.
type Service struct {
	store storage.Provider
	db    *index.DB
	graph *graph.Graph
	eng   *engine.Engine
}

// NewService creates a new contact service.
func NewService(store storage.Provider, db *index.DB, g *graph.Graph, eng *engine.Engine) *Service {
	return &Service{store: store, db: db, graph: g, eng: eng}
}

// GetContact reads a contact note and enriches it with its relationships.
func (s *Service) GetContact(_ context.Context, path string) (*ContactDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return s.buildDetail(path, data), nil
}

// CreateContact writes a new contact note with a generated UID and indexes
// it. name is required; gender is optional.
func (s *Service) CreateContact(_ context.Context, name, gender string) (*ContactDetail, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.ErrInvalid
	}
	path := contactPath(name)
	if _, err := s.store.Read(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}

	record := map[string]any{
		frontmatter.FieldUID:  uuid.NewString(),
		frontmatter.FieldName: name,
	}
	if gender != "" {
		record[frontmatter.FieldGender] = gender
	}
	frontmatter.Touch(record, time.Now())

	data, err := frontmatter.Render(record, "# "+name+"\n")
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(path, data); err != nil {
		return nil, err
	}
	if err := index.IndexNote(s.db, path, data); err != nil {
		return nil, err
	}
	if err := s.eng.SyncFromFrontMatter(path); err != nil {
		return nil, err
	}
	return s.GetContact(context.Background(), path)
}

// UpdateContact writes updated note content with optimistic concurrency,
// then runs a sync pass so relationship edits propagate.
func (s *Service) UpdateContact(_ context.Context, path string, content []byte, ifMatch string) (*ContactDetail, error) {
	if s.eng.IsFileBeingUpdated(path) {
		return nil, apperr.ErrClaimed
	}
	existing, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := index.IndexNote(s.db, path, content); err != nil {
		return nil, err
	}
	if err := s.eng.SyncFromMarkdown(path, engine.SyncOptions{}); err != nil {
		return nil, err
	}
	return s.GetContact(context.Background(), path)
}

// DeleteContact removes a contact from storage, index, and graph.
func (s *Service) DeleteContact(_ context.Context, path string) error {
	row, err := s.db.ByPath(path)
	if err != nil {
		return err
	}
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	if err := s.db.DeleteContact(path); err != nil {
		return err
	}
	if row != nil {
		s.graph.RemoveContact(contact.DeriveID(row.UID, row.Name))
	}
	return nil
}

// ListContacts returns paginated contacts.
func (s *Service) ListContacts(_ context.Context, limit, offset int, sort string) ([]ContactListItem, int, error) {
	rows, total, err := s.db.ListContacts(limit, offset, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]ContactListItem, len(rows))
	for i, r := range rows {
		items[i] = ContactListItem{
			Path:      r.Path,
			UID:       r.UID,
			Name:      r.Name,
			Gender:    r.Gender,
			Checksum:  r.Checksum,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates contact search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Graph returns all contacts and relationship edges for visualization.
func (s *Service) Graph(_ context.Context) ([]GraphNode, []GraphEdge, error) {
	rows, _, err := s.db.ListContacts(500, 0, "name")
	if err != nil {
		return nil, nil, err
	}
	nodes := make([]GraphNode, len(rows))
	for i, r := range rows {
		nodes[i] = GraphNode{
			ID:   contact.DeriveID(r.UID, r.Name),
			Name: r.Name,
			Path: r.Path,
		}
	}
	edgeRows, err := s.db.GraphEdges()
	if err != nil {
		return nil, nil, err
	}
	edges := make([]GraphEdge, len(edgeRows))
	for i, e := range edgeRows {
		edges[i] = GraphEdge{Source: e.Source, Target: e.Target, Kind: e.Kind}
	}
	return nodes, edges, nil
}

// GraphStats returns node and edge counts from the in-memory graph.
func (s *Service) GraphStats(_ context.Context) (nodes, edges int) {
	return s.eng.GraphStats()
}

// Relationships returns the outgoing relationships of one contact, union
// of both note representations.
func (s *Service) Relationships(_ context.Context, path string) ([]RelationshipItem, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return s.relationshipsOf(path, data), nil
}

// AddRelationship appends a relationship line to the contact's Related
// section and runs a sync pass, which normalizes it into frontmatter and
// materializes the reciprocal on the target.
func (s *Service) AddRelationship(_ context.Context, path, kind, target string) (*ContactDetail, error) {
	kind = strings.TrimSpace(kind)
	target = strings.TrimSpace(target)
	if kind == "" || target == "" {
		return nil, apperr.ErrInvalid
	}
	if s.eng.IsFileBeingUpdated(path) {
		return nil, apperr.ErrClaimed
	}

	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	c := contact.ParseNote(path, data)

	items := append([]related.Item{}, c.Related.Items...)
	items = append(items, related.Item{Kind: kind, Target: target})
	body := related.InjectInto(c.Body, related.Encode(items))

	updated, err := frontmatter.Render(c.Record, body)
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(path, updated); err != nil {
		return nil, err
	}
	if err := index.IndexNote(s.db, path, updated); err != nil {
		return nil, err
	}
	if err := s.eng.SyncFromMarkdown(path, engine.SyncOptions{}); err != nil {
		return nil, err
	}
	return s.GetContact(context.Background(), path)
}

// SyncAll rebuilds the graph from the vault and repairs every missing
// reciprocal relationship. Returns the write-back count and any per-note
// failures.
func (s *Service) SyncAll(_ context.Context) (processed int, errs []error) {
	if err := s.eng.RebuildGraph(); err != nil {
		return 0, []error{err}
	}
	return s.eng.EnsureConsistency()
}

func (s *Service) buildDetail(path string, data []byte) *ContactDetail {
	c := contact.ParseNote(path, data)
	return &ContactDetail{
		Path:          path,
		UID:           c.UID,
		Name:          c.Node.Name,
		Gender:        string(c.Node.Gender),
		Content:       string(data),
		Checksum:      checksum.Sum(data),
		Relationships: s.relationshipsOf(path, data),
		UpdatedAt:     time.Now(),
	}
}

func (s *Service) relationshipsOf(path string, data []byte) []RelationshipItem {
	c := contact.ParseNote(path, data)
	lk := index.Lookup{DB: s.db}
	edges := c.Edges(lk)
	items := make([]RelationshipItem, len(edges))
	for i, e := range edges {
		item := RelationshipItem{Kind: e.Kind, Target: e.Target}
		if node := nodeByID(lk, e.Target); node != nil {
			item.TargetName = node.Name
		} else if strings.HasPrefix(e.Target, "name:") {
			item.TargetName = strings.TrimPrefix(e.Target, "name:")
		}
		items[i] = item
	}
	return items
}

func nodeByID(lk index.Lookup, id string) *models.ContactNode {
	if strings.HasPrefix(id, "name:") {
		return lk.ByName(strings.TrimPrefix(id, "name:"))
	}
	return lk.ByUID(id)
}

// contactPath derives the vault path of a new contact note from its name.
func contactPath(name string) string {
	return strings.ReplaceAll(name, "/", "-") + ".md"
}
