// Package graph maintains the in-memory directed relationship graph over
// contact identifiers. The graph is a pure model: it never touches note
// text, and all mutations are idempotent upserts.
package graph

import (
	"sort"
	"sync"
	"time"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/relation"
)

type edgeKey struct {
	target string
	kind   relation.Kind
}

// Graph is the process-wide aggregate of contact nodes and typed edges.
// Nodes are stored in an id-keyed arena; edges reference ids, never node
// pointers, so arbitrary relationship cycles carry no ownership cycles.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*models.ContactNode
	edges map[string]map[edgeKey]time.Time
}

// MissingReciprocal reports an edge that should exist but does not:
// Source should gain an edge of Kind pointing at Target.
type MissingReciprocal struct {
	Source string        `json:"source"`
	Target string        `json:"target"`
	Kind   relation.Kind `json:"kind"`
}

// New returns an empty graph.
func New() *Graph {
	g := &Graph{}
	g.reset()
	return g
}

func (g *Graph) reset() {
	g.nodes = make(map[string]*models.ContactNode)
	g.edges = make(map[string]map[edgeKey]time.Time)
}

// Clear removes all nodes and edges (shutdown/reload).
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reset()
}

// AddContact upserts a node. The node is updated on every load and never
// independently destroyed; call RemoveContact when the owning note goes.
func (g *Graph) AddContact(id string, node *models.ContactNode) {
	if id == "" || node == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[id] = node
}

// Node returns the node for id, or nil.
func (g *Graph) Node(id string) *models.ContactNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// RemoveContact drops a node and every edge touching it.
func (g *Graph) RemoveContact(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.nodes, id)
	delete(g.edges, id)
	for _, out := range g.edges {
		for k := range out {
			if k.target == id {
				delete(out, k)
			}
		}
	}
}

// AddEdge upserts a directed edge. Kind must already be canonical and
// genderless; surface forms never reach the graph.
func (g *Graph) AddEdge(source, target string, kind relation.Kind) {
	if source == "" || target == "" || kind == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.edges[source]
	if out == nil {
		out = make(map[edgeKey]time.Time)
		g.edges[source] = out
	}
	k := edgeKey{target: target, kind: kind}
	if _, ok := out[k]; !ok {
		out[k] = time.Now()
	}
}

// RemoveEdge deletes a directed edge if present.
func (g *Graph) RemoveEdge(source, target string, kind relation.Kind) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.edges[source], edgeKey{target: target, kind: kind})
}

// HasEdge reports whether the exact directed edge exists.
func (g *Graph) HasEdge(source, target string, kind relation.Kind) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.edges[source][edgeKey{target: target, kind: kind}]
	return ok
}

// EdgesOf returns all outgoing edges of a contact, sorted by (kind, target).
func (g *Graph) EdgesOf(id string) []models.RelationshipEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]models.RelationshipEdge, 0, len(g.edges[id]))
	for k, at := range g.edges[id] {
		out = append(out, models.RelationshipEdge{
			Source:    id,
			Target:    k.target,
			Kind:      string(k.kind),
			CreatedAt: at,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// ReplaceEdges swaps a contact's full outgoing edge set in one call,
// used when a note is re-parsed from disk.
func (g *Graph) ReplaceEdges(source string, edges []models.RelationshipEdge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[edgeKey]time.Time, len(edges))
	for _, e := range edges {
		out[edgeKey{target: e.Target, kind: relation.Kind(e.Kind)}] = time.Now()
	}
	g.edges[source] = out
}

// Stats returns the node and edge counts.
func (g *Graph) Stats() (nodes, edges int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, out := range g.edges {
		edges += len(out)
	}
	return len(g.nodes), edges
}

// FindMissingReciprocals reports, for every edge (A, B, kind) whose kind
// has a defined reciprocal, the reciprocal edge (B, A, reciprocal) that
// does not exist anywhere in the graph. Kinds outside the closed set are
// skipped. Results are sorted for deterministic batch processing.
func (g *Graph) FindMissingReciprocals() []MissingReciprocal {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []MissingReciprocal
	for source, edges := range g.edges {
		for k := range edges {
			rk, ok := relation.ReciprocalOf(k.kind)
			if !ok {
				continue
			}
			if _, exists := g.edges[k.target][edgeKey{target: source, kind: rk}]; exists {
				continue
			}
			out = append(out, MissingReciprocal{Source: k.target, Target: source, Kind: rk})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		if out[i].Target != out[j].Target {
			return out[i].Target < out[j].Target
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// RepairReciprocals adds every missing reciprocal edge to the graph and
// returns the contacts that gained an edge, so the orchestrator can run a
// write-back pass on them. The graph itself never writes notes.
func (g *Graph) RepairReciprocals() []string {
	missing := g.FindMissingReciprocals()
	affected := make(map[string]struct{}, len(missing))
	for _, m := range missing {
		g.AddEdge(m.Source, m.Target, m.Kind)
		affected[m.Source] = struct{}{}
	}
	out := make([]string, 0, len(affected))
	for id := range affected {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
