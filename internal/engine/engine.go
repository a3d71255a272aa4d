// Package engine is the sync orchestrator: it keeps a contact note's two
// textual relationship representations and the in-memory graph mutually
// consistent, materializes reciprocal relationships on other contacts, and
// guards against the feedback loop its own writes would otherwise cause.
package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/starford/othala/internal/graph"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/storage"
)

// DefaultDebounceWindow coalesces rapid change notifications for one file.
const DefaultDebounceWindow = time.Second

// EventFunc is notified after the engine writes a note. kind is "updated".
type EventFunc func(kind, path string)

// SyncOptions tunes one sync pass.
type SyncOptions struct {
	// FullReplace makes the markdown list authoritative: frontmatter
	// entries absent from the list are removed. The default is add-only,
	// which never drops frontmatter entries.
	FullReplace bool
	// PreventCascade disables reciprocal propagation to target contacts.
	PreventCascade bool
}

// Engine coordinates storage, the SQLite index, and the relationship graph.
// Per-file processing is serialized by a lock set: a trigger for a locked
// file is dropped, not queued, which is safe because the in-progress pass
// observes the latest on-disk state.
type Engine struct {
	store  storage.Provider
	db     *index.DB
	graph  *graph.Graph
	claims *Claims
	logger *slog.Logger
	window time.Duration
	event  EventFunc

	// noPropagate turns off reciprocal writes for debounced passes.
	noPropagate bool

	mu     sync.Mutex
	locks  map[string]struct{}
	timers map[string]*time.Timer
}

// Option configures an Engine.
type Option func(*Engine)

// WithDebounceWindow overrides the change-coalescing window.
func WithDebounceWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.window = d
		}
	}
}

// WithClaims injects a shared claims registry so external importers and the
// engine agree on file ownership.
func WithClaims(c *Claims) Option {
	return func(e *Engine) {
		if c != nil {
			e.claims = c
		}
	}
}

// WithEventFunc registers a callback invoked after each engine write.
func WithEventFunc(fn EventFunc) Option {
	return func(e *Engine) { e.event = fn }
}

// WithPropagation controls whether debounced sync passes materialize
// reciprocal relationships on target contacts. Enabled by default.
func WithPropagation(enabled bool) Option {
	return func(e *Engine) { e.noPropagate = !enabled }
}

// New builds an Engine over the given collaborators.
func New(store storage.Provider, db *index.DB, g *graph.Graph, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		db:     db,
		graph:  g,
		claims: NewClaims(),
		logger: logger,
		window: DefaultDebounceWindow,
		locks:  make(map[string]struct{}),
		timers: make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleChange debounces a change notification for path: rapid repeated
// triggers within the window collapse into one SyncFromMarkdown pass.
func (e *Engine) HandleChange(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.timers[path]; ok {
		t.Reset(e.window)
		return
	}
	e.timers[path] = time.AfterFunc(e.window, func() {
		e.mu.Lock()
		delete(e.timers, path)
		e.mu.Unlock()
		if err := e.SyncFromMarkdown(path, SyncOptions{PreventCascade: e.noPropagate}); err != nil {
			e.logger.Warn("engine: sync failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	})
}

// CancelAll stops every pending debounced sync (shutdown).
func (e *Engine) CancelAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for path, t := range e.timers {
		t.Stop()
		delete(e.timers, path)
	}
}

// tryLock acquires the per-file processing lock, returning false when the
// file is already being processed.
func (e *Engine) tryLock(path string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.locks[path]; ok {
		return false
	}
	e.locks[path] = struct{}{}
	return true
}

func (e *Engine) unlock(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.locks, path)
}

// MarkFileAsUpdating lets an external subsystem claim exclusive ownership
// of a file; sync passes skip it until unmarked.
func (e *Engine) MarkFileAsUpdating(path string) { e.claims.Claim(path) }

// UnmarkFileAsUpdating releases an external ownership claim.
func (e *Engine) UnmarkFileAsUpdating(path string) { e.claims.Release(path) }

// IsFileBeingUpdated reports whether an external subsystem owns the file.
func (e *Engine) IsFileBeingUpdated(path string) bool { return e.claims.IsClaimed(path) }

// GraphStats returns the node and edge counts of the relationship graph.
func (e *Engine) GraphStats() (nodes, edges int) {
	return e.graph.Stats()
}
