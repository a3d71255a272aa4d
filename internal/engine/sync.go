package engine

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/othala/internal/contact"
	"github.com/starford/othala/internal/frontmatter"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/namespace"
	"github.com/starford/othala/internal/related"
	"github.com/starford/othala/internal/relation"
	"github.com/starford/othala/internal/relset"
)

// mdEntry is one markdown list item normalized for reconciliation: the
// canonical kind, the original surface term (kept for gender inference),
// and the frontmatter value it maps to. alt is the name-form spelling of
// the same target, so a resolved value never duplicates an existing
// name-only frontmatter entry.
type mdEntry struct {
	kind    relation.Kind
	term    string
	display string
	target  *models.ContactNode
	value   string
	alt     string
}

// SyncFromMarkdown reconciles the markdown Related list of one note into
// its frontmatter. By default the pass is add-only: entries present in
// markdown but missing from frontmatter are appended, nothing is removed.
// The revision field is bumped only when the note actually changes.
// Reciprocal relationships are then propagated to resolved target contacts
// unless opts.PreventCascade is set.
//
// A locked or externally claimed file is a silent no-op.
func (e *Engine) SyncFromMarkdown(path string, opts SyncOptions) error {
	if e.claims.IsClaimed(path) || !e.tryLock(path) {
		return nil
	}
	defer e.unlock(path)

	data, err := e.store.Read(path)
	if err != nil {
		return fmt.Errorf("engine: read %s: %w", path, err)
	}

	c := contact.ParseNote(path, data)
	if c.Record == nil {
		c.Record = make(map[string]any)
	}
	lk := index.Lookup{DB: e.db}

	entries := e.normalizeMarkdown(c, lk)

	var (
		added   []relset.Entry
		terms   = make(map[string]string)
		changed bool
	)
	if opts.FullReplace {
		desired := relset.New()
		for _, m := range entries {
			desired.Add(m.kind, m.value)
		}
		diff := c.Fields.DiffAgainst(desired)
		added = diff.Added
		patch, remove := frontmatter.ReplaceAll(c.Record, desired)
		changed = frontmatter.Apply(c.Record, patch, remove)
	} else {
		for _, m := range entries {
			if c.Fields.Contains(m.kind, m.value) || c.Fields.Contains(m.kind, m.alt) {
				continue
			}
			if hasEntry(added, m.kind, m.value) {
				continue
			}
			added = append(added, relset.Entry{Kind: m.kind, Value: m.value})
		}
		patch := frontmatter.AllocateKeys(c.Record, added)
		changed = frontmatter.Apply(c.Record, patch, nil)
	}
	for _, m := range entries {
		terms[string(m.kind)+"\x00"+m.value] = m.term
	}

	if changed {
		frontmatter.Touch(c.Record, time.Now())
		if err := e.writeNote(path, c.Record, c.Body); err != nil {
			return err
		}
	} else {
		// No text change; still refresh the graph from the parsed state.
		e.refreshGraph(c, lk)
	}

	if !opts.PreventCascade {
		for _, a := range added {
			term := terms[string(a.Kind)+"\x00"+a.Value]
			e.propagateReciprocal(c, a, term, lk)
		}
	}
	return nil
}

// normalizeMarkdown resolves each Related list item to a namespaced
// frontmatter value. Unresolved names stay in name: form; that is a valid
// relationship, never an error.
func (e *Engine) normalizeMarkdown(c *contact.Contact, lk namespace.Lookup) []mdEntry {
	out := make([]mdEntry, 0, len(c.Related.Items))
	for _, it := range c.Related.Items {
		m := mdEntry{
			kind:    relation.BaseKind(it.Kind),
			term:    it.Kind,
			display: it.Target,
			alt:     "name:" + it.Target,
		}
		if node := lk.ByName(it.Target); node != nil && !strings.HasPrefix(node.ID, "name:") {
			m.target = node
			m.value = namespace.Build(node.ID, node.Name)
		} else {
			m.target = node
			m.value = m.alt
		}
		out = append(out, m)
	}
	return out
}

// propagateReciprocal writes the reverse relationship onto the target
// contact's note: the reciprocal kind into frontmatter, a re-rendered
// Related section, and an inferred gender when the markdown term implies
// one and the target has none recorded. Skips silently when the target is
// name-only, locked, or claimed.
func (e *Engine) propagateReciprocal(origin *contact.Contact, entry relset.Entry, term string, lk namespace.Lookup) {
	rk, ok := relation.ReciprocalOf(entry.Kind)
	if !ok {
		return
	}

	target := namespace.Resolve(namespace.Parse(entry.Value), lk)
	if target == nil || target.Path == "" || target.Path == origin.Path {
		return
	}

	// The gendered term describes the target ("father [[Bob]]" implies
	// Bob is male), applied only when the target has no recorded gender.
	inferred := models.GenderUnset
	if g, ok := relation.InferGender(term); ok {
		inferred = g
	}

	if err := e.writeReciprocal(target.Path, origin, rk, inferred); err != nil {
		e.logger.Warn("engine: reciprocal write failed",
			slog.String("path", target.Path),
			slog.String("error", err.Error()))
	}
}

// writeReciprocal patches one target note with a reciprocal entry pointing
// back at origin.
func (e *Engine) writeReciprocal(path string, origin *contact.Contact, rk relation.Kind, inferred models.Gender) error {
	if e.claims.IsClaimed(path) || !e.tryLock(path) {
		return nil
	}
	defer e.unlock(path)

	data, err := e.store.Read(path)
	if err != nil {
		return fmt.Errorf("engine: read %s: %w", path, err)
	}
	tc := contact.ParseNote(path, data)
	if tc.Record == nil {
		tc.Record = make(map[string]any)
	}
	lk := index.Lookup{DB: e.db}

	// Fold the target's own markdown items into its frontmatter first, so
	// re-rendering the section below cannot drop a relationship the user
	// listed but no sync pass has reconciled yet.
	var pending []relset.Entry
	for _, m := range e.normalizeMarkdown(tc, lk) {
		if tc.Fields.Contains(m.kind, m.value) || tc.Fields.Contains(m.kind, m.alt) {
			continue
		}
		if hasEntry(pending, m.kind, m.value) {
			continue
		}
		pending = append(pending, relset.Entry{Kind: m.kind, Value: m.value})
	}
	changed := frontmatter.Apply(tc.Record, frontmatter.AllocateKeys(tc.Record, pending), nil)

	value := namespace.Build(origin.UID, origin.Node.Name)
	alt := "name:" + origin.Node.Name

	if !tc.Fields.Contains(rk, value) && !tc.Fields.Contains(rk, alt) && !hasItem(tc.Related.Items, rk, origin.Node.Name) {
		patch := frontmatter.AllocateKeys(tc.Record, []relset.Entry{{Kind: rk, Value: value}})
		changed = frontmatter.Apply(tc.Record, patch, nil) || changed
	}
	if inferred != models.GenderUnset && frontmatter.StringField(tc.Record, frontmatter.FieldGender) == "" {
		tc.Record[frontmatter.FieldGender] = string(inferred)
		changed = true
	}

	// The graph gains the reciprocal edge regardless of whether the note
	// needed text changes; edge upserts are idempotent.
	e.graph.AddEdge(tc.Node.ID, origin.Node.ID, rk)

	if !changed {
		return nil
	}
	frontmatter.Touch(tc.Record, time.Now())
	body := e.renderRelatedBody(tc, frontmatter.DecodeRelated(tc.Record), lk)
	return e.writeNote(path, tc.Record, body)
}

// SyncFromFrontMatter renders the Related section from the note's
// frontmatter relationships (targets resolved to display names, kinds
// rendered in the target's gendered form) and writes the body only when
// the rendered content differs. Claimed and locked files are skipped.
func (e *Engine) SyncFromFrontMatter(path string) error {
	if e.claims.IsClaimed(path) || !e.tryLock(path) {
		return nil
	}
	defer e.unlock(path)

	data, err := e.store.Read(path)
	if err != nil {
		return fmt.Errorf("engine: read %s: %w", path, err)
	}
	c := contact.ParseNote(path, data)
	if c.Record == nil {
		c.Record = make(map[string]any)
	}
	lk := index.Lookup{DB: e.db}

	body := e.renderRelatedBody(c, c.Fields, lk)
	if body == c.Body {
		e.refreshGraph(c, lk)
		return nil
	}
	frontmatter.Touch(c.Record, time.Now())
	return e.writeNote(path, c.Record, body)
}

// renderRelatedBody produces the note body with a canonical Related
// section rendered from set. When the set is empty and the note never had
// a Related section, the body is returned untouched rather than gaining an
// empty heading.
func (e *Engine) renderRelatedBody(c *contact.Contact, set *relset.Set, lk namespace.Lookup) string {
	items := make([]related.Item, 0, set.Size())
	for _, entry := range set.Entries() {
		ref := namespace.Parse(entry.Value)
		node := namespace.Resolve(ref, lk)

		display := entry.Value
		gender := models.GenderUnset
		if node != nil {
			display = node.Name
			gender = node.Gender
		} else if ref != nil {
			display = ref.Value
		}
		items = append(items, related.Item{
			Kind:   relation.GenderedForm(entry.Kind, gender),
			Target: display,
		})
	}
	if len(items) == 0 && !c.Related.Found {
		return c.Body
	}
	return related.InjectInto(c.Body, related.Encode(items))
}

// EnsureConsistency repairs every missing reciprocal edge in the graph and
// writes the repaired relationships back to the affected notes. Per-note
// failures are accumulated; the batch always completes. Returns the count
// of contacts written back successfully alongside the failures.
func (e *Engine) EnsureConsistency() (processed int, errs []error) {
	for _, id := range e.graph.RepairReciprocals() {
		if err := e.writeBack(id); err != nil {
			e.logger.Warn("engine: write-back failed",
				slog.String("contact", id),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		processed++
	}
	return processed, errs
}

// writeBack makes one contact's note reflect every outgoing graph edge,
// add-only. Name-only contacts have no note and are skipped.
func (e *Engine) writeBack(id string) error {
	node := e.graph.Node(id)
	if node == nil || node.Path == "" {
		return nil
	}
	path := node.Path
	if e.claims.IsClaimed(path) || !e.tryLock(path) {
		return nil
	}
	defer e.unlock(path)

	data, err := e.store.Read(path)
	if err != nil {
		return fmt.Errorf("engine: read %s: %w", path, err)
	}
	c := contact.ParseNote(path, data)
	if c.Record == nil {
		c.Record = make(map[string]any)
	}
	lk := index.Lookup{DB: e.db}

	var added []relset.Entry
	for _, edge := range e.graph.EdgesOf(id) {
		kind := relation.Kind(edge.Kind)
		value, alt := e.edgeValue(edge.Target)
		if c.Fields.Contains(kind, value) || (alt != "" && c.Fields.Contains(kind, alt)) {
			continue
		}
		if hasEntry(added, kind, value) {
			continue
		}
		added = append(added, relset.Entry{Kind: kind, Value: value})
	}

	patch := frontmatter.AllocateKeys(c.Record, added)
	if !frontmatter.Apply(c.Record, patch, nil) {
		return nil
	}
	frontmatter.Touch(c.Record, time.Now())
	body := e.renderRelatedBody(c, frontmatter.DecodeRelated(c.Record), lk)
	return e.writeNote(path, c.Record, body)
}

// edgeValue serializes a graph target id as a frontmatter value, plus the
// name-form alternative spelling when the target is a known contact.
func (e *Engine) edgeValue(targetID string) (value, alt string) {
	if strings.HasPrefix(targetID, "name:") {
		return targetID, ""
	}
	if tn := e.graph.Node(targetID); tn != nil {
		return namespace.Build(targetID, tn.Name), "name:" + tn.Name
	}
	return namespace.Build(targetID, ""), ""
}

// RebuildGraph clears the graph and reloads every contact note from the
// vault. Per-note read failures are logged and skipped.
func (e *Engine) RebuildGraph() error {
	metas, err := e.store.List("")
	if err != nil {
		return fmt.Errorf("engine: list vault: %w", err)
	}
	e.graph.Clear()
	lk := index.Lookup{DB: e.db}
	for _, m := range metas {
		data, err := e.store.Read(m.Path)
		if err != nil {
			e.logger.Warn("engine: rebuild read failed",
				slog.String("path", m.Path),
				slog.String("error", err.Error()))
			continue
		}
		c := contact.ParseNote(m.Path, data)
		e.refreshGraph(c, lk)
	}
	nodes, edges := e.graph.Stats()
	e.logger.Info("engine: graph rebuilt",
		slog.Int("nodes", nodes), slog.Int("edges", edges))
	return nil
}

// writeNote renders and writes a note, reindexes it, refreshes the graph
// from the written state, and emits the change event.
func (e *Engine) writeNote(path string, record map[string]any, body string) error {
	data, err := frontmatter.Render(record, body)
	if err != nil {
		return err
	}
	if err := e.store.Write(path, data); err != nil {
		return fmt.Errorf("engine: write %s: %w", path, err)
	}
	if err := index.IndexNote(e.db, path, data); err != nil {
		e.logger.Warn("engine: reindex failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
	e.refreshGraph(contact.ParseNote(path, data), index.Lookup{DB: e.db})
	if e.event != nil {
		e.event("updated", path)
	}
	return nil
}

// refreshGraph upserts a parsed contact and its full outgoing edge set.
func (e *Engine) refreshGraph(c *contact.Contact, lk namespace.Lookup) {
	node := c.Node
	e.graph.AddContact(node.ID, &node)
	e.graph.ReplaceEdges(node.ID, c.Edges(lk))
}

func hasEntry(entries []relset.Entry, kind relation.Kind, value string) bool {
	for _, e := range entries {
		if e.Kind == kind && e.Value == value {
			return true
		}
	}
	return false
}

func hasItem(items []related.Item, kind relation.Kind, target string) bool {
	for _, it := range items {
		if relation.BaseKind(it.Kind) == kind && strings.EqualFold(it.Target, target) {
			return true
		}
	}
	return false
}
