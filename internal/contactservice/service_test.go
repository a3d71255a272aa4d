package contactservice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/engine"
	"github.com/starford/othala/internal/graph"
	"github.com/starford/othala/internal/storage"
	"github.com/starford/othala/internal/testutil"
)

func testService(t *testing.T) (*Service, storage.Provider) {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	g := graph.New()
	eng := engine.New(store, db, g, logger,
		engine.WithDebounceWindow(10*time.Millisecond))
	return NewService(store, db, g, eng), store
}

func TestCreateContact(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	c, err := svc.CreateContact(ctx, "Jane Doe", "F")
	if err != nil {
		t.Fatal(err)
	}
	if c.Path != "Jane Doe.md" {
		t.Errorf("path = %q, want Jane Doe.md", c.Path)
	}
	if c.UID == "" {
		t.Error("created contact should have a generated UID")
	}
	if c.Gender != "F" {
		t.Errorf("gender = %q, want F", c.Gender)
	}
	if !strings.Contains(c.Content, "FN: Jane Doe") {
		t.Errorf("content missing FN field:\n%s", c.Content)
	}
	if !strings.Contains(c.Content, "REV:") {
		t.Errorf("content missing REV stamp:\n%s", c.Content)
	}
}

func TestCreateContact_Duplicate(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.CreateContact(ctx, "Jane", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateContact(ctx, "Jane", ""); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate create error = %v, want ErrAlreadyExists", err)
	}
}

func TestCreateContact_EmptyName(t *testing.T) {
	svc, _ := testService(t)
	if _, err := svc.CreateContact(context.Background(), "  ", ""); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("empty name error = %v, want ErrInvalid", err)
	}
}

func TestUpdateContact_OptimisticLocking(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	c, err := svc.CreateContact(ctx, "Jane", "")
	if err != nil {
		t.Fatal(err)
	}

	updated := strings.Replace(c.Content, "# Jane", "# Jane\n\nBio.", 1)
	if _, err := svc.UpdateContact(ctx, c.Path, []byte(updated), "stale-checksum"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale checksum error = %v, want ErrConflict", err)
	}

	c2, err := svc.UpdateContact(ctx, c.Path, []byte(updated), c.Checksum)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(c2.Content, "Bio.") {
		t.Error("update with matching checksum should be applied")
	}
}

func TestUpdateContact_ClaimedFile(t *testing.T) {
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	eng := engine.New(store, db, graph.New(), logger)
	svc := NewService(store, db, graph.New(), eng)
	ctx := context.Background()

	c, err := svc.CreateContact(ctx, "Jane", "")
	if err != nil {
		t.Fatal(err)
	}

	eng.MarkFileAsUpdating(c.Path)
	if _, err := svc.UpdateContact(ctx, c.Path, []byte(c.Content), c.Checksum); !errors.Is(err, apperr.ErrClaimed) {
		t.Errorf("claimed update error = %v, want ErrClaimed", err)
	}

	eng.UnmarkFileAsUpdating(c.Path)
	if _, err := svc.UpdateContact(ctx, c.Path, []byte(c.Content), c.Checksum); err != nil {
		t.Errorf("update after release failed: %v", err)
	}
}

func TestGetContact_NotFound(t *testing.T) {
	svc, _ := testService(t)
	if _, err := svc.GetContact(context.Background(), "missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestAddRelationship_MaterializesReciprocal(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()

	if _, err := svc.CreateContact(ctx, "Alice", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateContact(ctx, "Bob", ""); err != nil {
		t.Fatal(err)
	}

	c, err := svc.AddRelationship(ctx, "Alice.md", "parent", "Bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Relationships) != 1 || c.Relationships[0].Kind != "parent" {
		t.Fatalf("alice relationships = %+v, want one parent entry", c.Relationships)
	}

	// Bob gained the reciprocal child entry in both representations.
	data, err := store.Read("Bob.md")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "RELATED[child]") {
		t.Errorf("bob note missing reciprocal frontmatter entry:\n%s", data)
	}

	items, err := svc.Relationships(ctx, "Bob.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Kind != "child" || items[0].TargetName != "Alice" {
		t.Errorf("bob relationships = %+v, want one child entry targeting Alice", items)
	}
}

func TestAddRelationship_GenderedTerm(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()

	if _, err := svc.CreateContact(ctx, "Alice", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateContact(ctx, "Bob", ""); err != nil {
		t.Fatal(err)
	}

	// "father" normalizes to parent and implies Bob is male.
	if _, err := svc.AddRelationship(ctx, "Alice.md", "father", "Bob"); err != nil {
		t.Fatal(err)
	}

	data, err := store.Read("Bob.md")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "GENDER: M") {
		t.Errorf("bob note missing inferred gender:\n%s", data)
	}
}

func TestDeleteContact(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.CreateContact(ctx, "Jane", ""); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteContact(ctx, "Jane.md"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetContact(ctx, "Jane.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("deleted contact should be gone, got %v", err)
	}
	if err := svc.DeleteContact(ctx, "Jane.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestListContacts(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	for _, name := range []string{"Alice", "Bob", "Carol"} {
		if _, err := svc.CreateContact(ctx, name, ""); err != nil {
			t.Fatal(err)
		}
	}

	items, total, err := svc.ListContacts(ctx, 2, 0, "name")
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(items) != 2 || items[0].Name != "Alice" || items[1].Name != "Bob" {
		t.Errorf("page = %+v, want Alice then Bob", items)
	}
}

func TestSyncAll_RepairsReciprocals(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()

	alice := "---\nUID: uid-alice\nFN: Alice\nRELATED[friend]: \"uid:uid-bob\"\n---\n# Alice\n"
	bob := "---\nUID: uid-bob\nFN: Bob\n---\n# Bob\n"
	_ = store.Write("alice.md", []byte(alice))
	_ = store.Write("bob.md", []byte(bob))

	processed, errs := svc.SyncAll(ctx)
	if len(errs) > 0 {
		t.Fatalf("sync failures: %v", errs)
	}
	if processed != 1 {
		t.Errorf("processed = %d, want 1", processed)
	}

	data, err := store.Read("bob.md")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "RELATED[friend]") {
		t.Errorf("bob note missing reciprocal friend entry:\n%s", data)
	}
}

func TestGraph(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.CreateContact(ctx, "Alice", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateContact(ctx, "Bob", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddRelationship(ctx, "Alice.md", "friend", "Bob"); err != nil {
		t.Fatal(err)
	}

	nodes, edges, err := svc.Graph(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 2 {
		t.Errorf("nodes = %d, want 2", len(nodes))
	}
	if len(edges) < 2 {
		t.Errorf("edges = %d, want at least the pair of reciprocal edges", len(edges))
	}

	n, e := svc.GraphStats(ctx)
	if n != 2 || e < 2 {
		t.Errorf("graph stats = (%d, %d), want 2 nodes and >=2 edges", n, e)
	}
}
