package index

import (
	"os"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "othala-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM contacts`).Scan(&count); err != nil {
		t.Fatalf("contacts table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM edges`).Scan(&count); err != nil {
		t.Fatalf("edges table missing: %v", err)
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	row := ContactRow{
		Path:      "alice.md",
		UID:       "uid-alice",
		Name:      "Alice Doe",
		Gender:    "F",
		Checksum:  "abc123",
		UpdatedAt: time.Now(),
	}
	if err := db.UpsertContact(row, "Notes about Alice.", []EdgeRow{
		{Source: "uid-alice", Target: "uid-bob", Kind: "friend"},
	}); err != nil {
		t.Fatalf("UpsertContact: %v", err)
	}
	cs, err := db.GetChecksum("alice.md")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
}

func TestByUIDAndByName(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertContact(ContactRow{
		Path: "bob.md", UID: "uid-bob", Name: "Bob Smith", Gender: "M",
		Checksum: "1", UpdatedAt: time.Now(),
	}, "", nil)

	c, err := db.ByUID("uid-bob")
	if err != nil {
		t.Fatalf("ByUID: %v", err)
	}
	if c == nil || c.Name != "Bob Smith" {
		t.Fatalf("ByUID = %+v, want Bob Smith", c)
	}

	// Name lookup is case-insensitive.
	c, err = db.ByName("bob smith")
	if err != nil {
		t.Fatalf("ByName: %v", err)
	}
	if c == nil || c.UID != "uid-bob" {
		t.Fatalf("ByName = %+v, want uid-bob", c)
	}

	if c, _ := db.ByUID("nope"); c != nil {
		t.Errorf("ByUID miss = %+v, want nil", c)
	}
	if c, _ := db.ByName(""); c != nil {
		t.Errorf("ByName empty = %+v, want nil", c)
	}
}

func TestUpsertReplacesEdges(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertContact(ContactRow{Path: "a.md", UID: "uid-a", Name: "A", Checksum: "1", UpdatedAt: now},
		"", []EdgeRow{{Source: "uid-a", Target: "uid-x", Kind: "friend"}})
	_ = db.UpsertContact(ContactRow{Path: "a.md", UID: "uid-a", Name: "A", Checksum: "2", UpdatedAt: now},
		"", []EdgeRow{{Source: "uid-a", Target: "uid-y", Kind: "colleague"}})

	edges, err := db.GraphEdges()
	if err != nil {
		t.Fatalf("GraphEdges: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge after re-upsert, got %d: %+v", len(edges), edges)
	}
	if edges[0].Target != "uid-y" || edges[0].Kind != "colleague" {
		t.Errorf("edge = %+v, want uid-y/colleague", edges[0])
	}
}

func TestEdgeSourceFallsBackToName(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertContact(ContactRow{Path: "n.md", Name: "No Uid", Checksum: "1", UpdatedAt: time.Now()},
		"", []EdgeRow{{Source: "name:No Uid", Target: "uid-z", Kind: "sibling"}})

	edges, _ := db.GraphEdges()
	if len(edges) != 1 || edges[0].Source != "name:No Uid" {
		t.Fatalf("edges = %+v, want one edge from name:No Uid", edges)
	}

	// Re-upsert with no edges clears them via the name-derived source.
	_ = db.UpsertContact(ContactRow{Path: "n.md", Name: "No Uid", Checksum: "2", UpdatedAt: time.Now()}, "", nil)
	edges, _ = db.GraphEdges()
	if len(edges) != 0 {
		t.Errorf("edges after clearing upsert = %+v, want none", edges)
	}
}

func TestDeleteContact(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertContact(ContactRow{Path: "del.md", UID: "uid-del", Name: "Del", Checksum: "x", UpdatedAt: time.Now()},
		"", []EdgeRow{{Source: "uid-del", Target: "uid-t", Kind: "friend"}})

	if err := db.DeleteContact("del.md"); err != nil {
		t.Fatalf("DeleteContact: %v", err)
	}
	cs, _ := db.GetChecksum("del.md")
	if cs != "" {
		t.Errorf("deleted contact still has checksum %q", cs)
	}
	edges, _ := db.GraphEdges()
	if len(edges) != 0 {
		t.Errorf("expected 0 edges after delete, got %d", len(edges))
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestListContacts(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	for _, n := range []string{"Carol", "alice", "Bob"} {
		_ = db.UpsertContact(ContactRow{Path: n + ".md", Name: n, Checksum: "1", UpdatedAt: now}, "", nil)
	}

	rows, total, err := db.ListContacts(2, 0, "name")
	if err != nil {
		t.Fatalf("ListContacts: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(rows) != 2 || rows[0].Name != "alice" || rows[1].Name != "Bob" {
		t.Errorf("page = %+v, want [alice Bob]", rows)
	}
}

func TestStats(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertContact(ContactRow{Path: "a.md", UID: "uid-a", Name: "A", Checksum: "1", UpdatedAt: time.Now()},
		"", []EdgeRow{{Source: "uid-a", Target: "uid-b", Kind: "friend"}})
	_ = db.UpsertContact(ContactRow{Path: "b.md", UID: "uid-b", Name: "B", Checksum: "1", UpdatedAt: time.Now()},
		"", []EdgeRow{{Source: "uid-b", Target: "uid-a", Kind: "friend"}})

	contacts, edges, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if contacts != 2 || edges != 2 {
		t.Errorf("stats = %d contacts / %d edges, want 2/2", contacts, edges)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertContact(ContactRow{Path: "s.md", Name: "Search Me", Checksum: "1", UpdatedAt: time.Now()},
		"uniqueword appears here", nil)

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "s.md" {
		t.Errorf("search results = %+v, want 1 hit for s.md", results)
	}
}
