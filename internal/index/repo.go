package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ContactRow represents a row in the contacts table.
type ContactRow struct {
	Path      string
	UID       string
	Name      string
	Gender    string
	Checksum  string
	UpdatedAt time.Time
}

// EdgeRow is one persisted relationship edge, keyed by graph contact ids.
type EdgeRow struct {
	Source string
	Target string
	Kind   string
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string
	Name    string
	Snippet string
}

// UpsertContact inserts or replaces a contact, its FTS entry, and its
// outgoing edges within a transaction.
func (db *DB) UpsertContact(c ContactRow, body string, edges []EdgeRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO contacts (path, uid, name, gender, checksum, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			uid        = excluded.uid,
			name       = excluded.name,
			gender     = excluded.gender,
			checksum   = excluded.checksum,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, c.Path, c.UID, c.Name, c.Gender, c.Checksum, body, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert contact: %w", err)
	}

	// FTS upsert (no-op when the FTS5 tag is absent).
	if err := ftsUpsert(tx, c.Path, c.Name, body); err != nil {
		return err
	}

	// Replace edges: delete old then bulk insert.
	source := c.UID
	if source == "" {
		source = "name:" + c.Name
	}
	_, _ = tx.Exec(`DELETE FROM edges WHERE source = ?`, source)
	if len(edges) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO edges (source, target, kind) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare edge insert: %w", err)
		}
		defer stmt.Close()
		for _, e := range edges {
			if _, err := stmt.Exec(e.Source, e.Target, e.Kind); err != nil {
				return fmt.Errorf("index: insert edge: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteContact removes a contact, its FTS entry, and its outgoing edges.
func (db *DB) DeleteContact(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var uid, name string
	_ = tx.QueryRow(`SELECT uid, name FROM contacts WHERE path = ?`, path).Scan(&uid, &name)
	source := uid
	if source == "" {
		source = "name:" + name
	}

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM edges WHERE source = ?`, source)
	_, _ = tx.Exec(`DELETE FROM contacts WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a contact note, or empty
// string if not indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM contacts WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns path → checksum for every indexed contact.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM contacts`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

func (db *DB) scanContact(row *sql.Row) (*ContactRow, error) {
	var c ContactRow
	err := row.Scan(&c.Path, &c.UID, &c.Name, &c.Gender, &c.Checksum, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: scan contact: %w", err)
	}
	return &c, nil
}

const contactCols = `path, uid, name, gender, checksum, updated_at`

// ByUID returns the contact with the given UID, or nil.
func (db *DB) ByUID(uid string) (*ContactRow, error) {
	if uid == "" {
		return nil, nil
	}
	return db.scanContact(db.conn.QueryRow(
		`SELECT `+contactCols+` FROM contacts WHERE uid = ? LIMIT 1`, uid))
}

// ByName returns the contact with the given display name (case-insensitive),
// or nil.
func (db *DB) ByName(name string) (*ContactRow, error) {
	if name == "" {
		return nil, nil
	}
	return db.scanContact(db.conn.QueryRow(
		`SELECT `+contactCols+` FROM contacts WHERE name = ? COLLATE NOCASE LIMIT 1`, name))
}

// ByPath returns the contact at the given note path, or nil.
func (db *DB) ByPath(path string) (*ContactRow, error) {
	return db.scanContact(db.conn.QueryRow(
		`SELECT `+contactCols+` FROM contacts WHERE path = ?`, path))
}

// ListContacts returns paginated contacts ordered by sort ("name", "path",
// or the default "updated_at"), plus the total row count.
func (db *DB) ListContacts(limit, offset int, sort string) ([]ContactRow, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	order := "updated_at DESC"
	switch sort {
	case "name":
		order = "name COLLATE NOCASE ASC"
	case "path":
		order = "path ASC"
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM contacts`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count contacts: %w", err)
	}

	rows, err := db.conn.Query(
		`SELECT `+contactCols+` FROM contacts ORDER BY `+order+` LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list contacts: %w", err)
	}
	defer rows.Close()

	var out []ContactRow
	for rows.Next() {
		var c ContactRow
		if err := rows.Scan(&c.Path, &c.UID, &c.Name, &c.Gender, &c.Checksum, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// GraphEdges returns every persisted relationship edge.
func (db *DB) GraphEdges() ([]EdgeRow, error) {
	rows, err := db.conn.Query(`SELECT source, target, kind FROM edges`)
	if err != nil {
		return nil, fmt.Errorf("index: graph edges: %w", err)
	}
	defer rows.Close()

	var out []EdgeRow
	for rows.Next() {
		var e EdgeRow
		if err := rows.Scan(&e.Source, &e.Target, &e.Kind); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats returns contact and edge counts.
func (db *DB) Stats() (contacts, edges int, err error) {
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM contacts`).Scan(&contacts); err != nil {
		return 0, 0, fmt.Errorf("index: stats: %w", err)
	}
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM edges`).Scan(&edges); err != nil {
		return 0, 0, fmt.Errorf("index: stats: %w", err)
	}
	return contacts, edges, nil
}
