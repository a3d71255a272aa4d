package index

// ContactIndex defines the interface for contact indexing operations.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with mocks.
type ContactIndex interface {
	UpsertContact(c ContactRow, body string, edges []EdgeRow) error
	DeleteContact(path string) error
	GetChecksum(path string) (string, error)
	AllChecksums() (map[string]string, error)
	ByUID(uid string) (*ContactRow, error)
	ByName(name string) (*ContactRow, error)
	ByPath(path string) (*ContactRow, error)
	ListContacts(limit, offset int, sort string) ([]ContactRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	GraphEdges() ([]EdgeRow, error)
	Stats() (contacts, edges int, err error)
	Close() error
}

// Verify *DB satisfies ContactIndex at compile time.
var _ ContactIndex = (*DB)(nil)
