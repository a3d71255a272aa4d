package engine

import "sync"

// Claims tracks files temporarily owned by an external writer, such as a
// bulk importer that rewrites many notes at once. A claimed file is skipped
// by every sync pass until released.
type Claims struct {
	mu    sync.Mutex
	files map[string]struct{}
}

// NewClaims returns an empty claims registry.
func NewClaims() *Claims {
	return &Claims{files: make(map[string]struct{})}
}

// Claim marks path as owned by an external writer.
func (c *Claims) Claim(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[path] = struct{}{}
}

// Release removes an external ownership claim on path.
func (c *Claims) Release(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.files, path)
}

// IsClaimed reports whether path is currently claimed.
func (c *Claims) IsClaimed(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.files[path]
	return ok
}
