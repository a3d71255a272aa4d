package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/starford/othala/internal/contactservice"
	"github.com/starford/othala/internal/engine"
	"github.com/starford/othala/internal/graph"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/storage"
)

// testEnv sets up a temp vault, SQLite DB, engine, service, and router.
// authToken="" means auth disabled.
func testEnv(t *testing.T, authToken string) (*contactservice.Service, http.Handler) {
	t.Helper()

	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	dbFile, err := os.CreateTemp("", "othala-api-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	eng := engine.New(store, db, graph.New(), logger,
		engine.WithDebounceWindow(10*time.Millisecond))
	svc := contactservice.NewService(store, db, graph.New(), eng)
	router := NewRouter(svc, authToken != "", authToken, nil)
	return svc, router
}

func createContact(t *testing.T, router http.Handler, name string) ContactDetail {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"name": name})
	req := httptest.NewRequest(http.MethodPost, "/contacts", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var c ContactDetail
	_ = json.Unmarshal(w.Body.Bytes(), &c)
	return c
}

func TestCreateAndGetContact(t *testing.T) {
	_, router := testEnv(t, "")

	created := createContact(t, router, "Jane Doe")
	if created.UID == "" {
		t.Error("created contact should carry a generated UID")
	}

	req := httptest.NewRequest(http.MethodGet, "/contacts/Jane%20Doe.md", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", w.Code, w.Body.String())
	}
	var c ContactDetail
	_ = json.Unmarshal(w.Body.Bytes(), &c)
	if c.Name != "Jane Doe" {
		t.Errorf("name = %q, want Jane Doe", c.Name)
	}
}

func TestCreateDuplicate(t *testing.T) {
	_, router := testEnv(t, "")
	createContact(t, router, "Dup Person")

	body, _ := json.Marshal(map[string]string{"name": "Dup Person"})
	req := httptest.NewRequest(http.MethodPost, "/contacts", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")
	created := createContact(t, router, "Lock Me")

	updateBody, _ := json.Marshal(map[string]string{"content": "---\nFN: Lock Me\n---\n# Lock Me\nv2\n"})
	req := httptest.NewRequest(http.MethodPut, "/contacts/Lock%20Me.md", bytes.NewReader(updateBody))
	req.Header.Set("If-Match", created.Checksum)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update with correct checksum = %d, body = %s", w.Code, w.Body.String())
	}

	// Stale checksum → 409.
	req = httptest.NewRequest(http.MethodPut, "/contacts/Lock%20Me.md", bytes.NewReader(updateBody))
	req.Header.Set("If-Match", created.Checksum)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("update with stale checksum = %d, want 409", w.Code)
	}
}

func TestDeleteContact(t *testing.T) {
	_, router := testEnv(t, "")
	createContact(t, router, "Bye Now")

	req := httptest.NewRequest(http.MethodDelete, "/contacts/Bye%20Now.md", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/contacts/Bye%20Now.md", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
}

func TestListContacts(t *testing.T) {
	_, router := testEnv(t, "")
	createContact(t, router, "Alice")
	createContact(t, router, "Bob")

	req := httptest.NewRequest(http.MethodGet, "/contacts?limit=10", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	contacts := resp["contacts"].([]any)
	if len(contacts) != 2 {
		t.Errorf("len(contacts) = %d, want 2", len(contacts))
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	createContact(t, router, "Uniquetoken Person")

	req := httptest.NewRequest(http.MethodGet, "/search?q=Uniquetoken", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	results := resp["results"].([]any)
	if len(results) != 1 {
		t.Errorf("search results = %d, want 1", len(results))
	}
}

func TestRelationshipEndpoints(t *testing.T) {
	_, router := testEnv(t, "")
	createContact(t, router, "Alice Doe")
	createContact(t, router, "Bob Smith")

	body, _ := json.Marshal(map[string]string{
		"path": "Alice Doe.md", "kind": "friend", "target": "Bob Smith",
	})
	req := httptest.NewRequest(http.MethodPost, "/relationships", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("add relationship = %d, body = %s", w.Code, w.Body.String())
	}
	var c ContactDetail
	_ = json.Unmarshal(w.Body.Bytes(), &c)
	if len(c.Relationships) != 1 || c.Relationships[0].Kind != "friend" {
		t.Fatalf("relationships = %+v, want one friend entry", c.Relationships)
	}

	// Reciprocal landed on Bob.
	req = httptest.NewRequest(http.MethodGet, "/relationships?path=Bob%20Smith.md", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("relationships = %d", w.Code)
	}
	var resp struct {
		Relationships []contactservice.RelationshipItem `json:"relationships"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Relationships) != 1 || resp.Relationships[0].Kind != "friend" {
		t.Errorf("bob relationships = %+v, want reciprocal friend", resp.Relationships)
	}
}

func TestGraphEndpoints(t *testing.T) {
	_, router := testEnv(t, "")
	createContact(t, router, "Node One")
	createContact(t, router, "Node Two")

	body, _ := json.Marshal(map[string]string{
		"path": "Node One.md", "kind": "colleague", "target": "Node Two",
	})
	req := httptest.NewRequest(http.MethodPost, "/relationships", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("add relationship = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/graph", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("graph = %d", w.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	nodes := resp["nodes"].([]any)
	edges := resp["edges"].([]any)
	if len(nodes) != 2 {
		t.Errorf("nodes = %d, want 2", len(nodes))
	}
	if len(edges) < 2 {
		t.Errorf("edges = %d, want >= 2 (edge plus reciprocal)", len(edges))
	}

	req = httptest.NewRequest(http.MethodGet, "/graph/stats", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("graph stats = %d", w.Code)
	}
}

func TestSyncEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	createContact(t, router, "Solo")

	req := httptest.NewRequest(http.MethodPost, "/sync", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("sync = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SyncResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Errors) != 0 {
		t.Errorf("sync errors = %v, want none", resp.Errors)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	body, _ := json.Marshal(map[string]string{"name": "Authed"})
	req := httptest.NewRequest(http.MethodPost, "/contacts", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/contacts", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestGetContact_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/contacts/nope.md", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing contact = %d, want 404", w.Code)
	}
}
