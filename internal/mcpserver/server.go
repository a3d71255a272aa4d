// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Othala contact tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/othala/internal/contactservice"
	"github.com/starford/othala/internal/storage"
)

// Server wraps the MCP server with Othala tools.
type Server struct {
	mcp   *server.MCPServer
	store storage.Provider
	svc   *contactservice.Service
}

// New creates a new MCP server with all Othala tools registered.
func New(store storage.Provider, svc *contactservice.Service) *Server {
	s := &Server{store: store, svc: svc}

	s.mcp = server.NewMCPServer(
		"Othala",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_contacts",
		mcp.WithDescription("Search contacts by name and note text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchContacts)

	s.mcp.AddTool(mcp.NewTool("read_contact",
		mcp.WithDescription("Read the full Markdown note of a contact."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the contact note (e.g. family/jane.md)")),
	), s.readContact)

	s.mcp.AddTool(mcp.NewTool("create_contact",
		mcp.WithDescription("Create a new contact note with a generated UID. "+
			"Notes follow the canonical contact format (YAML frontmatter with FN, "+
			"optional GENDER, RELATED* relationship keys). Read the contract first via "+
			"the get_contact_contract tool or the othala://contact-format resource."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Display name of the contact")),
		mcp.WithString("gender", mcp.Description("Optional gender: M, F, NB, or U")),
	), s.createContact)

	s.mcp.AddTool(mcp.NewTool("get_contact_contract",
		mcp.WithDescription("Returns the canonical Othala contact note format contract. "+
			"Call this before creating or updating contact notes."),
	), s.getContactContract)

	s.mcp.AddTool(mcp.NewTool("list_contacts",
		mcp.WithDescription("List all contact notes or notes in a specific folder."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listContacts)

	s.mcp.AddTool(mcp.NewTool("get_relationships",
		mcp.WithDescription("List the outgoing relationships of a contact."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the contact note")),
	), s.getRelationships)

	s.mcp.AddTool(mcp.NewTool("add_relationship",
		mcp.WithDescription("Add a relationship to a contact. The reciprocal side is "+
			"materialized on the target contact automatically (parent gains child, etc.)."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the contact note")),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Relationship kind, canonical or gendered (friend, parent, mother, uncle, ...)")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Display name of the related contact")),
	), s.addRelationship)

	s.mcp.AddTool(mcp.NewTool("sync_contacts",
		mcp.WithDescription("Rebuild the relationship graph from the vault and repair "+
			"missing reciprocal relationships across all contacts."),
	), s.syncContacts)

	// Resource: contact format contract.
	s.mcp.AddResource(
		mcp.NewResource("othala://contact-format", "Contact Format Contract",
			mcp.WithResourceDescription("Canonical contact note format that all notes must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContactFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchContacts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readContact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) createContact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	gender := ""
	if g, gerr := req.RequireString("gender"); gerr == nil {
		gender = g
	}
	c, err := s.svc.CreateContact(ctx, name, gender)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (uid %s)", c.Path, c.UID)), nil
}

func (s *Server) listContacts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := ""
	if f, err := req.RequireString("folder"); err == nil {
		folder = f
	}

	metas, err := s.store.List(folder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var paths []string
	for _, m := range metas {
		paths = append(paths, m.Path)
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) getRelationships(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, err := s.svc.Relationships(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no relationships found"), nil
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) addRelationship(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.AddRelationship(ctx, path, kind, target); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("added: %s %s -> %s", path, kind, target)), nil
}

func (s *Server) syncContacts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	processed, errs := s.svc.SyncAll(ctx)
	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return mcp.NewToolResultText(fmt.Sprintf("repaired %d contacts, %d failures:\n%s",
			processed, len(errs), strings.Join(msgs, "\n"))), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("repaired %d contacts", processed)), nil
}

func (s *Server) getContactContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ContactFormatContract), nil
}

func (s *Server) readContactFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "othala://contact-format",
			MIMEType: "text/markdown",
			Text:     ContactFormatContract,
		},
	}, nil
}
