// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the document service to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/docdesk/internal/docbrowser"
	"github.com/starford/docdesk/internal/models"
	"github.com/starford/docdesk/internal/voteview"
)

// Backend is the part of the document service the tools use.
type Backend interface {
	docbrowser.Source
	voteview.Source
	FileURL(stored string) string
}

// Server wraps the MCP server with document tools.
type Server struct {
	mcp     *server.MCPServer
	backend Backend
	logger  *slog.Logger
}

// New creates a new MCP server with all tools registered. Tool failures are
// logged to logger and returned to the client as tool errors.
func New(b Backend, version string, logger *slog.Logger) *Server {
	s := &Server{backend: b, logger: logger}

	s.mcp = server.NewMCPServer(
		"docdesk",
		version,
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List every document with its metadata and versions."),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Search documents by metadata and change descriptions."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("vote_results",
		mcp.WithDescription("Vote tallies per document version, with the individual votes."),
	), s.voteResults)

	s.mcp.AddTool(mcp.NewTool("submit_vote",
		mcp.WithDescription("Vote a document version good or bad."),
		mcp.WithString("doc_id", mcp.Required(), mcp.Description("Document identifier")),
		mcp.WithNumber("version", mcp.Required(), mcp.Description("Version number")),
		mcp.WithString("vote_type", mcp.Required(),
			mcp.Enum(string(models.VoteGood), string(models.VoteBad)),
			mcp.Description("good or bad")),
	), s.submitVote)

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

// documentResult is a document with absolute links to its stored files.
type documentResult struct {
	models.Document
	Links []versionLinks `json:"links"`
}

type versionLinks struct {
	Version int      `json:"version"`
	File    string   `json:"file"`
	HTML    []string `json:"html,omitempty"`
}

func (s *Server) documents(ctx context.Context, query string) (*mcp.CallToolResult, error) {
	b := docbrowser.New(s.backend, docbrowser.WithLogger(s.logger))
	if err := b.Search(ctx, query); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	docs := b.Documents()
	out := make([]documentResult, 0, len(docs))
	for _, d := range docs {
		r := documentResult{Document: d, Links: make([]versionLinks, 0, len(d.Versions))}
		for _, v := range d.Versions {
			l := versionLinks{Version: v.Version, File: s.backend.FileURL(v.FilePath)}
			for _, h := range v.HTMLPaths {
				l.HTML = append(l.HTML, s.backend.FileURL(h.Path))
			}
			r.Links = append(r.Links, l)
		}
		out = append(out, r)
	}
	return jsonResult(out)
}

func (s *Server) listDocuments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.documents(ctx, "")
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.documents(ctx, query)
}

// voteGroup is the JSON shape of one tally.
type voteGroup struct {
	DocID     string        `json:"doc_id"`
	Version   int           `json:"version"`
	GoodVotes int           `json:"good_votes"`
	BadVotes  int           `json:"bad_votes"`
	Votes     []models.Vote `json:"votes"`
}

func (s *Server) voteResults(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v := voteview.NewViewer(s.backend, s.logger)
	if err := v.Load(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	groups := v.Groups()
	if len(groups) == 0 {
		return mcp.NewToolResultText(voteview.MsgEmpty), nil
	}
	out := make([]voteGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, voteGroup{
			DocID:     g.DocID,
			Version:   g.Version,
			GoodVotes: g.GoodVotes,
			BadVotes:  g.BadVotes,
			Votes:     g.Votes,
		})
	}
	return jsonResult(out)
}

func (s *Server) submitVote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, err := req.RequireString("doc_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	version, err := req.RequireInt("version")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	voteType, err := req.RequireString("vote_type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	vt := models.VoteType(voteType)
	if !vt.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("invalid vote_type: %s", voteType)), nil
	}

	res, err := s.backend.Vote(ctx, models.VoteRequest{DocID: docID, Version: version, VoteType: vt})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "unknown error"
		}
		return mcp.NewToolResultError("Error: " + msg), nil
	}
	return mcp.NewToolResultText(res.Message), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
