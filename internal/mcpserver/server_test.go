package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/docdesk/internal/backend"
	"github.com/starford/docdesk/internal/models"
	"github.com/starford/docdesk/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServer(t *testing.T) (*Server, *testutil.Backend) {
	t.Helper()
	fb := testutil.NewBackend(t)
	c, err := backend.New(fb.URL())
	require.NoError(t, err)
	return New(c, "test", discardLogger()), fb
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_documents":
		result, err = srv.listDocuments(ctx, req)
	case "search_documents":
		result, err = srv.searchDocuments(ctx, req)
	case "vote_results":
		result, err = srv.voteResults(ctx, req)
	case "submit_vote":
		result, err = srv.submitVote(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	require.NoError(t, err, "tool %s", name)
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestListDocuments(t *testing.T) {
	srv, fb := testServer(t)
	fb.SetDocuments(testutil.Doc("A", []string{"title", "Alpha"},
		models.Version{Version: 1, FilePath: "uploads/a1.pdf",
			HTMLPaths: []models.HTMLPath{{Path: "uploads/a1.html", Consistent: true}}}))

	r := callTool(t, srv, "list_documents", map[string]interface{}{})
	require.False(t, r.IsError, resultText(r))

	var docs []documentResult
	require.NoError(t, json.Unmarshal([]byte(resultText(r)), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "A", docs[0].DocID)
	title, _ := docs[0].Metadata.Get("title")
	assert.Equal(t, "Alpha", title)

	require.Len(t, docs[0].Links, 1)
	assert.Equal(t, fb.URL()+"/uploads/a1.pdf", docs[0].Links[0].File)
	assert.Equal(t, []string{fb.URL() + "/uploads/a1.html"}, docs[0].Links[0].HTML)
	assert.Equal(t, []string{"GET /documents"}, fb.Requests())
}

func TestSearchDocuments(t *testing.T) {
	srv, fb := testServer(t)
	fb.SetDocuments(
		testutil.Doc("A", []string{"title", "Annual report"}),
		testutil.Doc("B", []string{"title", "Minutes"}),
	)

	r := callTool(t, srv, "search_documents", map[string]interface{}{"query": "report"})
	assert.Contains(t, resultText(r), `"doc_id": "A"`)
	assert.NotContains(t, resultText(r), `"doc_id": "B"`)
	assert.Equal(t, []string{"GET /search?q=report"}, fb.Requests())

	r = callTool(t, srv, "search_documents", map[string]interface{}{})
	assert.True(t, r.IsError, "missing query")
}

func TestVoteResults(t *testing.T) {
	srv, fb := testServer(t)

	r := callTool(t, srv, "vote_results", map[string]interface{}{})
	assert.Equal(t, "No vote results available.", resultText(r))

	fb.SetVotes(
		models.Vote{DocID: "A", Version: 1, VoteType: models.VoteGood},
		models.Vote{DocID: "A", Version: 1, VoteType: models.VoteBad},
		models.Vote{DocID: "A", Version: 1, VoteType: models.VoteGood},
	)
	r = callTool(t, srv, "vote_results", map[string]interface{}{})
	var groups []voteGroup
	require.NoError(t, json.Unmarshal([]byte(resultText(r)), &groups))
	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].GoodVotes)
	assert.Equal(t, 1, groups[0].BadVotes)
	assert.Len(t, groups[0].Votes, 3)
}

func TestVoteResults_BackendFailure(t *testing.T) {
	srv, fb := testServer(t)
	fb.SetBroken(true)

	r := callTool(t, srv, "vote_results", map[string]interface{}{})
	assert.True(t, r.IsError)
}

func TestSubmitVote(t *testing.T) {
	srv, fb := testServer(t)

	r := callTool(t, srv, "submit_vote", map[string]interface{}{
		"doc_id":    "A",
		"version":   float64(2),
		"vote_type": "good",
	})
	assert.False(t, r.IsError)
	assert.Equal(t, "Vote recorded successfully", resultText(r))

	votes := fb.Votes()
	require.Len(t, votes, 1)
	assert.Equal(t, 2, votes[0].Version)
	assert.Equal(t, models.VoteGood, votes[0].VoteType)
}

func TestSubmitVoteInvalidType(t *testing.T) {
	srv, fb := testServer(t)
	r := callTool(t, srv, "submit_vote", map[string]interface{}{
		"doc_id":    "A",
		"version":   float64(1),
		"vote_type": "meh",
	})
	assert.True(t, r.IsError)
	assert.Empty(t, fb.Requests())
}

func TestBackendDown(t *testing.T) {
	c, err := backend.New("http://127.0.0.1:1")
	require.NoError(t, err)
	srv := New(c, "test", discardLogger())

	r := callTool(t, srv, "list_documents", map[string]interface{}{})
	assert.True(t, r.IsError, "backend is unreachable")
}
