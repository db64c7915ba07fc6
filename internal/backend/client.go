// Package backend is the HTTP client for the document service REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/docdesk/internal/apperr"
	"github.com/starford/docdesk/internal/models"
)

// Client talks to the document service.
type Client struct {
	base *url.URL
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets a per-request timeout. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// New creates a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend: base url must be http(s): %q", baseURL)
	}
	c := &Client{base: u, http: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns a copy of the service root URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// ListDocuments handles GET /documents.
func (c *Client) ListDocuments(ctx context.Context) ([]models.Document, error) {
	var docs []models.Document
	if err := c.getJSON(ctx, c.endpoint(nil, "documents"), &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// SearchDocuments handles GET /search?q=<query>.
func (c *Client) SearchDocuments(ctx context.Context, query string) ([]models.Document, error) {
	var docs []models.Document
	q := url.Values{"q": {query}}
	if err := c.getJSON(ctx, c.endpoint(q, "search"), &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// VoteResults handles GET /vote_results.
func (c *Client) VoteResults(ctx context.Context) ([]models.Vote, error) {
	var votes []models.Vote
	if err := c.getJSON(ctx, c.endpoint(nil, "vote_results"), &votes); err != nil {
		return nil, err
	}
	return votes, nil
}

// DeleteVersion handles DELETE /documents/{doc_id}/versions/{version}.
// The result body is returned whatever the HTTP status; callers inspect Success.
func (c *Client) DeleteVersion(ctx context.Context, docID string, version int) (*models.ActionResult, error) {
	u := c.endpoint(nil, "documents", docID, "versions", strconv.Itoa(version))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	return c.doAction(req)
}

// Vote handles POST /vote.
func (c *Client) Vote(ctx context.Context, vote models.VoteRequest) (*models.ActionResult, error) {
	body, err := json.Marshal(vote)
	if err != nil {
		return nil, fmt.Errorf("backend: encode vote: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(nil, "vote"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doAction(req)
}

// UploadsPath returns the static path under /uploads for a stored file path.
// Only the basename is used, so the caller is agnostic to storage layout.
func UploadsPath(stored string) string {
	name := stored
	if i := strings.LastIndex(stored, "/"); i >= 0 {
		name = stored[i+1:]
	}
	return "/uploads/" + url.PathEscape(name)
}

// FileURL returns the absolute service URL for a stored file path.
func (c *Client) FileURL(stored string) string {
	return strings.TrimRight(c.base.String(), "/") + UploadsPath(stored)
}

func (c *Client) endpoint(query url.Values, segments ...string) string {
	u := c.base.JoinPath(segments...)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) getJSON(ctx context.Context, target string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: GET %s: %w: %w", req.URL.Path, apperr.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("backend: GET %s: %w: %w", req.URL.Path, apperr.ErrDecode, err)
	}
	return nil
}

func (c *Client) doAction(req *http.Request) (*models.ActionResult, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: %s %s: %w: %w", req.Method, req.URL.Path, apperr.ErrTransport, err)
	}
	defer resp.Body.Close()

	var res models.ActionResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("backend: %s %s: %w: %w", req.Method, req.URL.Path, apperr.ErrDecode, err)
	}
	return &res, nil
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(data, &body)
	return &apperr.StatusError{Code: resp.StatusCode, Message: body.Error}
}
