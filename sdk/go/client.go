package mdversionsdk

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
)

// Client is a minimal mdversion HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  10 * time.Second,
	}
}

// Version represents one version of a document.
type Version struct {
	VersionNumber   int             `json:"version_number"`
	Content         json.RawMessage `json:"content"`
	Author          string          `json:"author"`
	CreatedAt       string          `json:"created_at"`
	ChangeSummary   string          `json:"change_summary"`
	PublishingState string          `json:"publishing_state"`
	IsActive        bool            `json:"is_active"`
	Warnings        []string        `json:"warnings,omitempty"`
}

type Change struct {
	Type     string `json:"type"`
	Path     string `json:"path"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

// Comparison is the diff between two versions.
type Comparison struct {
	Type               string `json:"type"`
	Name               string `json:"name"`
	FromVersion        int    `json:"from_version"`
	ToVersion          int    `json:"to_version"`
	HasBreakingChanges bool   `json:"has_breaking_changes"`
	ChangeCount        int    `json:"change_count"`
	Summary            struct {
		Added    int `json:"added"`
		Modified int `json:"modified"`
		Removed  int `json:"removed"`
	} `json:"summary"`
	Changes []Change `json:"changes"`
}

type DocumentSummary struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	VersionCount  int    `json:"version_count"`
	LatestVersion int    `json:"latest_version"`
	ActiveVersion *int   `json:"active_version,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type PaginatedDocuments struct {
	Items      []DocumentSummary `json:"items"`
	NextCursor string            `json:"next_cursor"`
}

// Event represents an audit log entry.
type Event struct {
	ID            int64          `json:"id"`
	TS            string         `json:"ts"`
	Type          string         `json:"type"`
	DocType       string         `json:"doc_type"`
	DocName       string         `json:"doc_name"`
	EntityKind    string         `json:"entity_kind"`
	EntityID      string         `json:"entity_id"`
	ActorID       string         `json:"actor_id"`
	CorrelationID string         `json:"correlation_id"`
	Payload       map[string]any `json:"payload"`
}

// PaginatedEvents wraps event listings with a cursor.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses. Code and Message come from the error envelope when present.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateDocument creates a document with its first version.
func (c *Client) CreateDocument(ctx context.Context, docType, name string, content any, summary string) (Version, error) {
	body := map[string]any{
		"type":           docType,
		"name":           name,
		"content":        content,
		"change_summary": summary,
	}
	var resp Version
	err := c.do(ctx, http.MethodPost, "metadata", body, &resp)
	return resp, err
}

// CreateVersion appends a version to an existing document.
func (c *Client) CreateVersion(ctx context.Context, docType, name string, content any, summary string) (Version, error) {
	body := map[string]any{
		"content":        content,
		"change_summary": summary,
	}
	var resp Version
	err := c.do(ctx, http.MethodPost, docPath(docType, name, "versions"), body, &resp)
	return resp, err
}

// History returns all versions, oldest first.
func (c *Client) History(ctx context.Context, docType, name string) ([]Version, error) {
	var resp struct {
		Versions []Version `json:"versions"`
	}
	err := c.do(ctx, http.MethodGet, docPath(docType, name, "versions"), nil, &resp)
	return resp.Versions, err
}

func (c *Client) GetVersion(ctx context.Context, docType, name string, n int) (Version, error) {
	var resp Version
	err := c.do(ctx, http.MethodGet, docPath(docType, name, "versions/"+strconv.Itoa(n)), nil, &resp)
	return resp, err
}

// Activate makes version n the active one.
func (c *Client) Activate(ctx context.Context, docType, name string, n int) error {
	return c.do(ctx, http.MethodPost, docPath(docType, name, "versions/"+strconv.Itoa(n)+"/activate"), nil, nil)
}

// Transition moves version n to state (DRAFT, APPROVED, PUBLISHED, ARCHIVED).
func (c *Client) Transition(ctx context.Context, docType, name string, n int, state string) (Version, error) {
	var resp Version
	err := c.do(ctx, http.MethodPost, docPath(docType, name, "versions/"+strconv.Itoa(n)+"/state"), map[string]any{"state": state}, &resp)
	return resp, err
}

// Active returns the active version. A document without one yields an *APIError with code
// no_active_version.
func (c *Client) Active(ctx context.Context, docType, name string) (Version, error) {
	var resp Version
	err := c.do(ctx, http.MethodGet, docPath(docType, name, "active"), nil, &resp)
	return resp, err
}

func (c *Client) Compare(ctx context.Context, docType, name string, from, to int) (Comparison, error) {
	q := url.Values{}
	q.Set("from", strconv.Itoa(from))
	q.Set("to", strconv.Itoa(to))
	var resp Comparison
	err := c.do(ctx, http.MethodGet, docPath(docType, name, "compare")+"?"+q.Encode(), nil, &resp)
	return resp, err
}

// ListDocuments returns one page of documents, optionally filtered by type.
func (c *Client) ListDocuments(ctx context.Context, docType string, limit int, cursor string) (PaginatedDocuments, error) {
	var resp PaginatedDocuments
	err := c.do(ctx, http.MethodGet, withQuery("metadata", map[string]string{
		"type":   docType,
		"limit":  itoa(limit),
		"cursor": cursor,
	}), nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing, newest first.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, withQuery("events", map[string]string{
		"limit":  itoa(limit),
		"cursor": cursor,
	}), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(c.BasePath, "/")
}

func docPath(docType, name, rest string) string {
	return fmt.Sprintf("metadata/%s/%s/%s", url.PathEscape(docType), url.PathEscape(name), rest)
}

func withQuery(endpoint string, params map[string]string) string {
	q := url.Values{}
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}

func itoa(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}
