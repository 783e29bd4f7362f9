package supabase

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
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// KeyProvider supplies the API key sent with every request.
type KeyProvider interface {
	APIKey(ctx context.Context) (string, error)
}

// Client talks to one PostgREST table under {baseURL}/rest/v1. Non-2xx
// responses are returned as data, never as errors; only transport and
// credential failures produce an error.
type Client struct {
	baseURL      string
	table        string
	keyColumn    string
	keys         KeyProvider
	client       *http.Client
	apiCallCount int64
	apiCallMutex sync.Mutex
}

// Response is the raw outcome of a table request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func NewClient(baseURL, table, keyColumn string, keys KeyProvider, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		table:     table,
		keyColumn: keyColumn,
		keys:      keys,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// IncrementAPICall safely increments the API call counter
func (c *Client) IncrementAPICall() {
	c.apiCallMutex.Lock()
	c.apiCallCount++
	c.apiCallMutex.Unlock()
}

// GetAPICallCount returns the current API call count
func (c *Client) GetAPICallCount() int64 {
	c.apiCallMutex.Lock()
	defer c.apiCallMutex.Unlock()
	return c.apiCallCount
}

func (c *Client) tableURL() string {
	return fmt.Sprintf("%s/rest/v1/%s", c.baseURL, url.PathEscape(c.table))
}

// Upsert posts a batch with merge-on-conflict resolution against the key column.
func (c *Client) Upsert(ctx context.Context, payload interface{}) (*Response, error) {
	u := c.tableURL() + "?on_conflict=" + url.QueryEscape(c.keyColumn)
	return c.do(ctx, http.MethodPost, u, "resolution=merge-duplicates", payload)
}

// Update patches the rows whose key column equals key. The exact count lets
// the caller tell "updated" from "nothing matched".
func (c *Client) Update(ctx context.Context, key string, payload interface{}) (*Response, error) {
	u := fmt.Sprintf("%s?%s=eq.%s", c.tableURL(), url.QueryEscape(c.keyColumn), escapeValue(key))
	return c.do(ctx, http.MethodPatch, u, "return=minimal, count=exact", payload)
}

// Insert creates a single row.
func (c *Client) Insert(ctx context.Context, payload interface{}) (*Response, error) {
	return c.do(ctx, http.MethodPost, c.tableURL(), "return=minimal", payload)
}

// SelectOrdered fetches every row ordered ascending by the key column.
func (c *Client) SelectOrdered(ctx context.Context) ([]Row, error) {
	u := fmt.Sprintf("%s?select=*&order=%s.asc", c.tableURL(), url.QueryEscape(c.keyColumn))
	resp, err := c.do(ctx, http.MethodGet, u, "", nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, resp.Err()
	}

	var rows []Row
	if err := json.Unmarshal(resp.Body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	log.Debug().
		Str("table", c.table).
		Int("rows", len(rows)).
		Msg("Fetched remote rows")
	return rows, nil
}

func (c *Client) do(ctx context.Context, method, u, prefer string, payload interface{}) (*Response, error) {
	apiKey, err := c.keys.APIKey(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("apikey", apiKey)
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	c.IncrementAPICall()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	log.Debug().
		Str("method", method).
		Str("table", c.table).
		Int("status_code", resp.StatusCode).
		Int("body_length", len(respBody)).
		Msg("Received API response")

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Err returns the response as an *APIError, or nil when it succeeded.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	return newAPIError(r.StatusCode, r.Body)
}

// AffectedRows reads the row count out of a Content-Range header such as
// "0-2/3" or "*/0". The bool is false when the header is absent or unreadable.
func (r *Response) AffectedRows() (int, bool) {
	cr := strings.TrimSpace(r.Header.Get("Content-Range"))
	if cr == "" {
		return 0, false
	}
	span, total, found := strings.Cut(cr, "/")
	if !found {
		return 0, false
	}
	if span == "*" {
		if n, ok := atoi(total); ok {
			return n, true
		}
		return 0, true
	}
	from, to, found := strings.Cut(span, "-")
	if !found {
		return 0, false
	}
	a, okA := atoi(from)
	b, okB := atoi(to)
	if !okA || !okB || b < a {
		return 0, false
	}
	return b - a + 1, true
}

// escapeValue percent-encodes a filter value, spaces included.
func escapeValue(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
