package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hyperengineering/gatelog/internal/schema"
)

// PostgREST implements Store over a PostgREST (Supabase-compatible) API.
type PostgREST struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string

	tracer Tracer
}

// NewPostgREST creates a client for the REST endpoint at baseURL, e.g.
// https://xyz.supabase.co. accessToken is the user's session token; when
// empty the api key is used as bearer.
func NewPostgREST(baseURL, apiKey, accessToken string) *PostgREST {
	return &PostgREST{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      apiKey,
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		tracer: nopTracer{},
	}
}

// WithHTTPClient sets a custom http.Client (for testing or custom timeouts).
func (c *PostgREST) WithHTTPClient(client *http.Client) *PostgREST {
	c.httpClient = client
	return c
}

// WithTracer logs every request and response to t.
func (c *PostgREST) WithTracer(t Tracer) *PostgREST {
	if t != nil {
		c.tracer = t
	}
	return c
}

// SetAccessToken replaces the bearer token, e.g. after a session refresh.
func (c *PostgREST) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

func (c *PostgREST) tableURL(table string, params url.Values) string {
	u := c.baseURL + "/rest/v1/" + table
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (c *PostgREST) setHeaders(req *http.Request) {
	c.mu.RLock()
	token := c.accessToken
	c.mu.RUnlock()
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", "gatelog-client/1.0")
	req.Header.Set("Accept", "application/json")
}

func newError(op, table string, statusCode int, body []byte) *Error {
	msg := ""
	if len(body) > 0 && statusCode >= 400 {
		if len(body) > 200 {
			msg = string(body[:200]) + "..."
		} else {
			msg = string(body)
		}
	}
	return &Error{
		Op:         op,
		Table:      table,
		StatusCode: statusCode,
		Err:        fmt.Errorf("HTTP %d: %s", statusCode, msg),
	}
}

// do sends the request and returns the response body for 2xx statuses.
func (c *PostgREST) do(op, table string, req *http.Request, body []byte) ([]byte, error) {
	c.setHeaders(req)
	c.tracer.LogRequest(req.Method, req.URL.String(), body)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.tracer.LogError(op, err)
		return nil, &Error{Op: op, Table: table, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.tracer.LogError(op, err)
		return nil, &Error{Op: op, Table: table, StatusCode: resp.StatusCode, Err: err}
	}
	c.tracer.LogResponse(resp.StatusCode, resp.Status, respBody)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newError(op, table, resp.StatusCode, respBody)
	}
	return respBody, nil
}

func (c *PostgREST) Upsert(ctx context.Context, table string, rows []schema.Row, conflictKey string) error {
	if len(rows) == 0 {
		return nil
	}
	if err := validate(table, conflictKey); err != nil {
		return &Error{Op: "upsert", Table: table, Err: err}
	}

	body, err := json.Marshal(rows)
	if err != nil {
		return &Error{Op: "upsert", Table: table, Err: err}
	}

	params := url.Values{}
	if conflictKey != "" {
		params.Set("on_conflict", conflictKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tableURL(table, params), bytes.NewReader(body))
	if err != nil {
		return &Error{Op: "upsert", Table: table, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")

	_, err = c.do("upsert", table, req, body)
	return err
}

func (c *PostgREST) Select(ctx context.Context, table string, q Query) ([]schema.Row, error) {
	if err := validate(table, q.OwnerColumn); err != nil {
		return nil, &Error{Op: "select", Table: table, Err: err}
	}

	params := url.Values{}
	params.Set("select", "*")
	if q.OwnerColumn != "" {
		params.Set(q.OwnerColumn, "eq."+q.Owner)
	}
	if !q.UpdatedSince.IsZero() {
		params.Set(schema.UpdatedColumn, "gte."+q.UpdatedSince.UTC().Format(time.RFC3339Nano))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tableURL(table, params), nil)
	if err != nil {
		return nil, &Error{Op: "select", Table: table, Err: err}
	}

	body, err := c.do("select", table, req, nil)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var rows []schema.Row
	if err := dec.Decode(&rows); err != nil {
		return nil, &Error{Op: "select", Table: table, Err: err}
	}
	return rows, nil
}

func (c *PostgREST) Delete(ctx context.Context, table string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := validate(table); err != nil {
		return &Error{Op: "delete", Table: table, Err: err}
	}

	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = `"` + strings.ReplaceAll(id, `"`, `\"`) + `"`
	}
	params := url.Values{}
	params.Set(schema.IDColumn, "in.("+strings.Join(quoted, ",")+")")

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.tableURL(table, params), nil)
	if err != nil {
		return &Error{Op: "delete", Table: table, Err: err}
	}
	req.Header.Set("Prefer", "return=minimal")

	_, err = c.do("delete", table, req, nil)
	return err
}

func (c *PostgREST) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("select", schema.IDColumn)
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tableURL(PingTable, params), nil)
	if err != nil {
		return &Error{Op: "ping", Table: PingTable, Err: err}
	}
	_, err = c.do("ping", PingTable, req, nil)
	return err
}
