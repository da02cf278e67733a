package remote

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

	"github.com/hyperengineering/liftlog/internal/types"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultPageSize = 1000
	maxErrorBody    = 4 << 10
)

// Table names on the remote.
const (
	TableExercises = "exercises"
	TableSessions  = "sessions"
	TableEntries   = "entries"
)

// Client is a Store backed by a PostgREST-style HTTP API.
type Client struct {
	baseURL  string
	apiKey   string
	tokens   TokenSource
	http     *http.Client
	pageSize int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// WithPageSize sets how many rows each select request fetches.
func WithPageSize(n int) ClientOption {
	return func(c *Client) { c.pageSize = n }
}

// NewClient creates a REST client. apiKey is the project's public key sent
// with every request; tokens supplies the user's bearer token.
func NewClient(baseURL, apiKey string, tokens TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		tokens:   tokens,
		http:     &http.Client{Timeout: defaultTimeout},
		pageSize: defaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UpsertExercises upserts exercises by id.
func (c *Client) UpsertExercises(ctx context.Context, exercises []types.Exercise) error {
	rows := make([]ExerciseRow, len(exercises))
	for i, e := range exercises {
		rows[i] = ExerciseToRow(e)
	}
	return upsert(ctx, c, TableExercises, rows)
}

// UpsertSessions upserts sessions by id.
func (c *Client) UpsertSessions(ctx context.Context, sessions []types.Session) error {
	rows := make([]SessionRow, len(sessions))
	for i, s := range sessions {
		rows[i] = SessionToRow(s)
	}
	return upsert(ctx, c, TableSessions, rows)
}

// UpsertEntries upserts entries by id.
func (c *Client) UpsertEntries(ctx context.Context, entries []types.Entry) error {
	rows := make([]EntryRow, len(entries))
	for i, e := range entries {
		rows[i] = EntryToRow(e)
	}
	return upsert(ctx, c, TableEntries, rows)
}

// ExercisesSince returns exercises created after cursor. Exercises are
// immutable so creation time is their change time.
func (c *Client) ExercisesSince(ctx context.Context, cursor time.Time) ([]types.Exercise, error) {
	rows, err := selectSince[ExerciseRow](ctx, c, TableExercises, "created_at", cursor)
	if err != nil {
		return nil, err
	}
	out := make([]types.Exercise, len(rows))
	for i, r := range rows {
		out[i] = ExerciseFromRow(r)
	}
	return out, nil
}

// SessionsSince returns sessions updated after cursor.
func (c *Client) SessionsSince(ctx context.Context, cursor time.Time) ([]types.Session, error) {
	rows, err := selectSince[SessionRow](ctx, c, TableSessions, "updated_at", cursor)
	if err != nil {
		return nil, err
	}
	out := make([]types.Session, len(rows))
	for i, r := range rows {
		out[i] = SessionFromRow(r)
	}
	return out, nil
}

// EntriesSince returns entries updated after cursor.
func (c *Client) EntriesSince(ctx context.Context, cursor time.Time) ([]types.Entry, error) {
	rows, err := selectSince[EntryRow](ctx, c, TableEntries, "updated_at", cursor)
	if err != nil {
		return nil, err
	}
	out := make([]types.Entry, len(rows))
	for i, r := range rows {
		out[i] = EntryFromRow(r)
	}
	return out, nil
}

// DeleteEntry deletes one entry by id. Deleting a missing entry succeeds.
func (c *Client) DeleteEntry(ctx context.Context, id string) error {
	return c.deleteRow(ctx, TableEntries, id)
}

// DeleteSession deletes one session by id. Its entries are deleted
// separately. Deleting a missing session succeeds.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.deleteRow(ctx, TableSessions, id)
}

func (c *Client) deleteRow(ctx context.Context, table, id string) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	resp, err := c.do(ctx, http.MethodDelete, "/rest/v1/"+table+"?"+q.Encode(), nil, nil)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", table, id, err)
	}
	resp.Body.Close()
	return nil
}

// Ping checks that the remote is reachable and accepts the credentials.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/rest/v1/"+TableExercises+"?select=id&limit=1", nil, nil)
	if err != nil {
		return fmt.Errorf("ping remote: %w", err)
	}
	resp.Body.Close()
	return nil
}

func upsert[T any](ctx context.Context, c *Client, table string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode %s: %w", table, err)
	}
	headers := map[string]string{
		"Prefer": "resolution=merge-duplicates,return=minimal",
	}
	resp, err := c.do(ctx, http.MethodPost, "/rest/v1/"+table+"?on_conflict=id", body, headers)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	resp.Body.Close()
	return nil
}

func selectSince[T any](ctx context.Context, c *Client, table, column string, cursor time.Time) ([]T, error) {
	var out []T
	for offset := 0; ; offset += c.pageSize {
		q := url.Values{}
		q.Set("select", "*")
		if !cursor.IsZero() {
			q.Set(column, "gt."+cursor.UTC().Format(time.RFC3339Nano))
		}
		q.Set("order", column+".asc,id.asc")
		q.Set("limit", strconv.Itoa(c.pageSize))
		q.Set("offset", strconv.Itoa(offset))

		resp, err := c.do(ctx, http.MethodGet, "/rest/v1/"+table+"?"+q.Encode(), nil, nil)
		if err != nil {
			return nil, fmt.Errorf("select %s: %w", table, err)
		}
		var page []T
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", table, err)
		}
		out = append(out, page...)
		if len(page) < c.pageSize {
			return out, nil
		}
	}
}

// do sends an authenticated request and maps non-2xx responses to errors.
// The caller closes the body of a successful response.
func (c *Client) do(ctx context.Context, method, path string, body []byte, headers map[string]string) (*http.Response, error) {
	token, err := c.tokens.AccessToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, strings.TrimSpace(string(msg)))
	}
	return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
}

// Compile-time interface check
var _ Store = (*Client)(nil)
