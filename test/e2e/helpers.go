// Package e2e runs several liftlog clients against an in-process remote store
// that speaks the PostgREST dialect used by internal/remote.
package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hyperengineering/liftlog/internal/config"
	"github.com/hyperengineering/liftlog/internal/interpreter"
	"github.com/hyperengineering/liftlog/internal/types"
	"github.com/hyperengineering/liftlog/pkg/liftlog"
)

var t0 = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

const remoteAPIKey = "anon-key"

// --- Remote Store ---

// sortColumns maps each remote table to its change-time column.
var sortColumns = map[string]string{
	"exercises": "created_at",
	"sessions":  "updated_at",
	"entries":   "updated_at",
}

// fakeRemote keeps rows in memory and answers upsert, select-since and
// delete requests. Upserts replace whole rows, as merge-duplicates does.
type fakeRemote struct {
	srv *httptest.Server

	mu         sync.Mutex
	tables     map[string]map[string]map[string]any
	failStatus int
}

func newFakeRemote(t *testing.T) *fakeRemote {
	t.Helper()
	f := &fakeRemote{tables: make(map[string]map[string]map[string]any)}
	for table := range sortColumns {
		f.tables[table] = make(map[string]map[string]any)
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeRemote) URL() string { return f.srv.URL }

// failWith makes every following request return status. Zero restores
// normal operation.
func (f *fakeRemote) failWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStatus = status
}

// row returns a copy of one stored row, or nil.
func (f *fakeRemote) row(table, id string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.tables[table][id]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (f *fakeRemote) count(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[table])
}

func (f *fakeRemote) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("apikey") != remoteAPIKey || !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		http.Error(w, `{"message":"JWT invalid"}`, http.StatusUnauthorized)
		return
	}
	table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
	column, ok := sortColumns[table]
	if !ok {
		http.Error(w, `{"message":"relation does not exist"}`, http.StatusNotFound)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStatus != 0 {
		http.Error(w, `{"message":"injected failure"}`, f.failStatus)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var rows []map[string]any
		if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, row := range rows {
			id, _ := row["id"].(string)
			f.tables[table][id] = row
		}
		w.WriteHeader(http.StatusCreated)

	case http.MethodGet:
		f.selectRows(w, r, table, column)

	case http.MethodDelete:
		id := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")
		delete(f.tables[table], id)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeRemote) selectRows(w http.ResponseWriter, r *http.Request, table, column string) {
	q := r.URL.Query()
	var cursor time.Time
	if v := q.Get(column); v != "" {
		parsed, err := time.Parse(time.RFC3339Nano, strings.TrimPrefix(v, "gt."))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cursor = parsed
	}

	type candidate struct {
		at  time.Time
		id  string
		row map[string]any
	}
	var matches []candidate
	for id, row := range f.tables[table] {
		raw, _ := row[column].(string)
		at, _ := time.Parse(time.RFC3339Nano, raw)
		if !cursor.IsZero() && !at.After(cursor) {
			continue
		}
		matches = append(matches, candidate{at: at, id: id, row: row})
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].at.Equal(matches[j].at) {
			return matches[i].at.Before(matches[j].at)
		}
		return matches[i].id < matches[j].id
	})

	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = len(matches)
	}
	page := []map[string]any{}
	for i := offset; i < len(matches) && len(page) < limit; i++ {
		page = append(page, matches[i].row)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page)
}

// --- Clock ---

// testClock is a manually advanced clock shared by every device in a test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: t0} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- Interpreter ---

// cannedInterpreter understands a fixed set of workout notes.
type cannedInterpreter struct{}

func (cannedInterpreter) Interpret(ctx context.Context, input string) (*interpreter.Result, error) {
	obs := func(exercise string, weight float64, reps, sets int) types.Observation {
		o := types.Observation{Exercise: exercise, Reps: &reps, Sets: &sets}
		if weight > 0 {
			o.Weight = &weight
			o.Unit = types.UnitKg
		}
		return o
	}
	switch input {
	case "squat 100kg 5x5":
		return &interpreter.Result{Success: true, Data: []types.Observation{obs("squat", 100, 5, 5)}}, nil
	case "bench 80kg 8x3":
		return &interpreter.Result{Success: true, Data: []types.Observation{obs("bench press", 80, 8, 3)}}, nil
	case "pullups 10, dips 12":
		return &interpreter.Result{Success: true, Data: []types.Observation{
			obs("pull ups", 0, 10, 1),
			obs("dips", 0, 12, 1),
		}}, nil
	default:
		return interpreter.Failure("No exercises found"), nil
	}
}

func (cannedInterpreter) Name() string { return "canned" }

// --- Devices ---

// newDevice opens a client with its own database against the remote. Each
// tweak runs on the config before the client is built.
func newDevice(t *testing.T, remote *fakeRemote, clock *testClock, tweaks ...func(*config.Config)) *liftlog.Client {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "liftlog.db")
	cfg.Interpreter.Provider = config.ProviderNone
	cfg.Remote.URL = remote.URL()
	cfg.Remote.APIKey = remoteAPIKey
	cfg.Sync.Timezone = "UTC"
	// Pushes are driven explicitly by the tests.
	cfg.Sync.Debounce = config.Duration(time.Hour)
	for _, tweak := range tweaks {
		tweak(cfg)
	}

	c, err := liftlog.New(cfg,
		liftlog.WithClock(clock.Now),
		liftlog.WithInterpreter(cannedInterpreter{}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Shutdown(context.Background()) })
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return c
}

func makeToken(t *testing.T, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(t0.Add(24 * time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("e2e-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func signIn(t *testing.T, c *liftlog.Client, subject string) {
	t.Helper()
	if err := c.SignIn(context.Background(), makeToken(t, subject)); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
}

// logAndDrain queues input and interprets it immediately.
func logAndDrain(t *testing.T, c *liftlog.Client, input string) {
	t.Helper()
	ctx := context.Background()
	if _, err := c.Log(ctx, input); err != nil {
		t.Fatalf("Log(%q): %v", input, err)
	}
	res, err := c.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.Failed != 0 {
		t.Fatalf("Drain(%q): %d failed", input, res.Failed)
	}
}

// allEntries returns every entry on the device, keyed by id.
func allEntries(t *testing.T, c *liftlog.Client) map[string]types.Entry {
	t.Helper()
	ctx := context.Background()
	sessions, err := c.Sessions().ListSessions(ctx, "")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	out := make(map[string]types.Entry)
	for _, s := range sessions {
		entries, err := c.Entries().List(ctx, s.ID)
		if err != nil {
			t.Fatalf("List entries: %v", err)
		}
		for _, e := range entries {
			out[e.ID] = e
		}
	}
	return out
}

func mustPush(t *testing.T, c *liftlog.Client) types.PushResult {
	t.Helper()
	res, err := c.Push(context.Background())
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	return res
}

func mustPull(t *testing.T, c *liftlog.Client) types.PullResult {
	t.Helper()
	res, err := c.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	return res
}
