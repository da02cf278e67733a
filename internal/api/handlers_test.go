package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hyperengineering/liftlog/internal/entry"
	"github.com/hyperengineering/liftlog/internal/ingest"
	"github.com/hyperengineering/liftlog/internal/interpreter"
	"github.com/hyperengineering/liftlog/internal/query"
	"github.com/hyperengineering/liftlog/internal/remote"
	"github.com/hyperengineering/liftlog/internal/session"
	"github.com/hyperengineering/liftlog/internal/store"
	"github.com/hyperengineering/liftlog/internal/types"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

type stubStats struct {
	stats types.StoreStats
	err   error
}

func (s *stubStats) GetStats(ctx context.Context) (*types.StoreStats, error) {
	if s.err != nil {
		return nil, s.err
	}
	st := s.stats
	return &st, nil
}

// stubInterpreter answers by raw input.
type stubInterpreter struct{}

func (stubInterpreter) Interpret(ctx context.Context, input string) (*interpreter.Result, error) {
	switch input {
	case "squat 100kg 5x5":
		w, reps, sets := 100.0, 5, 5
		return &interpreter.Result{Success: true, Data: []types.Observation{
			{Exercise: "squat", Weight: &w, Unit: types.UnitKg, Reps: &reps, Sets: &sets},
		}}, nil
	case "timeout":
		return nil, errors.New("context deadline exceeded")
	default:
		return interpreter.Failure("No exercises found"), nil
	}
}

func (stubInterpreter) Name() string { return "stub" }

func (stubInterpreter) Answer(ctx context.Context, question string, history []types.HistoryEntry) (string, error) {
	if question == "timeout" {
		return "", errors.New("context deadline exceeded")
	}
	return fmt.Sprintf("You have %d entries.", len(history)), nil
}

// fakeSync stands in for the sync engine.
type fakeSync struct {
	mu        sync.Mutex
	scheduled int
	flushes   int
	pushErr   error
	push      types.PushResult
	pull      types.PullResult
	lastPull  *time.Time
}

func (f *fakeSync) Schedule() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled++
}

func (f *fakeSync) PushDeletes(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil, nil
}

func (f *fakeSync) Push(ctx context.Context) (types.PushResult, error) {
	return f.push, f.pushErr
}

func (f *fakeSync) Pull(ctx context.Context) (types.PullResult, error) {
	return f.pull, nil
}

func (f *fakeSync) LastPull(ctx context.Context) (*time.Time, error) {
	return f.lastPull, nil
}

type fakeAuth bool

func (a fakeAuth) IsAuthenticated() bool { return bool(a) }

type apiHarness struct {
	store    *store.SQLiteStore
	sessions *session.Manager
	sync     *fakeSync
	woken    int
	router   http.Handler
}

func newAPIHarness(t *testing.T, apiKey string) *apiHarness {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	clock := func() time.Time { return testNow }
	h := &apiHarness{store: st, sync: &fakeSync{}}
	h.sessions = session.NewManager(st,
		session.WithClock(clock),
		session.WithLocation(time.UTC),
		session.WithScheduler(h.sync),
	)
	queue := ingest.NewQueue(st, h.sessions, stubInterpreter{}, ingest.WithClock(clock))

	handler := NewHandler(Deps{
		Stats:       st,
		Sessions:    h.sessions,
		Entries:     entry.NewService(st, h.sync, entry.WithClock(clock)),
		Queue:       queue,
		Interpreter: stubInterpreter{},
		Query:       query.NewService(st, stubInterpreter{}),
		Sync:        h.sync,
		Auth:        fakeAuth(true),
		Wake:        func() { h.woken++ },
	}, apiKey, "1.2.3")
	h.router = NewRouter(handler)
	return h
}

func (h *apiHarness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// seed creates a session with one weighted entry and returns both ids.
func (h *apiHarness) seed(t *testing.T) (string, string) {
	t.Helper()
	ctx := context.Background()
	sess, err := h.sessions.CreateSession(ctx, "2025-03-14")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := h.store.InsertExercise(ctx, types.Exercise{ID: "ex-squat", Name: "squat", DisplayName: "Squat", CreatedAt: testNow}); err != nil {
		t.Fatalf("InsertExercise: %v", err)
	}
	w, reps, sets := 100.0, 5, 3
	e := types.Entry{
		ID: "e1", ExerciseID: "ex-squat", SessionID: sess.ID,
		Weight: &w, Unit: types.UnitKg, Reps: &reps, Sets: &sets,
		CreatedAt: testNow, UpdatedAt: testNow,
	}
	if err := h.store.InsertEntry(ctx, e); err != nil {
		t.Fatalf("InsertEntry: %v", err)
	}
	return sess.ID, e.ID
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	h := newAPIHarness(t, "")
	last := testNow.Add(-time.Hour)
	h.sync.lastPull = &last
	h.seed(t)

	w := h.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decodeBody[types.HealthResponse](t, w)
	if resp.Status != "healthy" || resp.Version != "1.2.3" {
		t.Errorf("status/version = %q/%q", resp.Status, resp.Version)
	}
	if resp.Interpreter != "stub" || !resp.Authenticated {
		t.Errorf("interpreter/auth = %q/%v", resp.Interpreter, resp.Authenticated)
	}
	if resp.Stats.Sessions != 1 || resp.Stats.Entries != 1 {
		t.Errorf("stats = %+v", resp.Stats)
	}
	if resp.LastPull == nil || !resp.LastPull.Equal(last) {
		t.Errorf("last_pull = %v, want %v", resp.LastPull, last)
	}
}

func TestHealth_StatsError(t *testing.T) {
	captureLogs(t)
	handler := NewHandler(Deps{Stats: &stubStats{err: errors.New("db closed")}}, "", "test")
	w := httptest.NewRecorder()
	NewRouter(handler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestHealth_NoInterpreter(t *testing.T) {
	handler := NewHandler(Deps{Stats: &stubStats{}}, "", "test")
	w := httptest.NewRecorder()
	NewRouter(handler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	resp := decodeBody[types.HealthResponse](t, w)
	if resp.Interpreter != "none" || resp.Authenticated {
		t.Errorf("interpreter/auth = %q/%v, want none/false", resp.Interpreter, resp.Authenticated)
	}
}

func TestParse(t *testing.T) {
	captureLogs(t)
	h := newAPIHarness(t, "")

	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantSuccess bool
	}{
		{"success", `{"input":"squat 100kg 5x5"}`, 200, true},
		{"not understood", `{"input":"hello there"}`, 422, false},
		{"transport error", `{"input":"timeout"}`, 502, false},
		{"empty input", `{"input":"   "}`, 400, false},
		{"bad json", `{"input":`, 400, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, http.MethodPost, "/api/v1/parse", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			res := decodeBody[interpreter.Result](t, w)
			if res.Success != tt.wantSuccess {
				t.Errorf("success = %v, want %v", res.Success, tt.wantSuccess)
			}
			if !res.Success && res.Error == "" {
				t.Error("failure without an error message")
			}
		})
	}
}

func TestParse_NoInterpreter(t *testing.T) {
	handler := NewHandler(Deps{Stats: &stubStats{}}, "", "test")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/parse", bytes.NewReader([]byte(`{"input":"squat"}`)))
	w := httptest.NewRecorder()
	NewRouter(handler).ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestQuery(t *testing.T) {
	captureLogs(t)
	h := newAPIHarness(t, "")

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantAnswer string
	}{
		{"answered", `{"query":"What's my squat PR?"}`, 200, "You have 0 entries."},
		{"blank query", `{"query":"   "}`, 422, ""},
		{"missing query", `{}`, 422, ""},
		{"bad json", `{"query":`, 400, ""},
		{"provider error", `{"query":"timeout"}`, 502, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, http.MethodPost, "/api/v1/query", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantAnswer != "" {
				if resp := decodeBody[QueryResponse](t, w); resp.Answer != tt.wantAnswer {
					t.Errorf("answer = %q, want %q", resp.Answer, tt.wantAnswer)
				}
			}
		})
	}
}

func TestQuery_NoProvider(t *testing.T) {
	for name, deps := range map[string]Deps{
		"no service":  {Stats: &stubStats{}},
		"no answerer": {Stats: &stubStats{}, Query: query.NewService(nil, nil)},
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader([]byte(`{"query":"PR?"}`)))
			w := httptest.NewRecorder()
			NewRouter(NewHandler(deps, "", "test")).ServeHTTP(w, req)

			if w.Code != http.StatusServiceUnavailable {
				t.Errorf("status = %d, want 503", w.Code)
			}
		})
	}
}

func TestLog_QueuesAndWakes(t *testing.T) {
	h := newAPIHarness(t, "")

	w := h.do(t, http.MethodPost, "/api/v1/log", `{"input":"squat 100kg 5x5"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (%s)", w.Code, w.Body.String())
	}
	item := decodeBody[types.QueueItem](t, w)
	if item.ID == "" || item.Status != types.QueueStatusPending || item.RawInput != "squat 100kg 5x5" {
		t.Errorf("item = %+v", item)
	}
	if h.woken != 1 {
		t.Errorf("woken = %d, want 1", h.woken)
	}

	items, err := h.store.ListQueueItems(context.Background(), types.QueueStatusPending)
	if err != nil {
		t.Fatalf("ListQueueItems: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("pending items = %d, want 1", len(items))
	}
}

func TestLog_Validation(t *testing.T) {
	h := newAPIHarness(t, "")

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"missing input", `{}`, 422},
		{"whitespace input", `{"input":"  \t "}`, 422},
		{"null byte", `{"input":"squat\u0000"}`, 422},
		{"invalid json", `not json`, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, http.MethodPost, "/api/v1/log", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
	if h.woken != 0 {
		t.Errorf("woken = %d, want 0 for rejected input", h.woken)
	}
}

func TestListQueue(t *testing.T) {
	h := newAPIHarness(t, "")
	h.do(t, http.MethodPost, "/api/v1/log", `{"input":"one"}`)
	h.do(t, http.MethodPost, "/api/v1/log", `{"input":"two"}`)

	w := h.do(t, http.MethodGet, "/api/v1/queue?status=pending", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if items := decodeBody[[]types.QueueItem](t, w); len(items) != 2 {
		t.Errorf("items = %d, want 2", len(items))
	}

	w = h.do(t, http.MethodGet, "/api/v1/queue?status=failed", "")
	if w.Body.String() != "[]\n" {
		t.Errorf("empty list body = %q, want []", w.Body.String())
	}

	w = h.do(t, http.MethodGet, "/api/v1/queue?status=bogus", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown status: got %d, want 400", w.Code)
	}
}

func TestRetryQueueItem(t *testing.T) {
	h := newAPIHarness(t, "")
	ctx := context.Background()

	item := decodeBody[types.QueueItem](t, h.do(t, http.MethodPost, "/api/v1/log", `{"input":"gibberish"}`))

	w := h.do(t, http.MethodPost, "/api/v1/queue/"+item.ID+"/retry", "")
	if w.Code != http.StatusConflict {
		t.Errorf("retry pending: status = %d, want 409", w.Code)
	}

	if err := h.store.MarkQueueItem(ctx, item.ID, types.QueueStatusFailed, "No exercises found", testNow); err != nil {
		t.Fatalf("MarkQueueItem: %v", err)
	}
	w = h.do(t, http.MethodPost, "/api/v1/queue/"+item.ID+"/retry", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("retry failed: status = %d, want 202 (%s)", w.Code, w.Body.String())
	}
	retried := decodeBody[types.QueueItem](t, w)
	if retried.ID == item.ID || retried.RawInput != "gibberish" {
		t.Errorf("retried = %+v, want new item with same input", retried)
	}

	w = h.do(t, http.MethodPost, "/api/v1/queue/01ARZ3NDEKTSV4RRFFQ69G5FAV/retry", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("retry missing: status = %d, want 404", w.Code)
	}

	w = h.do(t, http.MethodPost, "/api/v1/queue/not-an-id/retry", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("retry malformed id: status = %d, want 400", w.Code)
	}
}

func TestSessions_GetAndList(t *testing.T) {
	h := newAPIHarness(t, "")
	sessID, _ := h.seed(t)

	w := h.do(t, http.MethodGet, "/api/v1/sessions/"+sessID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: status = %d", w.Code)
	}
	if got := decodeBody[types.Session](t, w); got.ID != sessID || got.Name != "Morning Workout" {
		t.Errorf("session = %+v", got)
	}

	w = h.do(t, http.MethodGet, "/api/v1/sessions", "")
	if sessions := decodeBody[[]types.Session](t, w); len(sessions) != 1 {
		t.Errorf("today's sessions = %d, want 1", len(sessions))
	}

	w = h.do(t, http.MethodGet, "/api/v1/sessions?date=2025-03-13", "")
	if w.Body.String() != "[]\n" {
		t.Errorf("other day = %q, want []", w.Body.String())
	}

	w = h.do(t, http.MethodGet, "/api/v1/sessions?date=yesterday", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad date: status = %d, want 422", w.Code)
	}

	w = h.do(t, http.MethodGet, "/api/v1/sessions/nope", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing: status = %d, want 404", w.Code)
	}
}

func TestUpdateSession(t *testing.T) {
	h := newAPIHarness(t, "")
	sessID, _ := h.seed(t)

	w := h.do(t, http.MethodPatch, "/api/v1/sessions/"+sessID, `{"name":"Leg Day","notes":"felt strong"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	got := decodeBody[types.Session](t, w)
	if got.Name != "Leg Day" || got.Notes != "felt strong" || got.Synced {
		t.Errorf("session = %+v", got)
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"empty patch", `{}`, 400},
		{"empty name", `{"name":""}`, 422},
		{"bad date", `{"date":"14/03/2025"}`, 422},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, http.MethodPatch, "/api/v1/sessions/"+sessID, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestEndSession(t *testing.T) {
	h := newAPIHarness(t, "")
	sessID, _ := h.seed(t)

	w := h.do(t, http.MethodPost, "/api/v1/sessions/"+sessID+"/end", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decodeBody[types.Session](t, w); got.Active() {
		t.Error("session still active after end")
	}

	w = h.do(t, http.MethodPost, "/api/v1/sessions/"+sessID+"/end", "")
	if w.Code != http.StatusConflict {
		t.Errorf("second end: status = %d, want 409", w.Code)
	}
}

func TestDeleteSession_Cascades(t *testing.T) {
	h := newAPIHarness(t, "")
	sessID, entryID := h.seed(t)

	w := h.do(t, http.MethodDelete, "/api/v1/sessions/"+sessID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeBody[SessionDeleteResponse](t, w)
	if resp.ID != sessID || resp.EntriesDeleted != 1 {
		t.Errorf("response = %+v", resp)
	}
	if _, err := h.store.GetEntry(context.Background(), entryID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("entry survived session delete: %v", err)
	}
}

func TestListSessionEntries(t *testing.T) {
	h := newAPIHarness(t, "")
	sessID, entryID := h.seed(t)

	w := h.do(t, http.MethodGet, "/api/v1/sessions/"+sessID+"/entries", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	entries := decodeBody[[]types.Entry](t, w)
	if len(entries) != 1 || entries[0].ID != entryID {
		t.Errorf("entries = %+v", entries)
	}
}

func TestUpdateEntry(t *testing.T) {
	h := newAPIHarness(t, "")
	_, entryID := h.seed(t)

	w := h.do(t, http.MethodPatch, "/api/v1/entries/"+entryID, `{"weight":null,"unit":null,"reps":12}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	got := decodeBody[types.Entry](t, w)
	if got.Weight != nil || got.Unit != types.UnitNone {
		t.Errorf("weight/unit = %v/%q, want cleared", got.Weight, got.Unit)
	}
	if got.Reps == nil || *got.Reps != 12 {
		t.Errorf("reps = %v, want 12", got.Reps)
	}
	if got.Sets == nil || *got.Sets != 3 {
		t.Errorf("sets = %v, want untouched 3", got.Sets)
	}
	if got.Synced {
		t.Error("edited entry must be dirty")
	}
	if h.sync.scheduled == 0 {
		t.Error("edit did not schedule a push")
	}
}

func TestUpdateEntry_Rejections(t *testing.T) {
	h := newAPIHarness(t, "")
	_, entryID := h.seed(t)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"empty patch", "/api/v1/entries/" + entryID, `{}`, 400},
		{"weight without unit", "/api/v1/entries/" + entryID, `{"unit":null}`, 422},
		{"reps out of range", "/api/v1/entries/" + entryID, `{"reps":0}`, 422},
		{"unknown unit", "/api/v1/entries/" + entryID, `{"unit":"stone"}`, 422},
		{"wrong type", "/api/v1/entries/" + entryID, `{"reps":"ten"}`, 400},
		{"missing entry", "/api/v1/entries/nope", `{"reps":5}`, 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, http.MethodPatch, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestDeleteEntry(t *testing.T) {
	h := newAPIHarness(t, "")
	_, entryID := h.seed(t)

	w := h.do(t, http.MethodDelete, "/api/v1/entries/"+entryID, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if h.sync.flushes != 1 {
		t.Errorf("delete flushes = %d, want 1", h.sync.flushes)
	}

	w = h.do(t, http.MethodDelete, "/api/v1/entries/"+entryID, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", w.Code)
	}
}

func TestSyncEndpoints(t *testing.T) {
	h := newAPIHarness(t, "")
	h.sync.push = types.PushResult{Sessions: []string{"s1"}}
	h.sync.pull = types.PullResult{Entries: 2, Skipped: 1}

	w := h.do(t, http.MethodPost, "/api/v1/sync/push", "")
	if w.Code != http.StatusOK {
		t.Fatalf("push: status = %d", w.Code)
	}
	if got := decodeBody[types.PushResult](t, w); len(got.Sessions) != 1 || got.Entries == nil {
		t.Errorf("push result = %+v", got)
	}

	w = h.do(t, http.MethodPost, "/api/v1/sync/pull", "")
	if got := decodeBody[types.PullResult](t, w); got.Entries != 2 || got.Skipped != 1 {
		t.Errorf("pull result = %+v", got)
	}
}

func TestSyncPush_RemoteError(t *testing.T) {
	captureLogs(t)
	h := newAPIHarness(t, "")
	h.sync.pushErr = &remote.StatusError{Code: 503, Body: "maintenance"}

	w := h.do(t, http.MethodPost, "/api/v1/sync/push", "")
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestSync_NotConfigured(t *testing.T) {
	handler := NewHandler(Deps{Stats: &stubStats{}}, "", "test")
	router := NewRouter(handler)

	for _, path := range []string{"/api/v1/sync/push", "/api/v1/sync/pull"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want 503", path, w.Code)
		}
	}
}

func TestRoutes_APIKey(t *testing.T) {
	captureLogs(t)
	h := newAPIHarness(t, testAPIKey)

	w := h.do(t, http.MethodGet, "/api/v1/sessions", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("without key: status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with key: status = %d, want 200", rec.Code)
	}
}
