package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

const testAPIKey = "test-secret-key-12345"

// okHandler answers 200 "OK" and counts calls.
func okHandler() (http.Handler, *int) {
	calls := 0
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}), &calls
}

// captureLogs redirects the default logger to a JSON buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(old) })
	return &buf
}

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log is not one JSON line: %v (%s)", err, buf.String())
	}
	return line
}

func TestRequireAPIKey(t *testing.T) {
	logs := captureLogs(t)

	tests := []struct {
		name   string
		header string
		value  string
		allow  bool
	}{
		{"bearer", "Authorization", "Bearer " + testAPIKey, true},
		{"bearer lowercase scheme", "Authorization", "bearer " + testAPIKey, true},
		{"bearer padded", "Authorization", "Bearer  " + testAPIKey + " ", true},
		{"api key header", apiKeyHeader, testAPIKey, true},
		{"missing", "", "", false},
		{"wrong key", "Authorization", "Bearer wrong-token", false},
		{"key prefix", "Authorization", "Bearer " + testAPIKey[:5], false},
		{"no scheme", "Authorization", testAPIKey, false},
		{"basic scheme", "Authorization", "Basic " + testAPIKey, false},
		{"blank bearer", "Authorization", "Bearer    ", false},
		{"wrong api key header", apiKeyHeader, "nope", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, calls := okHandler()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/log", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			RequireAPIKey(testAPIKey)(handler).ServeHTTP(w, req)

			if got := *calls == 1; got != tt.allow {
				t.Fatalf("handler called = %v, want %v", got, tt.allow)
			}
			if tt.allow {
				return
			}
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
			if w.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 without WWW-Authenticate challenge")
			}
			if strings.Contains(w.Body.String(), testAPIKey) {
				t.Error("response echoes the API key")
			}
		})
	}
	if strings.Contains(logs.String(), testAPIKey) {
		t.Error("API key written to the log")
	}
}

func TestRequireAPIKey_Problem(t *testing.T) {
	captureLogs(t)
	handler, _ := okHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	w := httptest.NewRecorder()
	RequireAPIKey(testAPIKey)(handler).ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %v, want application/problem+json", ct)
	}
	var p Problem
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	want := Problem{
		Type:     "https://liftlog.dev/errors/unauthorized",
		Title:    "Unauthorized",
		Status:   http.StatusUnauthorized,
		Detail:   "Missing or invalid API key",
		Instance: "/api/v1/sessions",
	}
	if p.Type != want.Type || p.Title != want.Title || p.Status != want.Status || p.Detail != want.Detail || p.Instance != want.Instance {
		t.Errorf("problem = %+v, want %+v", p, want)
	}
}

func TestRequireAPIKey_HealthIsPublic(t *testing.T) {
	captureLogs(t)
	router := NewRouter(NewHandler(Deps{Stats: &stubStats{}}, testAPIKey, "test"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("health without key: status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/queue", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("queue without key: status = %d, want 401", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(requestID(r.Context())))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	if w.Body.String() == "" {
		t.Error("request ID missing inside the chi stack")
	}
	if id := requestID(httptest.NewRequest(http.MethodGet, "/test", nil).Context()); id != "" {
		t.Errorf("requestID outside the stack = %q, want empty", id)
	}
}

func TestLevelFor(t *testing.T) {
	tests := map[int]slog.Level{
		200: slog.LevelInfo,
		202: slog.LevelInfo,
		304: slog.LevelInfo,
		400: slog.LevelWarn,
		404: slog.LevelWarn,
		422: slog.LevelWarn,
		500: slog.LevelError,
		503: slog.LevelError,
	}
	for status, want := range tests {
		if got := levelFor(status); got != want {
			t.Errorf("levelFor(%d) = %v, want %v", status, got, want)
		}
	}
}

func TestRequestLogger(t *testing.T) {
	logs := captureLogs(t)

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(RequestLogger)
	router.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream"))
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "192.168.1.100:54321"
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	router.ServeHTTP(httptest.NewRecorder(), req)

	if strings.Contains(logs.String(), testAPIKey) {
		t.Fatal("request log contains the Authorization header")
	}
	line := decodeLogLine(t, logs)
	if line["msg"] != "request completed" || line["level"] != "ERROR" {
		t.Errorf("msg/level = %v/%v, want request completed/ERROR", line["msg"], line["level"])
	}
	for _, field := range []string{"request_id", "method", "path", "duration_ms"} {
		if _, ok := line[field]; !ok {
			t.Errorf("missing field %s", field)
		}
	}
	if line["status"] != float64(http.StatusBadGateway) || line["bytes"] != float64(len("upstream")) {
		t.Errorf("status/bytes = %v/%v, want 502/8", line["status"], line["bytes"])
	}
	if line["remote_addr"] != "192.168.1.100:54321" {
		t.Errorf("remote_addr = %v", line["remote_addr"])
	}
}

func TestRequestLogger_ImplicitOK(t *testing.T) {
	logs := captureLogs(t)

	RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if line := decodeLogLine(t, logs); line["status"] != float64(http.StatusOK) || line["level"] != "INFO" {
		t.Errorf("status/level = %v/%v, want 200/INFO", line["status"], line["level"])
	}
}

func TestRecoverer_PassThrough(t *testing.T) {
	handler, _ := okHandler()
	w := httptest.NewRecorder()
	Recoverer(handler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Errorf("got %d %q, want 200 OK", w.Code, w.Body.String())
	}
}

func TestRecoverer_HidesPanic(t *testing.T) {
	logs := captureLogs(t)
	const secret = "super-secret-database-password-12345"

	w := httptest.NewRecorder()
	Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(secret)
	})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), secret) {
		t.Error("response body carries the panic value")
	}
	var p Problem
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if p.Type != "https://liftlog.dev/errors/internal-error" || p.Detail != "Internal Server Error" {
		t.Errorf("problem = %+v, want generic internal error", p)
	}
	if out := logs.String(); !strings.Contains(out, "handler panic") || !strings.Contains(out, secret) {
		t.Error("panic value missing from the log")
	}
}

func TestRecoverer_AbortHandler(t *testing.T) {
	defer func() {
		if rvr := recover(); rvr != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler re-raised", rvr)
		}
	}()
	Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	t.Error("ErrAbortHandler was swallowed")
}
