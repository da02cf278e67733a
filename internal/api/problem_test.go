package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperengineering/liftlog/internal/entry"
	"github.com/hyperengineering/liftlog/internal/ingest"
	"github.com/hyperengineering/liftlog/internal/remote"
	"github.com/hyperengineering/liftlog/internal/session"
	"github.com/hyperengineering/liftlog/internal/store"
	"github.com/hyperengineering/liftlog/internal/validation"
)

func TestWriteProblem(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/abc", nil)
	w := httptest.NewRecorder()

	WriteProblem(w, req, http.StatusNotFound, "Resource not found")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q, want application/problem+json", ct)
	}

	var p Problem
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := Problem{
		Type:     "https://liftlog.dev/errors/not-found",
		Title:    "Not Found",
		Status:   404,
		Detail:   "Resource not found",
		Instance: "/api/v1/sessions/abc",
	}
	if p != want {
		t.Errorf("problem = %+v, want %+v", p, want)
	}
}

func TestWriteProblem_UnknownStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	WriteProblem(w, req, http.StatusTeapot, "short and stout")

	var p Problem
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Type != "https://liftlog.dev/errors/unknown" {
		t.Errorf("type = %q, want unknown", p.Type)
	}
	if p.Title != http.StatusText(http.StatusTeapot) {
		t.Errorf("title = %q", p.Title)
	}
}

func TestWriteProblemWithErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/log", nil)
	w := httptest.NewRecorder()

	WriteProblemWithErrors(w, req, "Input cannot be empty", []validation.ValidationError{
		{Field: "input", Message: "Input cannot be empty"},
	})

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
	var p ProblemWithErrors
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Type != "https://liftlog.dev/errors/validation-error" {
		t.Errorf("type = %q", p.Type)
	}
	if len(p.Errors) != 1 || p.Errors[0].Field != "input" {
		t.Errorf("errors = %+v, want one error on input", p.Errors)
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{"validation", &validation.ValidationError{Field: "reps", Message: "Reps must be between 1 and 100"}, 422, "Reps must be between 1 and 100"},
		{"field errors", validation.Errors{{Field: "name", Message: "is required"}}, 422, "Request contains invalid fields"},
		{"not found", fmt.Errorf("get entry: %w", store.ErrNotFound), 404, "Resource not found"},
		{"duplicate exercise", store.ErrDuplicateExercise, 409, "Exercise already exists"},
		{"terminal queue item", store.ErrInvalidTransition, 409, store.ErrInvalidTransition.Error()},
		{"not retryable", fmt.Errorf("retry x (parsed): %w", ingest.ErrNotRetryable), 409, "retry x (parsed): only failed items can be retried"},
		{"invalid date", session.ErrInvalidDate, 422, "Request contains invalid fields"},
		{"empty patch", entry.ErrEmptyPatch, 400, "Patch changes nothing"},
		{"no interpreter", ingest.ErrNoInterpreter, 503, "No interpreter configured"},
		{"remote unauthorized", fmt.Errorf("push sessions: %w", remote.ErrUnauthorized), 502, "Remote store rejected the access token"},
		{"remote status", &remote.StatusError{Code: 500, Body: "boom"}, 502, "Remote store request failed"},
		{"unknown", errors.New("disk on fire"), 500, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/test", nil)
			w := httptest.NewRecorder()

			MapError(w, req, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var p Problem
			if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if p.Detail != tt.wantDetail {
				t.Errorf("detail = %q, want %q", p.Detail, tt.wantDetail)
			}
		})
	}
}

func TestMapError_NoInternalLeak(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/test", nil)
	w := httptest.NewRecorder()

	MapError(w, req, errors.New("sqlite: /home/user/data/liftlog.db is locked"))

	if strings.Contains(w.Body.String(), "liftlog.db") {
		t.Error("response leaks internal error text")
	}
}
