package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/liftlog/internal/entry"
	"github.com/hyperengineering/liftlog/internal/ingest"
	"github.com/hyperengineering/liftlog/internal/query"
	"github.com/hyperengineering/liftlog/internal/remote"
	"github.com/hyperengineering/liftlog/internal/session"
	"github.com/hyperengineering/liftlog/internal/store"
	"github.com/hyperengineering/liftlog/internal/validation"
)

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

const problemBase = "https://liftlog.dev/errors/"

// problemTypes maps HTTP status codes to RFC 7807 type URIs and titles.
var problemTypes = map[int]struct {
	typeURI string
	title   string
}{
	http.StatusBadRequest:          {problemBase + "bad-request", "Bad Request"},
	http.StatusUnauthorized:        {problemBase + "unauthorized", "Unauthorized"},
	http.StatusNotFound:            {problemBase + "not-found", "Not Found"},
	http.StatusConflict:            {problemBase + "conflict", "Conflict"},
	http.StatusUnprocessableEntity: {problemBase + "validation-error", "Validation Error"},
	http.StatusInternalServerError: {problemBase + "internal-error", "Internal Server Error"},
	http.StatusBadGateway:          {problemBase + "remote-unavailable", "Bad Gateway"},
	http.StatusServiceUnavailable:  {problemBase + "service-unavailable", "Service Unavailable"},
}

func problemFor(r *http.Request, status int, detail string) Problem {
	pt, ok := problemTypes[status]
	if !ok {
		pt.typeURI = problemBase + "unknown"
		pt.title = http.StatusText(status)
	}
	return Problem{
		Type:     pt.typeURI,
		Title:    pt.title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	}
}

// WriteProblem writes an RFC 7807 Problem Details response.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	writeProblemJSON(w, status, problemFor(r, status, detail))
}

// ProblemWithErrors extends Problem with validation error details.
type ProblemWithErrors struct {
	Problem
	Errors []validation.ValidationError `json:"errors,omitempty"`
}

// WriteProblemWithErrors writes a 422 Problem Details response with field errors.
func WriteProblemWithErrors(w http.ResponseWriter, r *http.Request, detail string, errs []validation.ValidationError) {
	writeProblemJSON(w, http.StatusUnprocessableEntity, ProblemWithErrors{
		Problem: problemFor(r, http.StatusUnprocessableEntity, detail),
		Errors:  errs,
	})
}

func writeProblemJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode problem response", "component", "api", "error", err)
	}
}

// MapError converts domain errors to Problem Details responses.
func MapError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.ValidationError
	var verrs validation.Errors
	switch {
	case errors.As(err, &verr):
		WriteProblemWithErrors(w, r, verr.Message, []validation.ValidationError{*verr})
	case errors.As(err, &verrs):
		WriteProblemWithErrors(w, r, "Request contains invalid fields", verrs)
	case errors.Is(err, store.ErrNotFound):
		WriteProblem(w, r, http.StatusNotFound, "Resource not found")
	case errors.Is(err, store.ErrDuplicateExercise):
		WriteProblem(w, r, http.StatusConflict, "Exercise already exists")
	case errors.Is(err, store.ErrInvalidTransition), errors.Is(err, ingest.ErrNotRetryable):
		WriteProblem(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrInvalidDate):
		WriteProblemWithErrors(w, r, "Request contains invalid fields",
			[]validation.ValidationError{{Field: "date", Message: session.ErrInvalidDate.Error()}})
	case errors.Is(err, entry.ErrEmptyPatch):
		WriteProblem(w, r, http.StatusBadRequest, "Patch changes nothing")
	case errors.Is(err, ingest.ErrNoInterpreter):
		WriteProblem(w, r, http.StatusServiceUnavailable, "No interpreter configured")
	case errors.Is(err, query.ErrUnavailable):
		WriteProblem(w, r, http.StatusServiceUnavailable, "No question answering provider configured")
	case errors.Is(err, remote.ErrUnauthorized):
		WriteProblem(w, r, http.StatusBadGateway, "Remote store rejected the access token")
	case errors.Is(err, remote.ErrStatus):
		WriteProblem(w, r, http.StatusBadGateway, "Remote store request failed")
	default:
		// Never expose internal error details to client
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}
