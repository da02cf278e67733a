package api

import (
	"net/http"

	"github.com/hyperengineering/liftlog/internal/types"
)

// SessionPatchRequest is the body of PATCH /sessions/{id}.
type SessionPatchRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=100"`
	Date  *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Notes *string `json:"notes" validate:"omitempty,max=1000"`
}

// SessionDeleteResponse reports a cascade delete.
type SessionDeleteResponse struct {
	ID             string `json:"id"`
	EntriesDeleted int64  `json:"entries_deleted"`
}

// ListSessions handles GET /api/v1/sessions?date=YYYY-MM-DD. The date
// defaults to today.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.sessions.Today()
	}
	sessions, err := h.sessions.ListSessions(r.Context(), date)
	if err != nil {
		MapError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []types.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// GetSession handles GET /api/v1/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MustSessionFromContext(r.Context()))
}

// UpdateSession handles PATCH /api/v1/sessions/{id}
func (h *Handler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	sess := MustSessionFromContext(r.Context())

	var req SessionPatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	patch := types.SessionPatch{Name: req.Name, Date: req.Date, Notes: req.Notes}
	if patch.Empty() {
		WriteProblem(w, r, http.StatusBadRequest, "Patch changes nothing")
		return
	}

	updated, err := h.sessions.UpdateSession(r.Context(), sess.ID, patch)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// EndSession handles POST /api/v1/sessions/{id}/end
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	sess := MustSessionFromContext(r.Context())
	if !sess.Active() {
		WriteProblem(w, r, http.StatusConflict, "Session already ended")
		return
	}
	ended, err := h.sessions.EndSession(r.Context(), sess.ID)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ended)
}

// DeleteSession handles DELETE /api/v1/sessions/{id}. Entries go with it.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sess := MustSessionFromContext(r.Context())
	n, err := h.sessions.DeleteSession(r.Context(), sess.ID)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionDeleteResponse{ID: sess.ID, EntriesDeleted: n})
}

// ListSessionEntries handles GET /api/v1/sessions/{id}/entries
func (h *Handler) ListSessionEntries(w http.ResponseWriter, r *http.Request) {
	sess := MustSessionFromContext(r.Context())
	entries, err := h.entries.List(r.Context(), sess.ID)
	if err != nil {
		MapError(w, r, err)
		return
	}
	if entries == nil {
		entries = []types.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
