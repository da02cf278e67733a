package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/liftlog/internal/types"
)

// EntryPatchRequest is the body of PATCH /entries/{id}. An absent key leaves
// the field alone; null clears it.
type EntryPatchRequest struct {
	Weight types.Field[float64]    `json:"weight"`
	Unit   types.Field[types.Unit] `json:"unit"`
	Reps   types.Field[int]        `json:"reps"`
	Sets   types.Field[int]        `json:"sets"`
	Notes  *string                 `json:"notes" validate:"omitempty,max=1000"`
}

// UpdateEntry handles PATCH /api/v1/entries/{id}
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req EntryPatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	patch := types.EntryPatch{
		Weight: req.Weight,
		Unit:   req.Unit,
		Reps:   req.Reps,
		Sets:   req.Sets,
		Notes:  req.Notes,
	}

	updated, err := h.entries.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteEntry handles DELETE /api/v1/entries/{id}
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.entries.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		MapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
