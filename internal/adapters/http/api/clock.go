package api

import (
	"net/http"

	service "github.com/okian/rinktrack/internal/app"
)

// ClockHandler serves clock operations and undo/redo.
type ClockHandler struct {
	deps Dependencies
}

// HandleClock handles POST /sessions/{id}/clock.
func (h *ClockHandler) HandleClock(w http.ResponseWriter, r *http.Request) {
	var c service.ClockChange
	if err := decode(r, &c, false); err != nil {
		writeError(w, err)
		return
	}
	v, err := h.deps.Clock(r.Context(), r.PathValue("id"), c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleUndo handles POST /sessions/{id}/undo.
func (h *ClockHandler) HandleUndo(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.Undo(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleRedo handles POST /sessions/{id}/redo.
func (h *ClockHandler) HandleRedo(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.Redo(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
