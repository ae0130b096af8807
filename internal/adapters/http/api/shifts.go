package api

import (
	"context"
	"fmt"
	"net/http"

	service "github.com/okian/rinktrack/internal/app"
	"github.com/okian/rinktrack/internal/domain/model"
)

// ShiftsHandler serves the shift tracker of a session.
type ShiftsHandler struct {
	deps Dependencies
}

// HandleList handles GET /sessions/{id}/shifts?player_id=.
func (h *ShiftsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	shifts, err := h.deps.Shifts(r.Context(), r.PathValue("id"), r.URL.Query().Get("player_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeShifts(w, shifts)
}

// HandleStart handles POST /sessions/{id}/shifts/start.
func (h *ShiftsHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.deps.StartShift)
}

// HandleEnd handles POST /sessions/{id}/shifts/end.
func (h *ShiftsHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.deps.EndShift)
}

func (h *ShiftsHandler) change(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, gameID string, c service.ShiftChange) ([]model.Shift, error)) {
	var c service.ShiftChange
	if err := decode(r, &c, false); err != nil {
		writeError(w, err)
		return
	}
	if c.PlayerID == "" {
		writeError(w, fmt.Errorf("%w: player_id is required", ErrBadRequest))
		return
	}
	shifts, err := fn(r.Context(), r.PathValue("id"), c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeShifts(w, shifts)
}

func writeShifts(w http.ResponseWriter, shifts []model.Shift) {
	if shifts == nil {
		shifts = []model.Shift{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"shifts": shifts})
}
