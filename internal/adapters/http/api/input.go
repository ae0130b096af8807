package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/rinktrack/internal/domain/dispatch"
)

// InputHandler routes keyboard input and named actions to a session's
// dispatcher.
type InputHandler struct {
	deps Dependencies
}

type keyRequest struct {
	dispatch.KeyEvent
	// Chord is an alternative to the discrete fields, e.g. "ctrl+z".
	Chord string `json:"chord,omitempty"`
}

type actionRequest struct {
	dispatch.Command
	RequestID string `json:"request_id,omitempty"`
}

type actionResponse struct {
	Result    dispatch.Result `json:"result"`
	Duplicate bool            `json:"duplicate"`
}

type slotRequest struct {
	PlayerID string `json:"player_id"`
}

// HandleKey handles POST /sessions/{id}/keys. An unbound key is answered
// with handled=false.
func (h *InputHandler) HandleKey(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	key := req.KeyEvent
	if req.Chord != "" {
		key = dispatch.ParseChord(req.Chord)
	}
	if key.Key == "" {
		writeError(w, fmt.Errorf("%w: key is required", ErrBadRequest))
		return
	}
	res, err := h.deps.HandleKey(r.Context(), r.PathValue("id"), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleAction handles POST /sessions/{id}/actions.
func (h *InputHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	if _, err := dispatch.ParseAction(string(req.Action)); err != nil {
		writeError(w, err)
		return
	}
	if req.RequestID == "" {
		req.RequestID = r.Header.Get("Idempotency-Key")
	}
	res, dup, err := h.deps.Perform(r.Context(), r.PathValue("id"), req.RequestID, req.Command)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Result: res, Duplicate: dup})
}

// HandleAssignSlot handles PUT /sessions/{id}/slots/{slot}. An empty
// player id clears the slot.
func (h *InputHandler) HandleAssignSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := strconv.Atoi(r.PathValue("slot"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: slot %q", ErrBadRequest, r.PathValue("slot")))
		return
	}
	var req slotRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	v, err := h.deps.AssignSlot(r.Context(), r.PathValue("id"), slot, req.PlayerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
