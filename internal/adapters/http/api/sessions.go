package api

import (
	"net/http"

	service "github.com/okian/rinktrack/internal/app"
	"github.com/okian/rinktrack/internal/domain/tracker"
)

// SessionsHandler manages the lifecycle of tracking sessions.
type SessionsHandler struct {
	deps Dependencies
}

type openResponse struct {
	Resumed bool         `json:"resumed"`
	Session service.View `json:"session"`
}

// HandleList handles GET /sessions.
func (h *SessionsHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": h.deps.Sessions()})
}

// HandleOpen handles POST /sessions. A game already stored locally is
// resumed from its latest snapshot and answered with 200 instead of 201.
func (h *SessionsHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	var cfg tracker.Config
	if err := decode(r, &cfg, false); err != nil {
		writeError(w, err)
		return
	}
	v, resumed, err := h.deps.OpenSession(r.Context(), cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if resumed {
		status = http.StatusOK
	}
	writeJSON(w, status, openResponse{Resumed: resumed, Session: v})
}

// HandleGet handles GET /sessions/{id}.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.View(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleClose handles DELETE /sessions/{id}. The session is flushed to
// local storage and unloaded; its stored history stays.
func (h *SessionsHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.CloseSession(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleFinish handles POST /sessions/{id}/finish.
func (h *SessionsHandler) HandleFinish(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.Finish(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
