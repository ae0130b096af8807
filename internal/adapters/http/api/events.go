package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/rinktrack/internal/domain/model"
	"github.com/okian/rinktrack/internal/domain/tracker"
)

// EventsHandler serves the event log of a session.
type EventsHandler struct {
	deps Dependencies
}

type eventRequest struct {
	Type      model.EventType `json:"type"`
	Period    *int            `json:"period,omitempty"`
	Seconds   *int            `json:"seconds,omitempty"`
	Side      model.Side      `json:"side,omitempty"`
	TeamID    string          `json:"team_id,omitempty"`
	Players   []string        `json:"players,omitempty"`
	Location  *model.Point    `json:"location,omitempty"`
	Highlight bool            `json:"highlight,omitempty"`
	Detail    string          `json:"detail,omitempty"`
}

// event converts the request. Without a period the event is placed at the
// session's current time.
func (req eventRequest) event() (model.Event, error) {
	if _, err := model.ParseEventType(string(req.Type)); err != nil {
		return model.Event{}, err
	}
	ev := model.Event{
		Type:      req.Type,
		Side:      req.Side,
		TeamID:    req.TeamID,
		Players:   req.Players,
		Location:  req.Location,
		Highlight: req.Highlight,
		Detail:    req.Detail,
	}
	switch {
	case req.Period != nil:
		ev.Time.Period = *req.Period
		if req.Seconds != nil {
			ev.Time.Seconds = *req.Seconds
		}
	case req.Seconds != nil:
		return model.Event{}, fmt.Errorf("%w: seconds given without period", ErrBadRequest)
	}
	return ev, nil
}

// HandleList handles GET /sessions/{id}/events. Query parameters: type
// (comma separated), period, side, player_id, highlight.
func (h *EventsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	f, err := parseEventFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	events, err := h.deps.Events(r.Context(), r.PathValue("id"), f)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func parseEventFilter(r *http.Request) (tracker.Filter, error) {
	q := r.URL.Query()
	var f tracker.Filter
	if types := q.Get("type"); types != "" {
		for _, s := range strings.Split(types, ",") {
			t, err := model.ParseEventType(strings.TrimSpace(s))
			if err != nil {
				return f, err
			}
			f.Types = append(f.Types, t)
		}
	}
	if p := q.Get("period"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return f, fmt.Errorf("%w: period %q", ErrBadRequest, p)
		}
		f.Period = n
	}
	if side := q.Get("side"); side != "" {
		f.Side = model.Side(side)
		if !f.Side.Valid() {
			return f, fmt.Errorf("%w: side %q", ErrBadRequest, side)
		}
	}
	f.PlayerID = q.Get("player_id")
	if hl := q.Get("highlight"); hl != "" {
		b, err := strconv.ParseBool(hl)
		if err != nil {
			return f, fmt.Errorf("%w: highlight %q", ErrBadRequest, hl)
		}
		f.HighlightOnly = b
	}
	return f, nil
}

// HandleCreate handles POST /sessions/{id}/events.
func (h *EventsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	ev, err := req.event()
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.deps.RecordEvent(r.Context(), r.PathValue("id"), ev)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// HandleAmend handles PATCH /sessions/{id}/events/{eventID}.
func (h *EventsHandler) HandleAmend(w http.ResponseWriter, r *http.Request) {
	var patch tracker.Patch
	if err := decode(r, &patch, false); err != nil {
		writeError(w, err)
		return
	}
	out, err := h.deps.AmendEvent(r.Context(), r.PathValue("id"), r.PathValue("eventID"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleRetract handles DELETE /sessions/{id}/events/{eventID}.
func (h *EventsHandler) HandleRetract(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.RetractEvent(r.Context(), r.PathValue("id"), r.PathValue("eventID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
