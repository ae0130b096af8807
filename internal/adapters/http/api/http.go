// Package api exposes tracking sessions over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/rinktrack/internal/adapters/autosave"
	"github.com/okian/rinktrack/internal/adapters/dataaccess"
	"github.com/okian/rinktrack/internal/adapters/export"
	service "github.com/okian/rinktrack/internal/app"
	"github.com/okian/rinktrack/internal/domain/dispatch"
	"github.com/okian/rinktrack/internal/domain/model"
	"github.com/okian/rinktrack/internal/domain/tracker"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. *service.Service implements it.
type Dependencies interface {
	OpenSession(ctx context.Context, cfg tracker.Config) (service.View, bool, error)
	CloseSession(ctx context.Context, gameID string) error
	Sessions() []string
	View(ctx context.Context, gameID string) (service.View, error)
	Finish(ctx context.Context, gameID string) (service.View, error)

	HandleKey(ctx context.Context, gameID string, key dispatch.KeyEvent) (dispatch.Result, error)
	Perform(ctx context.Context, gameID, requestID string, cmd dispatch.Command) (dispatch.Result, bool, error)
	AssignSlot(ctx context.Context, gameID string, slot int, playerID string) (service.View, error)

	RecordEvent(ctx context.Context, gameID string, ev model.Event) (model.Event, error)
	AmendEvent(ctx context.Context, gameID, eventID string, patch tracker.Patch) (model.Event, error)
	RetractEvent(ctx context.Context, gameID, eventID string) error
	Events(ctx context.Context, gameID string, f tracker.Filter) ([]model.Event, error)

	StartShift(ctx context.Context, gameID string, c service.ShiftChange) ([]model.Shift, error)
	EndShift(ctx context.Context, gameID string, c service.ShiftChange) ([]model.Shift, error)
	Shifts(ctx context.Context, gameID, playerID string) ([]model.Shift, error)

	Clock(ctx context.Context, gameID string, c service.ClockChange) (service.View, error)
	Undo(ctx context.Context, gameID string) (service.View, error)
	Redo(ctx context.Context, gameID string) (service.View, error)

	Save(ctx context.Context, gameID string) (autosave.Status, error)
	Sync(ctx context.Context, gameID string) (autosave.SyncReport, error)
	Export(ctx context.Context, gameID string, kind export.Kind) (export.Table, error)

	Query(ctx context.Context, entity string, f dataaccess.Filter) ([]dataaccess.Row, error)
	Entities() []string
}

// Server wires HTTP routes for the tracker API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	sessionsHandler *SessionsHandler
	inputHandler    *InputHandler
	eventsHandler   *EventsHandler
	shiftsHandler   *ShiftsHandler
	clockHandler    *ClockHandler
	persistHandler  *PersistenceHandler
	dataHandler     *DataHandler

	authToken string
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		sessionsHandler: &SessionsHandler{deps: deps},
		inputHandler:    &InputHandler{deps: deps},
		eventsHandler:   &EventsHandler{deps: deps},
		shiftsHandler:   &ShiftsHandler{deps: deps},
		clockHandler:    &ClockHandler{deps: deps},
		persistHandler:  &PersistenceHandler{deps: deps},
		dataHandler:     &DataHandler{deps: deps},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(AuthMiddleware(h, s.authToken), endpoint))
	}

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	sh := s.sessionsHandler
	route("GET /sessions", "sessions", sh.HandleList)
	route("POST /sessions", "sessions", sh.HandleOpen)
	route("GET /sessions/{id}", "session", sh.HandleGet)
	route("DELETE /sessions/{id}", "session", sh.HandleClose)
	route("POST /sessions/{id}/finish", "finish", sh.HandleFinish)

	ih := s.inputHandler
	route("POST /sessions/{id}/keys", "keys", ih.HandleKey)
	route("POST /sessions/{id}/actions", "actions", ih.HandleAction)
	route("PUT /sessions/{id}/slots/{slot}", "slots", ih.HandleAssignSlot)

	eh := s.eventsHandler
	route("GET /sessions/{id}/events", "events", eh.HandleList)
	route("POST /sessions/{id}/events", "events", eh.HandleCreate)
	route("PATCH /sessions/{id}/events/{eventID}", "event", eh.HandleAmend)
	route("DELETE /sessions/{id}/events/{eventID}", "event", eh.HandleRetract)

	fh := s.shiftsHandler
	route("GET /sessions/{id}/shifts", "shifts", fh.HandleList)
	route("POST /sessions/{id}/shifts/start", "shifts", fh.HandleStart)
	route("POST /sessions/{id}/shifts/end", "shifts", fh.HandleEnd)

	ch := s.clockHandler
	route("POST /sessions/{id}/clock", "clock", ch.HandleClock)
	route("POST /sessions/{id}/undo", "undo", ch.HandleUndo)
	route("POST /sessions/{id}/redo", "redo", ch.HandleRedo)

	ph := s.persistHandler
	route("POST /sessions/{id}/save", "save", ph.HandleSave)
	route("POST /sessions/{id}/sync", "sync", ph.HandleSync)
	route("GET /sessions/{id}/export", "export", ph.HandleExport)

	dh := s.dataHandler
	route("GET /data", "data", dh.HandleEntities)
	route("GET /data/{entity}", "data", dh.HandleQuery)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

// decode reads a JSON body into v. An empty body leaves v unchanged when
// allowEmpty is set.
func decode(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if allowEmpty && err == io.EOF {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}
