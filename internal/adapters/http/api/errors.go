package api

import (
	"errors"
	"net/http"

	"github.com/okian/rinktrack/internal/adapters/autosave"
	"github.com/okian/rinktrack/internal/adapters/dataaccess"
	"github.com/okian/rinktrack/internal/adapters/export"
	service "github.com/okian/rinktrack/internal/app"
	"github.com/okian/rinktrack/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
)

// statusFor maps an error kind to an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, model.ErrValidation),
		errors.Is(err, dataaccess.ErrInvalidFilter),
		errors.Is(err, export.ErrUnknownKind):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, model.ErrNotFound),
		errors.Is(err, dataaccess.ErrUnknownEntity):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, autosave.ErrSyncDisabled):
		return http.StatusConflict, "invalid_state_transition"
	case errors.Is(err, model.ErrOutOfRange):
		return http.StatusUnprocessableEntity, "out_of_range"
	case errors.Is(err, autosave.ErrSync):
		return http.StatusBadGateway, "sync_error"
	case errors.Is(err, autosave.ErrLocalStorage):
		return http.StatusInsufficientStorage, "local_storage_error"
	case errors.Is(err, service.ErrNotStarted),
		errors.Is(err, service.ErrQueryDisabled),
		errors.Is(err, dataaccess.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	}
	return http.StatusInternalServerError, "internal_error"
}
