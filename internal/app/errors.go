package service

import (
	"errors"
	"strconv"

	"github.com/okian/rinktrack/internal/domain/model"
)

var (
	ErrNotStarted      = errors.New("service not started")
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownClockOp  = errors.New("unknown clock operation")
	ErrQueryDisabled   = errors.New("data queries are not configured")
)

// notFound reports an unknown session as both ErrSessionNotFound and
// model.ErrNotFound.
func notFound(gameID string) error {
	return &model.Error{Op: "service.session", Kind: model.ErrNotFound, Detail: strconv.Quote(gameID), Err: ErrSessionNotFound}
}
