package remote

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidURL  = errors.New("invalid sync endpoint url")
	ErrRejected    = errors.New("snapshot rejected by backend")
	ErrUnavailable = errors.New("sync backend unavailable")
)

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.Code)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Body)
}

// Unwrap classifies client errors as rejections and everything else as
// unavailability.
func (e *StatusError) Unwrap() error {
	if e.Code >= 400 && e.Code < 500 && e.Code != 408 && e.Code != 429 {
		return ErrRejected
	}
	return ErrUnavailable
}
