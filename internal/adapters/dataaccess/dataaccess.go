// Package dataaccess serves dashboard read queries keyed by entity name.
// Callers depend only on Querier: given an entity and filter parameters it
// returns a finite list of loosely typed rows or an error.
package dataaccess

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// Limits applied to every query.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

var (
	ErrUnknownEntity = errors.New("unknown entity")
	ErrInvalidFilter = errors.New("invalid filter")
	ErrUnavailable   = errors.New("data source unavailable")
)

// Row is one loosely typed record.
type Row map[string]any

// Filter holds query parameters by name. The "limit" key caps the result.
type Filter map[string]string

// Querier answers entity queries.
type Querier interface {
	Query(ctx context.Context, entity string, f Filter) ([]Row, error)
	// Entities lists the entity names Query accepts.
	Entities() []string
}

// limit parses the "limit" parameter.
func (f Filter) limit() (int, error) {
	raw, ok := f["limit"]
	if !ok || raw == "" {
		return DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", ErrInvalidFilter)
	}
	return min(n, MaxLimit), nil
}

// check rejects parameters outside allowed and missing required ones.
func (f Filter) check(allowed []string, required ...string) error {
	known := map[string]bool{"limit": true}
	for _, k := range allowed {
		known[k] = true
	}
	var unknown []string
	for k := range f {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: unsupported parameter %q", ErrInvalidFilter, unknown[0])
	}
	for _, k := range required {
		if f[k] == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidFilter, k)
		}
	}
	return nil
}

func unknownEntity(entity string) error {
	return fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
}
