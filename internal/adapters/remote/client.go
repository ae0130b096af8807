// Package remote pushes full session snapshots to the hosted backend.
//
// Every push is a complete upsert of the session keyed by game id, so a
// failed push never needs replaying: the next push carries everything.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/okian/rinktrack/internal/domain/model"
	"github.com/okian/rinktrack/pkg/logger"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 4
	maxErrorBody       = 512
)

// Client is an HTTP client for the snapshot endpoint.
type Client struct {
	baseURL     string
	token       string
	http        *http.Client
	maxAttempts int
	newBackOff  func() backoff.BackOff
	logger      logger.Logger
}

// New creates a client for the backend rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, baseURL)
	}
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: defaultTimeout},
		maxAttempts: defaultMaxAttempts,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
		logger: logger.Get().Named("remote"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Push uploads snap and reports the number of attempts made. Server
// errors and transport failures are retried; client errors are not.
func (c *Client) Push(ctx context.Context, snap model.Snapshot) (int, error) {
	body, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("encode snapshot: %w", err)
	}
	endpoint := c.baseURL + "/games/" + url.PathEscape(snap.GameID) + "/snapshot"
	key := snap.GameID + ":" + strconv.FormatUint(snap.Revision, 10)

	attempts := 0
	op := func() (struct{}, error) {
		attempts++
		err := c.put(ctx, endpoint, key, body)
		if err == nil {
			return struct{}{}, nil
		}
		c.logger.Debug(ctx, "push attempt failed",
			logger.String("game", snap.GameID),
			logger.Int("attempt", attempts),
			logger.Error(err),
		)
		return struct{}{}, classify(err)
	}

	_, err = backoff.Retry(ctx, op,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.maxAttempts)),
	)
	return attempts, err
}

func (c *Client) put(ctx context.Context, endpoint, key string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", key)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
}

// classify stops retrying on rejections.
func classify(err error) error {
	if errors.Is(err, ErrRejected) {
		return backoff.Permanent(err)
	}
	return err
}
