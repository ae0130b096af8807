package remote

import (
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/okian/rinktrack/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every push.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithMaxAttempts sets how many times a push is tried before giving up.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithBackOff sets the factory for the retry schedule. A fresh policy is
// built for every push.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) {
		if fn != nil {
			c.newBackOff = fn
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
