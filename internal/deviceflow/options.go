package deviceflow

import (
	"log/slog"

	"github.com/wrale/oauth2-device-client/internal/authority"
	"github.com/wrale/oauth2-device-client/internal/persistence"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport used for all network calls.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		c.http = d
	}
}

// WithResolver replaces the authority metadata resolver. The default derives
// fixed, well-known endpoint paths from the authority root.
func WithResolver(r authority.Resolver) Option {
	return func(c *Client) {
		c.resolver = r
	}
}

// WithClock replaces the wall clock. Tests use a deterministic clock so the
// polling engine runs without real timers.
func WithClock(clock Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithPersistence enables the token cache backed by the given persistence
// plugin. The cache is loaded before each acquisition and saved after a
// successful one. Without this option no cache is kept.
func WithPersistence(p persistence.Persistence) Option {
	return func(c *Client) {
		c.persist = p
	}
}

// WithSaveErrorObserver registers a hook invoked when saving the token cache
// fails after a successful acquisition. The acquisition result is unaffected;
// the failure is also logged. Without an observer the failure is only logged.
func WithSaveErrorObserver(fn func(error)) Option {
	return func(c *Client) {
		c.onSaveError = fn
	}
}
