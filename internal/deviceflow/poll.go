// Package deviceflow implements the polling engine for the device
// authorization grant per RFC 8628 section 3.4.
package deviceflow

import (
	"context"
	"errors"
	"time"

	"github.com/wrale/oauth2-device-client/internal/authority"
)

// PollState is the state of one polling flow. Exactly one state holds at any
// evaluation instant; every state but StatePolling is terminal.
type PollState int

const (
	StatePolling PollState = iota
	StateSucceeded
	StateExpired
	StateCancelled
	StateFailed
)

func (s PollState) String() string {
	switch s {
	case StatePolling:
		return "polling"
	case StateSucceeded:
		return "succeeded"
	case StateExpired:
		return "expired"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// pollToken runs the polling state machine to a terminal state. Ticks fire
// at the server-specified interval; each tick checks cancellation, then
// expiry, then issues exactly one token request. Polls are strictly
// sequential, so a slow server never causes overlapping requests. The tick
// timer is stopped on every exit path.
func (c *Client) pollToken(ctx context.Context, endpoints authority.Endpoints, scopes []string, code *DeviceCodeResponse) (PollState, *TokenResponse, error) {
	interval := time.Duration(code.Interval) * time.Second
	if interval <= 0 {
		interval = defaultPollInterval
	}

	for {
		timer := c.clock.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.logger.Info("device code flow cancelled", "user_code", code.UserCode)
			return StateCancelled, nil, ErrDeviceCodeCancelled
		case <-timer.C():
		}

		// Cancellation is honored even when the tick was already due, so
		// no poll request is issued after the caller gave up.
		if ctx.Err() != nil {
			c.logger.Info("device code flow cancelled", "user_code", code.UserCode)
			return StateCancelled, nil, ErrDeviceCodeCancelled
		}

		// Expiry is checked before the network call so an expired flow
		// never issues one more wasted request.
		if c.clock.Now().After(code.ExpiresAt) {
			c.logger.Info("device code expired", "user_code", code.UserCode)
			return StateExpired, nil, ErrDeviceCodeExpired
		}

		token, err := c.requestToken(ctx, endpoints, scopes, code.DeviceCode)
		switch {
		case err == nil:
			return StateSucceeded, token, nil
		case errors.Is(err, errAuthorizationPending):
			c.logger.Info("authorization pending, will retry",
				"user_code", code.UserCode, "interval", interval)
		case errors.Is(err, errSlowDown):
			interval += slowDownIncrement
			c.logger.Info("server requested slower polling",
				"user_code", code.UserCode, "interval", interval)
		default:
			return StateFailed, nil, err
		}
	}
}
