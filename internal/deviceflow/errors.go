// Package deviceflow implements the client side of the OAuth 2.0 Device
// Authorization Grant per RFC 8628.
package deviceflow

import (
	"errors"
	"fmt"
)

// OAuth error codes returned by the token endpoint per RFC 8628 section 3.5.
const (
	ErrorCodeAuthorizationPending = "authorization_pending"
	ErrorCodeSlowDown             = "slow_down"
	ErrorCodeAccessDenied         = "access_denied"
	ErrorCodeExpiredToken         = "expired_token"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeInvalidRequest       = "invalid_request"
)

// Common errors that terminate a device authorization flow.
var (
	// ErrDeviceCodeExpired indicates the device code expired before the
	// user completed authorization.
	ErrDeviceCodeExpired = errors.New("device code expired")

	// ErrDeviceCodeCancelled indicates the caller cancelled the flow
	// before the user completed authorization.
	ErrDeviceCodeCancelled = errors.New("device code flow cancelled")
)

// Internal markers for token endpoint replies that keep the flow polling.
// They never escape the polling engine.
var (
	errAuthorizationPending = errors.New(ErrorCodeAuthorizationPending)
	errSlowDown             = errors.New(ErrorCodeSlowDown)
)

// NetworkError indicates a transport-level failure with no usable server
// response. The failed operation and the underlying error are preserved.
type NetworkError struct {
	Op  string // "device code request" or "token request"
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError indicates the server answered but the response was either
// malformed or carried a terminal OAuth error payload.
type ServerError struct {
	Op          string
	StatusCode  int    // HTTP status, 0 when the body itself was at fault
	Code        string // OAuth error code, empty for malformed responses
	Description string // Server-supplied error_description or parse detail
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: server returned %q: %s", e.Op, e.Code, e.Description)
	}
	return fmt.Sprintf("%s: malformed server response (status %d): %s", e.Op, e.StatusCode, e.Description)
}
