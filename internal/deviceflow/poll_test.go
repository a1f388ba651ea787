package deviceflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wrale/oauth2-device-client/internal/authority"
)

const (
	pendingBody  = `{"error":"authorization_pending","error_description":"still pending"}`
	slowDownBody = `{"error":"slow_down","error_description":"back off"}`
	deniedBody   = `{"error":"access_denied","error_description":"user said no"}`
	tokenBody    = `{"access_token":"at-1","refresh_token":"rt-1","token_type":"Bearer","expires_in":3600}`
)

var testEndpoints = authority.Endpoints{
	Issuer:                      "https://auth.example.com",
	DeviceAuthorizationEndpoint: "https://auth.example.com/device/code",
	TokenEndpoint:               "https://auth.example.com/device/token",
}

func testDeviceCode(issuedAt time.Time, interval, expiresIn int) *DeviceCodeResponse {
	return &DeviceCodeResponse{
		UserCode:        "WDJB-MJHT",
		DeviceCode:      "dev-code-123",
		VerificationURI: "https://auth.example.com/device",
		ExpiresIn:       expiresIn,
		Interval:        interval,
		ExpiresAt:       issuedAt.Add(time.Duration(expiresIn) * time.Second),
	}
}

func TestPollTokenSucceedsAfterPending(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	doer := &scriptedDoer{replies: []string{pendingBody, pendingBody, tokenBody}}
	c := newTestClient(t, clock, doer)

	code := testDeviceCode(start, 5, 900)
	state, token, err := c.pollToken(context.Background(), testEndpoints, nil, code)
	if err != nil {
		t.Fatalf("pollToken: %v", err)
	}
	if state != StateSucceeded {
		t.Errorf("state = %s, want %s", state, StateSucceeded)
	}
	if token.AccessToken != "at-1" {
		t.Errorf("access token = %q, want %q", token.AccessToken, "at-1")
	}
	if token.ExpiresAt.IsZero() {
		t.Error("expected token expiry to be set")
	}
	if got := doer.callCount(); got != 3 {
		t.Errorf("poll count = %d, want 3", got)
	}
}

func TestPollTokenExpiryBoundsAttempts(t *testing.T) {
	// interval 5s, expires_in 16s: ticks at 5, 10 and 15 seconds poll,
	// the tick due at 20 seconds sees the code expired and never polls.
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	doer := &scriptedDoer{replies: []string{pendingBody}}
	c := newTestClient(t, clock, doer)

	code := testDeviceCode(start, 5, 16)
	state, token, err := c.pollToken(context.Background(), testEndpoints, nil, code)
	if !errors.Is(err, ErrDeviceCodeExpired) {
		t.Fatalf("error = %v, want ErrDeviceCodeExpired", err)
	}
	if state != StateExpired {
		t.Errorf("state = %s, want %s", state, StateExpired)
	}
	if token != nil {
		t.Errorf("token = %+v, want nil", token)
	}
	if got := doer.callCount(); got != 3 {
		t.Errorf("poll count = %d, want exactly 3", got)
	}
}

func TestPollTokenCancelledBeforeFirstTick(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	doer := &scriptedDoer{replies: []string{tokenBody}}
	c := newTestClient(t, clock, doer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code := testDeviceCode(start, 5, 900)
	state, _, err := c.pollToken(ctx, testEndpoints, nil, code)
	if !errors.Is(err, ErrDeviceCodeCancelled) {
		t.Fatalf("error = %v, want ErrDeviceCodeCancelled", err)
	}
	if state != StateCancelled {
		t.Errorf("state = %s, want %s", state, StateCancelled)
	}
	if got := doer.callCount(); got != 0 {
		t.Errorf("poll count = %d, want 0: cancellation must precede any network call", got)
	}
}

func TestPollTokenExpiredBeforeFirstTick(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	doer := &scriptedDoer{replies: []string{tokenBody}}
	c := newTestClient(t, clock, doer)

	// Expires in 2 seconds, first tick fires at 5 seconds.
	code := testDeviceCode(start, 5, 2)
	state, _, err := c.pollToken(context.Background(), testEndpoints, nil, code)
	if !errors.Is(err, ErrDeviceCodeExpired) {
		t.Fatalf("error = %v, want ErrDeviceCodeExpired", err)
	}
	if state != StateExpired {
		t.Errorf("state = %s, want %s", state, StateExpired)
	}
	if got := doer.callCount(); got != 0 {
		t.Errorf("poll count = %d, want 0: expiry must precede the network call", got)
	}
}

func TestPollTokenTransportFailureIsTerminal(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	doer := &scriptedDoer{replies: []string{netErrReply}}
	c := newTestClient(t, clock, doer)

	code := testDeviceCode(start, 5, 900)
	state, _, err := c.pollToken(context.Background(), testEndpoints, nil, code)
	if state != StateFailed {
		t.Errorf("state = %s, want %s", state, StateFailed)
	}
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("error = %v, want *NetworkError", err)
	}
	if got := doer.callCount(); got != 1 {
		t.Errorf("poll count = %d, want 1: transport failures are not retried", got)
	}
}

func TestPollTokenServerErrorIsTerminal(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	doer := &scriptedDoer{replies: []string{pendingBody, deniedBody}}
	c := newTestClient(t, clock, doer)

	code := testDeviceCode(start, 5, 900)
	state, _, err := c.pollToken(context.Background(), testEndpoints, nil, code)
	if state != StateFailed {
		t.Errorf("state = %s, want %s", state, StateFailed)
	}
	var srvErr *ServerError
	if !errors.As(err, &srvErr) {
		t.Fatalf("error = %v, want *ServerError", err)
	}
	if srvErr.Code != ErrorCodeAccessDenied {
		t.Errorf("server error code = %q, want %q", srvErr.Code, ErrorCodeAccessDenied)
	}
	if got := doer.callCount(); got != 2 {
		t.Errorf("poll count = %d, want 2", got)
	}
}

func TestPollTokenSlowDownGrowsInterval(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	doer := &scriptedDoer{replies: []string{slowDownBody, pendingBody, tokenBody}}
	c := newTestClient(t, clock, doer)

	code := testDeviceCode(start, 5, 900)
	state, _, err := c.pollToken(context.Background(), testEndpoints, nil, code)
	if err != nil {
		t.Fatalf("pollToken: %v", err)
	}
	if state != StateSucceeded {
		t.Errorf("state = %s, want %s", state, StateSucceeded)
	}

	// Ticks at +5s (slow_down), then +10s twice after the back-off.
	wantNow := start.Add(25 * time.Second)
	if got := clock.Now(); !got.Equal(wantNow) {
		t.Errorf("clock after flow = %s, want %s", got, wantNow)
	}
}
