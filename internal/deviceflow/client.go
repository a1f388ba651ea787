package deviceflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/wrale/oauth2-device-client/internal/authority"
	"github.com/wrale/oauth2-device-client/internal/persistence"
)

// defaultPollInterval is used when the server omits the interval field,
// per RFC 8628 section 3.2.
const defaultPollInterval = 5 * time.Second

// slowDownIncrement is added to the poll interval on each slow_down reply,
// per RFC 8628 section 3.5.
const slowDownIncrement = 5 * time.Second

// Doer executes a single HTTP request. *http.Client satisfies it; tests
// substitute scripted transports.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client drives the device authorization grant against one authority.
// A Client is safe for concurrent use; concurrent flows share nothing but
// the persistence backend.
type Client struct {
	clientID  string
	authority string

	http        Doer
	resolver    authority.Resolver
	clock       Clock
	logger      *slog.Logger
	persist     persistence.Persistence
	onSaveError func(error)
}

// NewClient creates a device flow client for the given client ID and
// authority root URL, applying any options.
func NewClient(clientID, authorityURL string, opts ...Option) (*Client, error) {
	if clientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if authorityURL == "" {
		return nil, fmt.Errorf("authority URL is required")
	}

	c := &Client{
		clientID:  clientID,
		authority: strings.TrimSuffix(authorityURL, "/"),
		http:      &http.Client{Timeout: 30 * time.Second},
		resolver:  authority.Static{},
		clock:     systemClock{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RequestDeviceCode issues the initial device authorization request and
// returns the user/device code pair. Exactly one network call is made; any
// transport-level retry belongs to the injected HTTP client.
func (c *Client) RequestDeviceCode(ctx context.Context, scopes []string) (*DeviceCodeResponse, error) {
	endpoints, err := c.resolver.Resolve(ctx, c.authority)
	if err != nil {
		return nil, fmt.Errorf("resolving authority %q: %w", c.authority, err)
	}
	return c.requestDeviceCode(ctx, endpoints, scopes)
}

func (c *Client) requestDeviceCode(ctx context.Context, endpoints authority.Endpoints, scopes []string) (*DeviceCodeResponse, error) {
	const op = "device code request"

	reqURL := endpoints.DeviceAuthorizationEndpoint + "?" + deviceCodeQuery(c.clientID, scopes)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building device code request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	issuedAt := c.clock.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ServerError{
			Op:          op,
			StatusCode:  resp.StatusCode,
			Description: strings.TrimSpace(string(body)),
		}
	}

	var code DeviceCodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&code); err != nil {
		return nil, &ServerError{
			Op:          op,
			StatusCode:  resp.StatusCode,
			Description: fmt.Sprintf("decoding response: %v", err),
		}
	}
	if missing := missingDeviceCodeFields(&code); missing != "" {
		return nil, &ServerError{
			Op:          op,
			StatusCode:  resp.StatusCode,
			Description: "response missing required field " + missing,
		}
	}

	code.ExpiresAt = issuedAt.Add(time.Duration(code.ExpiresIn) * time.Second)

	c.logger.Debug("device code issued",
		"user_code", code.UserCode,
		"verification_uri", code.VerificationURI,
		"expires_in", code.ExpiresIn,
		"interval", code.Interval)

	return &code, nil
}

// missingDeviceCodeFields names the first absent required field, or returns
// the empty string when the response is complete.
func missingDeviceCodeFields(code *DeviceCodeResponse) string {
	switch {
	case code.UserCode == "":
		return "user_code"
	case code.DeviceCode == "":
		return "device_code"
	case code.VerificationURI == "":
		return "verification_uri"
	case code.ExpiresIn <= 0:
		return "expires_in"
	case code.Interval <= 0:
		return "interval"
	}
	return ""
}

// requestToken issues one token endpoint poll. A nil error means the user
// completed authorization and the payload is final. errAuthorizationPending
// and errSlowDown keep the flow polling; everything else is terminal.
func (c *Client) requestToken(ctx context.Context, endpoints authority.Endpoints, scopes []string, deviceCode string) (*TokenResponse, error) {
	const op = "token request"

	body := tokenRequestBody(c.clientID, scopes, deviceCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoints.TokenEndpoint, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	receivedAt := c.clock.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var reply tokenEndpointReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, &ServerError{
			Op:          op,
			StatusCode:  resp.StatusCode,
			Description: fmt.Sprintf("decoding response: %v", err),
		}
	}

	switch reply.Error {
	case "":
		// Token payload expected below.
	case ErrorCodeAuthorizationPending:
		return nil, errAuthorizationPending
	case ErrorCodeSlowDown:
		return nil, errSlowDown
	default:
		return nil, &ServerError{
			Op:          op,
			StatusCode:  resp.StatusCode,
			Code:        reply.Error,
			Description: reply.ErrorDescription,
		}
	}

	if reply.AccessToken == "" {
		return nil, &ServerError{
			Op:          op,
			StatusCode:  resp.StatusCode,
			Description: "response missing required field access_token",
		}
	}

	token := &TokenResponse{
		AccessToken:  reply.AccessToken,
		TokenType:    reply.TokenType,
		ExpiresIn:    reply.ExpiresIn,
		RefreshToken: reply.RefreshToken,
		IDToken:      reply.IDToken,
		Scope:        reply.Scope,
	}
	if reply.ExpiresIn > 0 {
		token.ExpiresAt = receivedAt.Add(time.Duration(reply.ExpiresIn) * time.Second)
	}
	return token, nil
}
