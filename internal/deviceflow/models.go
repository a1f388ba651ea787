package deviceflow

import (
	"time"

	"golang.org/x/oauth2"
)

// DeviceCodeResponse holds the device authorization response per RFC 8628
// section 3.2. It is created once per flow and read-only afterwards.
type DeviceCodeResponse struct {
	// Required fields per RFC 8628 section 3.2
	UserCode        string `json:"user_code"`
	DeviceCode      string `json:"device_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"` // Seconds from issuance
	Interval        int    `json:"interval"`   // Poll interval in seconds

	// Optional verification_uri_complete field per RFC 8628 section 3.3.1
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`

	// Message carries human-readable sign-in instructions when the server
	// provides them.
	Message string `json:"message,omitempty"`

	// ExpiresAt is the absolute expiry time, computed once when the
	// response is received.
	ExpiresAt time.Time `json:"-"`
}

// TokenResponse holds the token payload returned once the user completes
// authorization, per RFC 8628 section 3.5.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`

	// ExpiresAt is the absolute access token expiry, computed when the
	// response is received.
	ExpiresAt time.Time `json:"-"`
}

// Token converts the response to an oauth2.Token so callers can plug the
// result into the golang.org/x/oauth2 ecosystem.
func (t *TokenResponse) Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}
	if t.IDToken != "" {
		tok = tok.WithExtra(map[string]interface{}{"id_token": t.IDToken})
	}
	return tok
}

// tokenEndpointReply is the raw token endpoint body. The endpoint returns
// either an OAuth error object or a token payload, never both.
type tokenEndpointReply struct {
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`

	AccessToken  string `json:"access_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}
