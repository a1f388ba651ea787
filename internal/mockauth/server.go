// Package mockauth implements an in-process authorization server speaking
// the device authorization grant. It backs integration-style tests and can
// be run locally against the demo CLI.
package mockauth

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Defaults applied when no option overrides them.
const (
	DefaultExpiresIn = 900 // Seconds until a pending code expires
	DefaultInterval  = 5   // Seconds between polls
)

// authorization tracks one issued device code until it expires or resolves.
type authorization struct {
	clientID   string
	scope      string
	userCode   string
	deviceCode string
	expiresAt  time.Time
	approved   bool
	denied     bool
	polls      int
}

// Server is the mock authorization server. All state is in memory.
type Server struct {
	baseURL   string
	expiresIn int
	interval  int

	// autoApproveAfter, when positive, approves a pending code once it
	// has been polled that many times. Zero means manual Approve/Deny.
	autoApproveAfter int

	mu        sync.Mutex
	byDevice  map[string]*authorization
	byUser    map[string]string // user code -> device code
	tokenSeq  int
	slowDowns map[string]int // device code -> remaining slow_down replies
}

// Option configures the mock server.
type Option func(*Server)

// WithExpiresIn sets the expires_in reported on issued codes.
func WithExpiresIn(seconds int) Option {
	return func(s *Server) { s.expiresIn = seconds }
}

// WithInterval sets the interval reported on issued codes.
func WithInterval(seconds int) Option {
	return func(s *Server) { s.interval = seconds }
}

// WithAutoApproveAfter approves each code automatically after n polls.
func WithAutoApproveAfter(n int) Option {
	return func(s *Server) { s.autoApproveAfter = n }
}

// New creates a mock authorization server. baseURL appears in issued
// verification URIs and in the metadata document.
func New(baseURL string, opts ...Option) *Server {
	s := &Server{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		expiresIn: DefaultExpiresIn,
		interval:  DefaultInterval,
		byDevice:  make(map[string]*authorization),
		byUser:    make(map[string]string),
		slowDowns: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetBaseURL updates the advertised base URL. Tests call this after binding
// an httptest server, before issuing any codes.
func (s *Server) SetBaseURL(baseURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURL = strings.TrimSuffix(baseURL, "/")
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/.well-known/oauth-authorization-server", s.handleMetadata)
	r.Get("/device/code", s.handleDeviceCode)
	r.Post("/device/token", s.handleToken)

	return r
}

// Approve marks the authorization for userCode as completed, as if the user
// had signed in at the verification URI.
func (s *Server) Approve(userCode string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	auth := s.lookupByUser(userCode)
	if auth == nil {
		return false
	}
	auth.approved = true
	return true
}

// Deny marks the authorization for userCode as rejected.
func (s *Server) Deny(userCode string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	auth := s.lookupByUser(userCode)
	if auth == nil {
		return false
	}
	auth.denied = true
	return true
}

// ScriptSlowDown makes the next n polls for deviceCode answer slow_down.
func (s *Server) ScriptSlowDown(deviceCode string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slowDowns[deviceCode] = n
}

// PollCount reports how many token polls deviceCode has received.
func (s *Server) PollCount(deviceCode string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if auth, ok := s.byDevice[deviceCode]; ok {
		return auth.polls
	}
	return 0
}

func (s *Server) lookupByUser(userCode string) *authorization {
	deviceCode, ok := s.byUser[normalizeUserCode(userCode)]
	if !ok {
		return nil
	}
	return s.byDevice[deviceCode]
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	base := s.baseURL
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"issuer":                        base,
		"device_authorization_endpoint": base + "/device/code",
		"token_endpoint":                base + "/device/token",
	})
}

func (s *Server) handleDeviceCode(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		writeError(w, "invalid_request", "The client_id parameter is REQUIRED")
		return
	}
	scope := r.URL.Query().Get("scope")

	deviceCode, err := generateDeviceCode()
	if err != nil {
		writeError(w, "server_error", "Failed to generate device code")
		return
	}
	userCode, err := generateUserCode()
	if err != nil {
		writeError(w, "server_error", "Failed to generate user code")
		return
	}

	s.mu.Lock()
	auth := &authorization{
		clientID:   clientID,
		scope:      scope,
		userCode:   userCode,
		deviceCode: deviceCode,
		expiresAt:  time.Now().Add(time.Duration(s.expiresIn) * time.Second),
	}
	s.byDevice[deviceCode] = auth
	s.byUser[normalizeUserCode(userCode)] = deviceCode
	base, expiresIn, interval := s.baseURL, s.expiresIn, s.interval
	s.mu.Unlock()

	verificationURI := base + "/device"
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_code":                 userCode,
		"device_code":               deviceCode,
		"verification_uri":          verificationURI,
		"verification_uri_complete": verificationURI + "?code=" + userCode,
		"expires_in":                expiresIn,
		"interval":                  interval,
		"message": "To sign in, visit " + verificationURI +
			" and enter the code " + userCode + ".",
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, "invalid_request", "Invalid request format")
		return
	}
	// Parameters MUST NOT be included more than once.
	for key, values := range r.Form {
		if len(values) > 1 {
			writeError(w, "invalid_request", "Duplicate parameter: "+key)
			return
		}
	}

	if got := r.Form.Get("grant_type"); got != "device_code" {
		writeError(w, "unsupported_grant_type", "Only device_code is supported")
		return
	}
	deviceCode := r.Form.Get("device_code")
	if deviceCode == "" {
		writeError(w, "invalid_request", "The device_code parameter is REQUIRED")
		return
	}
	if r.Form.Get("client_id") == "" {
		writeError(w, "invalid_request", "The client_id parameter is REQUIRED")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	auth, ok := s.byDevice[deviceCode]
	if !ok {
		writeError(w, "invalid_grant", "The device_code is invalid")
		return
	}
	auth.polls++

	if remaining := s.slowDowns[deviceCode]; remaining > 0 {
		s.slowDowns[deviceCode] = remaining - 1
		writeError(w, "slow_down", "Polling interval must be increased by 5 seconds")
		return
	}

	switch {
	case time.Now().After(auth.expiresAt):
		writeError(w, "expired_token", "The device_code has expired")
	case auth.denied:
		writeError(w, "access_denied", "The user denied the authorization request")
	case auth.approved || (s.autoApproveAfter > 0 && auth.polls >= s.autoApproveAfter):
		s.tokenSeq++
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token":  newOpaqueToken("at", s.tokenSeq),
			"refresh_token": newOpaqueToken("rt", s.tokenSeq),
			"token_type":    "Bearer",
			"expires_in":    3600,
			"scope":         auth.scope,
		})
	default:
		writeError(w, "authorization_pending", "The authorization request is still pending")
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError sends an RFC 8628 error response.
func writeError(w http.ResponseWriter, code, description string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error":             code,
		"error_description": description,
	})
}
