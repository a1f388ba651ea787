package authority

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// metadataPath is the RFC 8414 authorization server metadata document path.
const metadataPath = "/.well-known/oauth-authorization-server"

// serverMetadata is the subset of RFC 8414 metadata the device flow needs.
type serverMetadata struct {
	Issuer                      string `json:"issuer"`
	DeviceAuthorizationEndpoint string `json:"device_authorization_endpoint"`
	TokenEndpoint               string `json:"token_endpoint"`
}

// Metadata resolves endpoints from the authority's RFC 8414 metadata
// document. When the authority publishes none (404), it falls back to the
// fixed well-known paths of Static.
type Metadata struct {
	// HTTPClient executes the metadata request. Defaults to a client with
	// a 10 second timeout.
	HTTPClient *http.Client
}

// Resolve implements Resolver.
func (m Metadata) Resolve(ctx context.Context, authorityURL string) (Endpoints, error) {
	root := strings.TrimSuffix(authorityURL, "/")

	client := m.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, root+metadataPath, nil)
	if err != nil {
		return Endpoints{}, fmt.Errorf("building metadata request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return Endpoints{}, fmt.Errorf("fetching authority metadata: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return Static{}.Resolve(ctx, authorityURL)
	}
	if resp.StatusCode != http.StatusOK {
		return Endpoints{}, fmt.Errorf("fetching authority metadata: unexpected status %d", resp.StatusCode)
	}

	var meta serverMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return Endpoints{}, fmt.Errorf("decoding authority metadata: %w", err)
	}
	if meta.DeviceAuthorizationEndpoint == "" || meta.TokenEndpoint == "" {
		return Endpoints{}, fmt.Errorf("authority metadata missing device_authorization_endpoint or token_endpoint")
	}

	issuer := meta.Issuer
	if issuer == "" {
		issuer = root
	}
	return Endpoints{
		Issuer:                      issuer,
		DeviceAuthorizationEndpoint: meta.DeviceAuthorizationEndpoint,
		TokenEndpoint:               meta.TokenEndpoint,
	}, nil
}
