// Package authority resolves an OAuth authority root URL to the concrete
// endpoint URLs the device flow needs.
package authority

import (
	"context"
	"strings"
)

// Well-known endpoint paths used when the authority publishes no metadata.
const (
	DeviceCodePath = "/device/code"
	TokenPath      = "/device/token"
)

// Endpoints holds the resolved endpoint URLs for one authority.
type Endpoints struct {
	Issuer                      string
	DeviceAuthorizationEndpoint string
	TokenEndpoint               string
}

// Resolver resolves an authority root URL to its endpoints.
type Resolver interface {
	Resolve(ctx context.Context, authorityURL string) (Endpoints, error)
}

// Static derives endpoints by appending fixed paths to the canonical
// authority root. It never touches the network.
type Static struct{}

// Resolve implements Resolver.
func (Static) Resolve(_ context.Context, authorityURL string) (Endpoints, error) {
	root := strings.TrimSuffix(authorityURL, "/")
	return Endpoints{
		Issuer:                      root,
		DeviceAuthorizationEndpoint: root + DeviceCodePath,
		TokenEndpoint:               root + TokenPath,
	}, nil
}
