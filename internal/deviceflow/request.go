package deviceflow

import (
	"net/url"
	"sort"
	"strings"
)

// GrantTypeDeviceCode is the grant_type value sent on every token poll.
const GrantTypeDeviceCode = "device_code"

// defaultScopes are injected into every request so refresh tokens and
// identity claims are always requested. Injection uses set semantics, so a
// caller already naming one of these does not produce a duplicate.
var defaultScopes = []string{"offline_access", "openid"}

// CanonicalScopes merges the caller's scopes with the default scopes,
// removes duplicates and returns the result sorted. Identical scope sets
// always yield identical slices regardless of input order.
func CanonicalScopes(scopes []string) []string {
	seen := make(map[string]struct{}, len(scopes)+len(defaultScopes))
	merged := make([]string, 0, len(scopes)+len(defaultScopes))
	for _, group := range [][]string{scopes, defaultScopes} {
		for _, s := range group {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			merged = append(merged, s)
		}
	}
	sort.Strings(merged)
	return merged
}

// ScopeString returns the canonical space-delimited scope parameter value.
func ScopeString(scopes []string) string {
	return strings.Join(CanonicalScopes(scopes), " ")
}

// deviceCodeQuery builds the query string for the device code endpoint.
// Parameter order is stable across calls with identical input; servers must
// not depend on it but tests do.
func deviceCodeQuery(clientID string, scopes []string) string {
	v := url.Values{}
	v.Set("client_id", clientID)
	v.Set("scope", ScopeString(scopes))
	return v.Encode()
}

// tokenRequestBody builds the form body for one token endpoint poll.
func tokenRequestBody(clientID string, scopes []string, deviceCode string) string {
	v := url.Values{}
	v.Set("client_id", clientID)
	v.Set("scope", ScopeString(scopes))
	v.Set("grant_type", GrantTypeDeviceCode)
	v.Set("device_code", deviceCode)
	return v.Encode()
}
