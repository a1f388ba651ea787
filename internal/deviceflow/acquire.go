package deviceflow

import (
	"context"
	"fmt"

	"github.com/wrale/oauth2-device-client/internal/tokencache"
)

// AcquireRequest describes one token acquisition. Scopes and Authority are
// immutable for the lifetime of the flow; cancellation happens through the
// context passed to AcquireToken.
type AcquireRequest struct {
	// Scopes to request. Default scopes are merged in with set semantics.
	Scopes []string

	// Authority optionally overrides the client's authority root for this
	// flow only.
	Authority string

	// Callback receives the device code response exactly once, before the
	// first poll, so the user code can be displayed. A non-nil error
	// aborts the flow without polling.
	Callback func(*DeviceCodeResponse) error
}

// AcquireToken runs the full device authorization flow: resolve the
// authority, obtain a device code, hand it to the callback, then poll the
// token endpoint to a terminal state. A cached unexpired token for the same
// client and scope set is returned without any network traffic.
//
// Cancel the flow through ctx; cancellation is cooperative and observed at
// each tick boundary, never mid-request.
func (c *Client) AcquireToken(ctx context.Context, req AcquireRequest) (*TokenResponse, error) {
	if req.Callback == nil {
		return nil, fmt.Errorf("device code callback is required")
	}

	authorityURL := c.authority
	if req.Authority != "" {
		authorityURL = req.Authority
	}
	endpoints, err := c.resolver.Resolve(ctx, authorityURL)
	if err != nil {
		return nil, fmt.Errorf("resolving authority %q: %w", authorityURL, err)
	}

	cache := c.loadCache(ctx)
	cacheKey := tokencache.Key{ClientID: c.clientID, Scope: ScopeString(req.Scopes)}
	if cache != nil {
		if entry, ok := cache.Get(cacheKey, c.clock.Now()); ok {
			c.logger.Debug("token cache hit", "client_id", c.clientID, "scope", cacheKey.Scope)
			return &TokenResponse{
				AccessToken:  entry.AccessToken,
				TokenType:    entry.TokenType,
				RefreshToken: entry.RefreshToken,
				IDToken:      entry.IDToken,
				Scope:        entry.Scope,
				ExpiresAt:    entry.ExpiresAt,
			}, nil
		}
	}

	code, err := c.requestDeviceCode(ctx, endpoints, req.Scopes)
	if err != nil {
		return nil, err
	}

	// The callback runs synchronously before the first poll so the caller
	// can display the code; a callback failure means no poll ever fires.
	if err := req.Callback(code); err != nil {
		return nil, fmt.Errorf("device code callback: %w", err)
	}

	state, token, err := c.pollToken(ctx, endpoints, req.Scopes, code)
	if err != nil {
		c.logger.Warn("device code flow terminated",
			"state", state.String(), "error", err)
		return nil, err
	}

	if cache != nil {
		cache.Put(cacheKey, tokencache.Entry{
			AccessToken:  token.AccessToken,
			TokenType:    token.TokenType,
			RefreshToken: token.RefreshToken,
			IDToken:      token.IDToken,
			Scope:        token.Scope,
			ExpiresAt:    token.ExpiresAt,
		})
		c.saveCache(ctx, cache)
	}

	return token, nil
}

// loadCache loads and decodes the persisted token cache. Load failures fall
// back to an empty cache so a broken cache never blocks sign-in; the failure
// is logged. Returns nil when no persistence plugin is configured.
func (c *Client) loadCache(ctx context.Context) *tokencache.Cache {
	if c.persist == nil {
		return nil
	}
	blob, err := c.persist.Load(ctx)
	if err != nil {
		c.logger.Warn("loading token cache failed, starting empty", "error", err)
		return tokencache.New()
	}
	cache, err := tokencache.Unmarshal(blob)
	if err != nil {
		c.logger.Warn("token cache is corrupt, starting empty", "error", err)
		return tokencache.New()
	}
	return cache
}

// saveCache persists the token cache. A save failure never un-does the
// successful acquisition, but it is always reported: logged and, when an
// observer is registered, handed to it.
func (c *Client) saveCache(ctx context.Context, cache *tokencache.Cache) {
	blob, err := cache.Marshal()
	if err == nil {
		err = c.persist.Save(ctx, blob)
	}
	if err != nil {
		c.logger.Error("saving token cache failed", "error", err)
		if c.onSaveError != nil {
			c.onSaveError(err)
		}
	}
}
