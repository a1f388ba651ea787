// Package tokencache holds the in-memory token cache model and its
// serialization to the opaque blob the persistence layer stores.
package tokencache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// ExpiryMargin is subtracted from token lifetimes on lookup. It accounts
// for clock skew between systems and network latency.
const ExpiryMargin = 30 * time.Second

// blobVersion guards the serialized format.
const blobVersion = 1

// Key identifies one cache entry: a client and its canonical scope string.
type Key struct {
	ClientID string
	Scope    string
}

// Entry is one cached token set.
type Entry struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// expired reports whether the entry is unusable at the given instant,
// applying the expiry margin.
func (e Entry) expired(now time.Time) bool {
	if e.ExpiresAt.IsZero() {
		return false
	}
	return now.After(e.ExpiresAt.Add(-ExpiryMargin))
}

// Cache is a thread-safe in-memory token cache. It never touches storage
// itself; Marshal and Unmarshal convert it to and from the persisted blob.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]Entry
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[Key]Entry)}
}

// Get returns the unexpired entry for key, if any.
func (c *Cache) Get(key Key, now time.Time) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || entry.expired(now) {
		return Entry{}, false
	}
	return entry, true
}

// Put stores or replaces the entry for key.
func (c *Cache) Put(key Key, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// blobEnvelope is the serialized cache. Entries carry their key inline so
// the envelope stays a flat, versioned JSON document.
type blobEnvelope struct {
	Version int          `json:"version"`
	Entries []blobRecord `json:"entries"`
}

type blobRecord struct {
	ClientID string `json:"client_id"`
	Scope    string `json:"scope"`
	Entry
}

// Marshal serializes the cache to the opaque blob handed to persistence.
func (c *Cache) Marshal() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	env := blobEnvelope{Version: blobVersion, Entries: make([]blobRecord, 0, len(c.entries))}
	for key, entry := range c.entries {
		env.Entries = append(env.Entries, blobRecord{
			ClientID: key.ClientID,
			Scope:    key.Scope,
			Entry:    entry,
		})
	}

	blob, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshaling token cache: %w", err)
	}
	return blob, nil
}

// Unmarshal decodes a persisted blob. An empty blob (first run) yields an
// empty cache; malformed bytes or an unknown version are an error so the
// caller can decide to start over.
func Unmarshal(blob []byte) (*Cache, error) {
	cache := New()
	if len(blob) == 0 {
		return cache, nil
	}

	var env blobEnvelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("unmarshaling token cache: %w", err)
	}
	if env.Version != blobVersion {
		return nil, fmt.Errorf("unsupported token cache version %d", env.Version)
	}

	for _, rec := range env.Entries {
		cache.entries[Key{ClientID: rec.ClientID, Scope: rec.Scope}] = rec.Entry
	}
	return cache, nil
}
