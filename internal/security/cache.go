package security

import (
	"sync"
	"time"

	"github.com/acolita/mutagen-bridge/internal/adapters/realclock"
	"github.com/acolita/mutagen-bridge/internal/ports"
)

// SecureCache stores sensitive credentials with TTL-based expiration.
type SecureCache struct {
	data      []byte
	createdAt time.Time
	ttl       time.Duration
	mu        sync.Mutex
	cleared   bool
	clock     ports.Clock
}

// SecureCacheOption configures a SecureCache.
type SecureCacheOption func(*SecureCache)

// WithClock sets the clock used by SecureCache.
func WithClock(clock ports.Clock) SecureCacheOption {
	return func(sc *SecureCache) {
		sc.clock = clock
	}
}

// NewSecureCache creates a new secure cache with the given TTL.
func NewSecureCache(data []byte, ttl time.Duration, opts ...SecureCacheOption) *SecureCache {
	// Make a copy of the data
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	sc := &SecureCache{
		data:  dataCopy,
		ttl:   ttl,
		clock: realclock.New(), // default to real clock
	}

	for _, opt := range opts {
		opt(sc)
	}

	sc.createdAt = sc.clock.Now()

	return sc
}

// Get returns the cached data if still valid, or nil if expired.
func (sc *SecureCache) Get() []byte {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.cleared || sc.data == nil {
		return nil
	}

	if sc.clock.Now().Sub(sc.createdAt) > sc.ttl {
		sc.clear()
		return nil
	}

	// Return a copy to prevent external modification
	result := make([]byte, len(sc.data))
	copy(result, sc.data)
	return result
}

// IsValid returns true if the cache contains valid data.
func (sc *SecureCache) IsValid() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.cleared || sc.data == nil {
		return false
	}

	if sc.clock.Now().Sub(sc.createdAt) > sc.ttl {
		sc.clear()
		return false
	}

	return true
}

// ExpiresIn returns the duration until expiration.
func (sc *SecureCache) ExpiresIn() time.Duration {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.cleared || sc.data == nil {
		return 0
	}

	remaining := sc.ttl - sc.clock.Now().Sub(sc.createdAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Clear securely wipes and clears the cached data.
func (sc *SecureCache) Clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.clear()
}

// clear performs the actual clearing (must be called with lock held).
func (sc *SecureCache) clear() {
	if sc.data != nil {
		WipeBytes(sc.data)
		sc.data = nil
	}
	sc.cleared = true
}

// CredentialCache holds fetched server passwords per endpoint so
// repeated directory listings do not round-trip through the OS keyring
// on every request.
type CredentialCache struct {
	caches map[string]*SecureCache // user@host -> cache
	ttl    time.Duration
	mu     sync.RWMutex
	clock  ports.Clock
}

// CredentialCacheOption configures a CredentialCache.
type CredentialCacheOption func(*CredentialCache)

// WithCredentialCacheClock sets the clock used by CredentialCache.
func WithCredentialCacheClock(clock ports.Clock) CredentialCacheOption {
	return func(c *CredentialCache) {
		c.clock = clock
	}
}

// NewCredentialCache creates a new credential cache with the given TTL.
func NewCredentialCache(ttl time.Duration, opts ...CredentialCacheOption) *CredentialCache {
	c := &CredentialCache{
		caches: make(map[string]*SecureCache),
		ttl:    ttl,
		clock:  realclock.New(), // default to real clock
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Set stores a credential for an endpoint.
func (c *CredentialCache) Set(host, user string, secret []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(host, user)

	// Clear any existing cache for this endpoint
	if existing, ok := c.caches[k]; ok {
		existing.Clear()
	}

	c.caches[k] = NewSecureCache(secret, c.ttl, WithClock(c.clock))
}

// Get retrieves the cached credential for an endpoint, or nil when
// absent or expired.
func (c *CredentialCache) Get(host, user string) []byte {
	c.mu.RLock()
	cache, ok := c.caches[key(host, user)]
	c.mu.RUnlock()

	if !ok {
		return nil
	}

	return cache.Get()
}

// IsValid returns true if there is a valid cached credential for the endpoint.
func (c *CredentialCache) IsValid(host, user string) bool {
	c.mu.RLock()
	cache, ok := c.caches[key(host, user)]
	c.mu.RUnlock()

	if !ok {
		return false
	}

	return cache.IsValid()
}

// ExpiresIn returns the time until the cached credential expires.
func (c *CredentialCache) ExpiresIn(host, user string) time.Duration {
	c.mu.RLock()
	cache, ok := c.caches[key(host, user)]
	c.mu.RUnlock()

	if !ok {
		return 0
	}

	return cache.ExpiresIn()
}

// Clear wipes the cached credential for an endpoint.
func (c *CredentialCache) Clear(host, user string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(host, user)
	if cache, ok := c.caches[k]; ok {
		cache.Clear()
		delete(c.caches, k)
	}
}

// ClearAll wipes every cached credential.
func (c *CredentialCache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, cache := range c.caches {
		cache.Clear()
	}
	c.caches = make(map[string]*SecureCache)
}

// Cleanup removes expired entries from the cache.
func (c *CredentialCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, cache := range c.caches {
		if !cache.IsValid() {
			cache.Clear()
			delete(c.caches, k)
		}
	}
}

// DefaultCredentialTTL is the default TTL for cached credentials.
const DefaultCredentialTTL = 5 * time.Minute
