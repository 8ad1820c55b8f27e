package security

import (
	"fmt"
	"sync"
	"time"

	"github.com/acolita/mutagen-bridge/internal/adapters/realclock"
	"github.com/acolita/mutagen-bridge/internal/ports"
)

// AuthRateLimiter tracks SSH authentication failures per endpoint and
// enforces a lockout so the bridge cannot hammer a server into locking
// the account out on its side.
type AuthRateLimiter struct {
	mu              sync.RWMutex
	failures        map[string]*authFailure
	maxFailures     int
	lockoutDuration time.Duration
	clock           ports.Clock
}

type authFailure struct {
	count     int
	firstFail time.Time
	lockedAt  time.Time
}

// DefaultMaxAuthFailures is the default number of failures before lockout.
const DefaultMaxAuthFailures = 3

// DefaultAuthLockoutDuration is the default lockout duration.
const DefaultAuthLockoutDuration = 5 * time.Minute

// AuthRateLimiterOption configures an AuthRateLimiter.
type AuthRateLimiterOption func(*AuthRateLimiter)

// WithLimiterClock sets the clock used by AuthRateLimiter.
func WithLimiterClock(clock ports.Clock) AuthRateLimiterOption {
	return func(r *AuthRateLimiter) {
		r.clock = clock
	}
}

// NewAuthRateLimiter creates a new auth rate limiter. Non-positive
// arguments fall back to the defaults.
func NewAuthRateLimiter(maxFailures int, lockoutDuration time.Duration, opts ...AuthRateLimiterOption) *AuthRateLimiter {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxAuthFailures
	}
	if lockoutDuration <= 0 {
		lockoutDuration = DefaultAuthLockoutDuration
	}

	r := &AuthRateLimiter{
		failures:        make(map[string]*authFailure),
		maxFailures:     maxFailures,
		lockoutDuration: lockoutDuration,
		clock:           realclock.New(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// key generates a key from host and user.
func key(host, user string) string {
	return fmt.Sprintf("%s@%s", user, host)
}

// IsLocked checks if authentication is locked for the given host/user.
// The second return value is the time remaining until the lockout lifts.
func (r *AuthRateLimiter) IsLocked(host, user string) (bool, time.Duration) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k := key(host, user)
	f, ok := r.failures[k]
	if !ok {
		return false, 0
	}

	if f.lockedAt.IsZero() {
		return false, 0
	}

	elapsed := r.clock.Now().Sub(f.lockedAt)
	if elapsed >= r.lockoutDuration {
		return false, 0
	}

	return true, r.lockoutDuration - elapsed
}

// RecordFailure records an authentication failure.
func (r *AuthRateLimiter) RecordFailure(host, user string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()

	k := key(host, user)
	f, ok := r.failures[k]
	if !ok {
		f = &authFailure{
			firstFail: now,
		}
		r.failures[k] = f
	}

	// Reset if lockout has expired
	if !f.lockedAt.IsZero() && now.Sub(f.lockedAt) >= r.lockoutDuration {
		f.count = 0
		f.firstFail = now
		f.lockedAt = time.Time{}
	}

	f.count++

	// Lock if max failures reached
	if f.count >= r.maxFailures {
		f.lockedAt = now
	}
}

// RecordSuccess records a successful authentication, resetting the failure count.
func (r *AuthRateLimiter) RecordSuccess(host, user string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(host, user)
	delete(r.failures, k)
}

// Reset resets the failure count for a host/user.
// This is an alias for RecordSuccess for semantic clarity.
func (r *AuthRateLimiter) Reset(host, user string) {
	r.RecordSuccess(host, user)
}

// Cleanup removes expired entries.
func (r *AuthRateLimiter) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()

	for k, f := range r.failures {
		// Remove entries that have been locked and lockout has expired
		if !f.lockedAt.IsZero() && now.Sub(f.lockedAt) >= r.lockoutDuration {
			delete(r.failures, k)
			continue
		}
		// Remove entries with no recent activity (2x lockout duration)
		if now.Sub(f.firstFail) >= 2*r.lockoutDuration {
			delete(r.failures, k)
		}
	}
}
