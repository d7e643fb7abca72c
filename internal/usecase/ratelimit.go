package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/bazarly/commerce-platform-identity/internal/core/port"
)

// RateLimitExceededError reports a throttled operation together with the wait
// until the sliding window frees a slot.
type RateLimitExceededError struct {
	Scope      string
	RetryAfter time.Duration
}

// Error implements error for RateLimitExceededError.
func (e *RateLimitExceededError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Scope, e.RetryAfter)
}

// RateLimiter enforces sliding-window limits over a RateLimitStore. The
// store keeps one sorted set per identifier; the trim-count-record sequence
// runs as a single atomic reservation so concurrent callers racing for the
// last slot cannot both be admitted.
type RateLimiter struct {
	store port.RateLimitStore
	now   func() time.Time
}

// NewRateLimiter constructs a limiter on the provided store.
func NewRateLimiter(store port.RateLimitStore) *RateLimiter {
	return &RateLimiter{store: store, now: time.Now}
}

// WithClock overrides the internal clock, used in tests.
func (l *RateLimiter) WithClock(clock func() time.Time) {
	if clock != nil {
		l.now = clock
	}
}

// Allow admits the attempt when fewer than limit attempts exist inside the
// window, recording it on success. On rejection it returns
// *RateLimitExceededError carrying the retry hint derived from the oldest
// attempt still in the window. A non-positive limit disables the check.
func (l *RateLimiter) Allow(ctx context.Context, scope, identifier string, limit int, window time.Duration) error {
	if l == nil || l.store == nil || limit <= 0 || window <= 0 {
		return nil
	}

	key := fmt.Sprintf("%s:%s", scope, identifier)
	reference := l.now().UTC()

	admitted, oldest, err := l.store.ReserveAttempt(ctx, key, limit, window, reference)
	if err != nil {
		return fmt.Errorf("reserve rate limit attempt: %w", err)
	}
	if admitted {
		return nil
	}

	retryAfter := window
	if !oldest.IsZero() {
		if wait := oldest.Add(window).Sub(reference); wait > 0 {
			retryAfter = wait
		}
	}
	return &RateLimitExceededError{Scope: scope, RetryAfter: retryAfter}
}
