package port

import (
	"context"
	"time"
)

// RateLimitStore defines the persistence operations required to enforce sliding-window limits.
type RateLimitStore interface {
	// ReserveAttempt trims the window, counts the remaining attempts, and
	// records the new one only when fewer than limit exist, all as a single
	// atomic operation so two concurrent callers cannot both take the last
	// slot. On rejection the oldest attempt still inside the window is
	// returned for retry hints (zero when the window is empty).
	ReserveAttempt(ctx context.Context, identifier string, limit int, window time.Duration, at time.Time) (bool, time.Time, error)
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}
