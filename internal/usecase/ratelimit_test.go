package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRateLimiterAllowUnderLimit(t *testing.T) {
	limiter := NewRateLimiter(newMemoryRateLimitStore())
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	limiter.WithClock(func() time.Time { return now })

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := limiter.Allow(ctx, "otp-send", "+8801712345678", 3, time.Minute); err != nil {
			t.Fatalf("attempt %d rejected: %v", i+1, err)
		}
	}
}

func TestRateLimiterRejectsWithRetryHint(t *testing.T) {
	limiter := NewRateLimiter(newMemoryRateLimitStore())
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	limiter.WithClock(func() time.Time { return now })

	ctx := context.Background()
	if err := limiter.Allow(ctx, "otp-send", "+8801712345678", 1, time.Minute); err != nil {
		t.Fatalf("first attempt rejected: %v", err)
	}

	now = now.Add(10 * time.Second)
	err := limiter.Allow(ctx, "otp-send", "+8801712345678", 1, time.Minute)

	var limitErr *RateLimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected *RateLimitExceededError, got %v", err)
	}
	if limitErr.Scope != "otp-send" {
		t.Fatalf("expected scope otp-send, got %s", limitErr.Scope)
	}
	if limitErr.RetryAfter != 50*time.Second {
		t.Fatalf("expected retry after 50s, got %v", limitErr.RetryAfter)
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	limiter := NewRateLimiter(newMemoryRateLimitStore())
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	limiter.WithClock(func() time.Time { return now })

	ctx := context.Background()
	if err := limiter.Allow(ctx, "login", "buyer@example.com", 1, time.Minute); err != nil {
		t.Fatalf("first attempt rejected: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if err := limiter.Allow(ctx, "login", "buyer@example.com", 1, time.Minute); err != nil {
		t.Fatalf("attempt after window elapsed rejected: %v", err)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	ctx := context.Background()

	var nilLimiter *RateLimiter
	if err := nilLimiter.Allow(ctx, "scope", "id", 1, time.Minute); err != nil {
		t.Fatalf("nil limiter should admit everything, got %v", err)
	}

	limiter := NewRateLimiter(newMemoryRateLimitStore())
	if err := limiter.Allow(ctx, "scope", "id", 0, time.Minute); err != nil {
		t.Fatalf("non-positive limit should disable the check, got %v", err)
	}
	if err := limiter.Allow(ctx, "scope", "id", 1, 0); err != nil {
		t.Fatalf("non-positive window should disable the check, got %v", err)
	}
}

func TestRateLimiterSingleAdmissionUnderContention(t *testing.T) {
	limiter := NewRateLimiter(newMemoryRateLimitStore())

	ctx := context.Background()
	const callers = 16

	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- limiter.Allow(ctx, "otp-send", "+8801712345678", 1, time.Minute)
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for err := range results {
		if err == nil {
			admitted++
			continue
		}
		var limitErr *RateLimitExceededError
		if !errors.As(err, &limitErr) {
			t.Fatalf("expected *RateLimitExceededError, got %v", err)
		}
	}
	if admitted != 1 {
		t.Fatalf("expected exactly one admission with limit 1, got %d", admitted)
	}
}

func TestRateLimiterScopesAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(newMemoryRateLimitStore())
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	limiter.WithClock(func() time.Time { return now })

	ctx := context.Background()
	if err := limiter.Allow(ctx, "otp-send", "+8801712345678", 1, time.Minute); err != nil {
		t.Fatalf("first scope rejected: %v", err)
	}
	if err := limiter.Allow(ctx, "email-resend", "+8801712345678", 1, time.Minute); err != nil {
		t.Fatalf("second scope should have its own budget, got %v", err)
	}
}
