package port

import (
	"context"
	"time"

	"github.com/bazarly/commerce-platform-identity/internal/core/domain"
)

// OTPStore keeps the active one-time code per phone number. Store replaces any
// prior entry for the phone, so only the newest OTP is verifiable.
type OTPStore interface {
	Store(ctx context.Context, otp domain.PhoneOTP, ttl time.Duration) error
	Fetch(ctx context.Context, phone string) (*domain.PhoneOTP, error)
	// IncrementAttempts atomically bumps the attempt counter and returns the
	// new value, avoiding lost updates under concurrent verification calls.
	IncrementAttempts(ctx context.Context, phone string) (int, error)
	Delete(ctx context.Context, phone string) error
}
