package domain

import "time"

// TokenPurpose narrows what a verification token authorizes.
type TokenPurpose string

const (
	TokenPurposeVerifyEmail   TokenPurpose = "verify_email"
	TokenPurposeResetPassword TokenPurpose = "reset_password"
)

// VerificationToken represents a single-use email verification or password
// reset token. The raw value handed to the client is 64 hex characters; only
// its SHA-256 hash is stored.
type VerificationToken struct {
	ID        string
	AccountID string
	TokenHash string
	Purpose   TokenPurpose
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
func (t VerificationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// PhoneOTP is the active one-time code for a phone number. At most one active
// OTP exists per phone; a new send supersedes the prior one.
type PhoneOTP struct {
	Phone       string
	AccountID   string
	Code        string
	Attempts    int
	MaxAttempts int
	CreatedAt   time.Time
	ExpiresAt   time.Time
	VerifiedAt  *time.Time
}

// Exhausted reports whether the attempt budget for this OTP instance is spent.
func (o PhoneOTP) Exhausted() bool {
	return o.MaxAttempts > 0 && o.Attempts >= o.MaxAttempts
}

// Expired reports whether the OTP is past its expiry at the given instant.
func (o PhoneOTP) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
