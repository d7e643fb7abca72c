package domain

import "time"

// AccountStatus enumerates possible account states.
type AccountStatus string

const (
	AccountStatusPending   AccountStatus = "pending"
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"
)

// VerificationChannel identifies a contact channel that can be independently verified.
type VerificationChannel string

const (
	ChannelEmail VerificationChannel = "email"
	ChannelPhone VerificationChannel = "phone"
)

// Account mirrors the persisted representation in the accounts table.
// Email and Phone are optional, but at least one is present at creation.
type Account struct {
	ID            string
	FirstName     string
	LastName      string
	Email         *string
	Phone         *string
	PasswordHash  string
	PasswordAlgo  string
	Status        AccountStatus
	EmailVerified bool
	PhoneVerified bool
	CreatedAt     time.Time
	LastLoginAt   *time.Time
}

// RequiredChannels lists the verification channels supplied at registration.
func (a Account) RequiredChannels() []VerificationChannel {
	channels := make([]VerificationChannel, 0, 2)
	if a.Email != nil && *a.Email != "" {
		channels = append(channels, ChannelEmail)
	}
	if a.Phone != nil && *a.Phone != "" {
		channels = append(channels, ChannelPhone)
	}
	return channels
}

// MissingChannels lists the channels supplied at registration that are not yet verified.
func (a Account) MissingChannels() []VerificationChannel {
	missing := make([]VerificationChannel, 0, 2)
	for _, ch := range a.RequiredChannels() {
		switch ch {
		case ChannelEmail:
			if !a.EmailVerified {
				missing = append(missing, ChannelEmail)
			}
		case ChannelPhone:
			if !a.PhoneVerified {
				missing = append(missing, ChannelPhone)
			}
		}
	}
	return missing
}

// FullyVerified reports whether every channel supplied at registration has been verified.
func (a Account) FullyVerified() bool {
	return len(a.MissingChannels()) == 0
}

// PasswordHistoryEntry tracks historical password hashes for reuse prevention.
// Entries are append-only.
type PasswordHistoryEntry struct {
	ID           string
	AccountID    string
	PasswordHash string
	SetAt        time.Time
}
