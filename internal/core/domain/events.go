package domain

import "time"

// AccountRegisteredEvent represents the payload for identity.account.registered messages.
type AccountRegisteredEvent struct {
	EventID          string
	AccountID        string
	Email            *string
	Phone            *string
	Status           string
	RegisteredAt     time.Time
	RequiredChannels []string
	Metadata         map[string]any
}

// AccountActivatedEvent represents the payload for identity.account.activated messages.
type AccountActivatedEvent struct {
	EventID         string
	AccountID       string
	ActivatedAt     time.Time
	VerifiedChannel string
	Metadata        map[string]any
}

// PasswordChangedEvent represents the payload for identity.account.password.changed messages.
type PasswordChangedEvent struct {
	EventID   string
	AccountID string
	ChangedAt time.Time
	Reason    string
	Metadata  map[string]any
}

// PasswordResetRequestedEvent represents the payload for identity.account.password.reset_requested messages.
type PasswordResetRequestedEvent struct {
	EventID           string
	AccountID         string
	RequestedAt       time.Time
	MaskedDestination string
	ExpiresAt         time.Time
	Metadata          map[string]any
}
