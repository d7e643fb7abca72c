package port

import "context"

// EmailSender delivers templated transactional email.
type EmailSender interface {
	Send(ctx context.Context, to string, templateID string, vars map[string]string) error
}

// SMSSender delivers short text messages to a phone number.
type SMSSender interface {
	Send(ctx context.Context, phone string, message string) error
}
