package port

import (
	"context"

	"github.com/bazarly/commerce-platform-identity/internal/core/domain"
)

// EventPublisher publishes account lifecycle events to the message bus.
type EventPublisher interface {
	PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error
	PublishAccountActivated(ctx context.Context, event domain.AccountActivatedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error
}
