package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/bazarly/commerce-platform-identity/internal/core/domain"
	"github.com/bazarly/commerce-platform-identity/internal/core/port"
)

// StubPublisher logs events instead of publishing them. Used when Kafka is
// not configured (local development, tests).
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a logging-only event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log}
}

func (s *StubPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	s.logger.Debug("stub publish", zap.String("event", "identity.account.registered"), zap.String("account_id", event.AccountID))
	return nil
}

func (s *StubPublisher) PublishAccountActivated(_ context.Context, event domain.AccountActivatedEvent) error {
	s.logger.Debug("stub publish", zap.String("event", "identity.account.activated"), zap.String("account_id", event.AccountID))
	return nil
}

func (s *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	s.logger.Debug("stub publish", zap.String("event", "identity.account.password.changed"), zap.String("account_id", event.AccountID))
	return nil
}

func (s *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	s.logger.Debug("stub publish", zap.String("event", "identity.account.password.reset_requested"), zap.String("account_id", event.AccountID))
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
