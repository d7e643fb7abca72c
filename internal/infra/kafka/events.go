package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bazarly/commerce-platform-identity/internal/core/domain"
	"github.com/bazarly/commerce-platform-identity/internal/core/port"
	"github.com/bazarly/commerce-platform-identity/internal/infra/config"
	"github.com/bazarly/commerce-platform-identity/internal/infra/logger"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, log *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: log}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	AccountID string            `json:"account_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, accountID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		AccountID: accountID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata: map[string]string{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(accountID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAccountRegistered publishes identity.account.registered events.
func (p *EventPublisher) PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error {
	payload := struct {
		AccountID        string         `json:"account_id"`
		Email            *string        `json:"email,omitempty"`
		Phone            *string        `json:"phone,omitempty"`
		Status           string         `json:"status"`
		RegisteredAt     time.Time      `json:"registered_at"`
		RequiredChannels []string       `json:"required_channels"`
		Metadata         map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:        event.AccountID,
		Email:            maskedEmailPtr(event.Email),
		Phone:            maskedPhonePtr(event.Phone),
		Status:           event.Status,
		RegisteredAt:     event.RegisteredAt.UTC(),
		RequiredChannels: event.RequiredChannels,
		Metadata:         event.Metadata,
	}

	return p.publish(ctx, event.EventID, "identity.account.registered", event.AccountID, event.RegisteredAt, payload)
}

// PublishAccountActivated publishes identity.account.activated events.
func (p *EventPublisher) PublishAccountActivated(ctx context.Context, event domain.AccountActivatedEvent) error {
	payload := struct {
		AccountID       string         `json:"account_id"`
		ActivatedAt     time.Time      `json:"activated_at"`
		VerifiedChannel string         `json:"verified_channel"`
		Metadata        map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:       event.AccountID,
		ActivatedAt:     event.ActivatedAt.UTC(),
		VerifiedChannel: event.VerifiedChannel,
		Metadata:        event.Metadata,
	}

	return p.publish(ctx, event.EventID, "identity.account.activated", event.AccountID, event.ActivatedAt, payload)
}

// PublishPasswordChanged publishes identity.account.password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		AccountID string         `json:"account_id"`
		ChangedAt time.Time      `json:"changed_at"`
		Reason    string         `json:"reason"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		AccountID: event.AccountID,
		ChangedAt: event.ChangedAt.UTC(),
		Reason:    event.Reason,
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, "identity.account.password.changed", event.AccountID, event.ChangedAt, payload)
}

// PublishPasswordResetRequested publishes identity.account.password.reset_requested events.
func (p *EventPublisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := struct {
		AccountID         string         `json:"account_id"`
		RequestedAt       time.Time      `json:"requested_at"`
		MaskedDestination string         `json:"masked_destination"`
		ExpiresAt         time.Time      `json:"expires_at"`
		Metadata          map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:         event.AccountID,
		RequestedAt:       event.RequestedAt.UTC(),
		MaskedDestination: event.MaskedDestination,
		ExpiresAt:         event.ExpiresAt.UTC(),
		Metadata:          event.Metadata,
	}

	return p.publish(ctx, event.EventID, "identity.account.password.reset_requested", event.AccountID, event.RequestedAt, payload)
}

func maskedEmailPtr(email *string) *string {
	if email == nil || *email == "" {
		return nil
	}
	masked := logger.MaskEmail(*email)
	return &masked
}

func maskedPhonePtr(phone *string) *string {
	if phone == nil || *phone == "" {
		return nil
	}
	masked := logger.MaskPhone(*phone)
	return &masked
}

var _ port.EventPublisher = (*EventPublisher)(nil)
