package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/startupadvisor/advisor-api/internal/core/domain"
	"github.com/startupadvisor/advisor-api/internal/core/port"
	"github.com/startupadvisor/advisor-api/internal/infra/config"
)

const schemaVersion = "1.0"

// Topic names published by the service, before prefixing.
const (
	topicUserRegistered         = "user.registered"
	topicUserLoggedIn           = "user.logged_in"
	topicPasswordChanged        = "user.password.changed"
	topicPasswordResetRequested = "user.password.reset_requested"
	topicAccountStateChanged    = "user.account.state_changed"
	topicProjectVersionCreated  = "project.version_created"
	topicChatMessageCreated     = "chat.message_created"
)

// EventPublisher implements port.EventPublisher on top of the Kafka producer.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserRegistered publishes user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID       string         `json:"user_id"`
		Username     string         `json:"username"`
		Email        string         `json:"email"`
		CompanyName  string         `json:"company_name,omitempty"`
		RegisteredAt time.Time      `json:"registered_at"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		UserID:       event.UserID,
		Username:     event.Username,
		Email:        event.Email,
		CompanyName:  event.CompanyName,
		RegisteredAt: event.RegisteredAt.UTC(),
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, topicUserRegistered, event.UserID, event.RegisteredAt, payload)
}

// PublishUserLoggedIn publishes user.logged_in events.
func (p *EventPublisher) PublishUserLoggedIn(ctx context.Context, event domain.UserLoggedInEvent) error {
	payload := struct {
		UserID    string         `json:"user_id"`
		LoggedAt  time.Time      `json:"logged_at"`
		IPAddress *string        `json:"ip_address,omitempty"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		UserID:    event.UserID,
		LoggedAt:  event.LoggedAt.UTC(),
		IPAddress: event.IPAddress,
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, topicUserLoggedIn, event.UserID, event.LoggedAt, payload)
}

// PublishPasswordChanged publishes user.password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		UserID          string         `json:"user_id"`
		ChangedAt       time.Time      `json:"changed_at"`
		ChangedBy       string         `json:"changed_by"`
		SessionsCleared bool           `json:"sessions_cleared"`
		Metadata        map[string]any `json:"metadata,omitempty"`
	}{
		UserID:          event.UserID,
		ChangedAt:       event.ChangedAt.UTC(),
		ChangedBy:       event.ChangedBy,
		SessionsCleared: event.SessionsCleared,
		Metadata:        event.Metadata,
	}

	return p.publish(ctx, event.EventID, topicPasswordChanged, event.UserID, event.ChangedAt, payload)
}

// PublishPasswordResetRequested publishes user.password.reset_requested events.
// The payload carries only the masked destination; the reset token itself
// never reaches the bus.
func (p *EventPublisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := struct {
		UserID            string         `json:"user_id"`
		RequestedAt       time.Time      `json:"requested_at"`
		MaskedDestination string         `json:"masked_destination,omitempty"`
		IPAddress         *string        `json:"ip_address,omitempty"`
		ExpiresAt         time.Time      `json:"expires_at"`
		Metadata          map[string]any `json:"metadata,omitempty"`
	}{
		UserID:            event.UserID,
		RequestedAt:       event.RequestedAt.UTC(),
		MaskedDestination: event.MaskedDestination,
		IPAddress:         event.IPAddress,
		ExpiresAt:         event.ExpiresAt.UTC(),
		Metadata:          event.Metadata,
	}

	return p.publish(ctx, event.EventID, topicPasswordResetRequested, event.UserID, event.RequestedAt, payload)
}

// PublishAccountStateChanged publishes user.account.state_changed events.
func (p *EventPublisher) PublishAccountStateChanged(ctx context.Context, event domain.AccountStateChangedEvent) error {
	payload := struct {
		UserID    string         `json:"user_id"`
		State     string         `json:"state"`
		ChangedAt time.Time      `json:"changed_at"`
		Reason    string         `json:"reason,omitempty"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		UserID:    event.UserID,
		State:     event.State,
		ChangedAt: event.ChangedAt.UTC(),
		Reason:    event.Reason,
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, topicAccountStateChanged, event.UserID, event.ChangedAt, payload)
}

// PublishProjectVersionCreated publishes project.version_created events.
func (p *EventPublisher) PublishProjectVersionCreated(ctx context.Context, event domain.ProjectVersionCreatedEvent) error {
	payload := struct {
		ProjectID string         `json:"project_id"`
		OwnerID   string         `json:"owner_id"`
		Version   int            `json:"version"`
		CreatedAt time.Time      `json:"created_at"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		ProjectID: event.ProjectID,
		OwnerID:   event.OwnerID,
		Version:   event.Version,
		CreatedAt: event.CreatedAt.UTC(),
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, topicProjectVersionCreated, event.OwnerID, event.CreatedAt, payload)
}

// PublishChatMessageCreated publishes chat.message_created events.
func (p *EventPublisher) PublishChatMessageCreated(ctx context.Context, event domain.ChatMessageCreatedEvent) error {
	payload := struct {
		ConversationID string         `json:"conversation_id"`
		MessageID      string         `json:"message_id"`
		OwnerID        string         `json:"owner_id"`
		Role           string         `json:"role"`
		CreatedAt      time.Time      `json:"created_at"`
		Metadata       map[string]any `json:"metadata,omitempty"`
	}{
		ConversationID: event.ConversationID,
		MessageID:      event.MessageID,
		OwnerID:        event.OwnerID,
		Role:           event.Role,
		CreatedAt:      event.CreatedAt.UTC(),
		Metadata:       event.Metadata,
	}

	return p.publish(ctx, event.EventID, topicChatMessageCreated, event.OwnerID, event.CreatedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
