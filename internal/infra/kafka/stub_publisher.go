package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/startupadvisor/advisor-api/internal/core/domain"
	"github.com/startupadvisor/advisor-api/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no
// brokers are configured, typically in development.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a log-only event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.logEvent(topicUserRegistered, event.UserID, event.RegisteredAt, map[string]any{
		"username":     event.Username,
		"email":        event.Email,
		"company_name": event.CompanyName,
	})
	return nil
}

func (p *StubPublisher) PublishUserLoggedIn(_ context.Context, event domain.UserLoggedInEvent) error {
	p.logEvent(topicUserLoggedIn, event.UserID, event.LoggedAt, map[string]any{
		"ip_address": event.IPAddress,
	})
	return nil
}

func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.logEvent(topicPasswordChanged, event.UserID, event.ChangedAt, map[string]any{
		"changed_by":       event.ChangedBy,
		"sessions_cleared": event.SessionsCleared,
	})
	return nil
}

func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	p.logEvent(topicPasswordResetRequested, event.UserID, event.RequestedAt, map[string]any{
		"masked_destination": event.MaskedDestination,
		"expires_at":         event.ExpiresAt,
	})
	return nil
}

func (p *StubPublisher) PublishAccountStateChanged(_ context.Context, event domain.AccountStateChangedEvent) error {
	p.logEvent(topicAccountStateChanged, event.UserID, event.ChangedAt, map[string]any{
		"state":  event.State,
		"reason": event.Reason,
	})
	return nil
}

func (p *StubPublisher) PublishProjectVersionCreated(_ context.Context, event domain.ProjectVersionCreatedEvent) error {
	p.logEvent(topicProjectVersionCreated, event.OwnerID, event.CreatedAt, map[string]any{
		"project_id": event.ProjectID,
		"version":    event.Version,
	})
	return nil
}

func (p *StubPublisher) PublishChatMessageCreated(_ context.Context, event domain.ChatMessageCreatedEvent) error {
	p.logEvent(topicChatMessageCreated, event.OwnerID, event.CreatedAt, map[string]any{
		"conversation_id": event.ConversationID,
		"message_id":      event.MessageID,
		"role":            event.Role,
	})
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
