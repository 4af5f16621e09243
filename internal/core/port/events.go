package port

import (
	"context"

	"github.com/startupadvisor/advisor-api/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishUserLoggedIn(ctx context.Context, event domain.UserLoggedInEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error
	PublishAccountStateChanged(ctx context.Context, event domain.AccountStateChangedEvent) error
	PublishProjectVersionCreated(ctx context.Context, event domain.ProjectVersionCreatedEvent) error
	PublishChatMessageCreated(ctx context.Context, event domain.ChatMessageCreatedEvent) error
}
