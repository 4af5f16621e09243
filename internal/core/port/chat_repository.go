package port

import (
	"context"

	"github.com/startupadvisor/advisor-api/internal/core/domain"
)

// ChatRepository exposes persistence behavior for conversations and messages.
type ChatRepository interface {
	CreateConversation(ctx context.Context, conversation domain.Conversation) error
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	ListConversations(ctx context.Context, ownerID string) ([]domain.Conversation, error)
	TouchConversation(ctx context.Context, id string) error
	RenameConversation(ctx context.Context, id, title string) error
	DeleteConversation(ctx context.Context, id string) error
	AddMessage(ctx context.Context, message domain.ChatMessage) error
	// ListMessages returns messages in chronological order, truncated to limit
	// when limit is positive.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.ChatMessage, error)
}
