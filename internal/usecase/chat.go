package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/startupadvisor/advisor-api/internal/core/domain"
	"github.com/startupadvisor/advisor-api/internal/core/port"
	"github.com/startupadvisor/advisor-api/internal/repository"
)

const conversationTitleLimit = 60

// MessageBroadcaster pushes newly created messages to connected realtime
// clients. Delivery is best-effort; the message is already persisted.
type MessageBroadcaster interface {
	BroadcastMessage(conversationID string, message domain.ChatMessage)
}

// ChatService handles conversations and message exchange with the
// language-model backend.
type ChatService struct {
	chats       port.ChatRepository
	projects    port.ProjectRepository
	completions port.CompletionClient
	broadcaster MessageBroadcaster
	events      port.EventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewChatService constructs a ChatService instance.
func NewChatService(
	chats port.ChatRepository,
	projects port.ProjectRepository,
	completions port.CompletionClient,
	broadcaster MessageBroadcaster,
	events port.EventPublisher,
	log *zap.Logger,
) *ChatService {
	return &ChatService{
		chats:       chats,
		projects:    projects,
		completions: completions,
		broadcaster: broadcaster,
		events:      events,
		logger:      log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *ChatService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// ConversationInput carries the fields accepted when opening a conversation.
type ConversationInput struct {
	ProjectID *string
	Title     string
	Mode      domain.ConversationMode
}

// getOwnedConversation loads a conversation and enforces ownership.
func (s *ChatService) getOwnedConversation(ctx context.Context, ownerID, conversationID string) (*domain.Conversation, error) {
	conversation, err := s.chats.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("lookup conversation: %w", err)
	}
	if conversation.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return conversation, nil
}

// CreateConversation opens a new conversation, optionally attached to one of
// the caller's projects.
func (s *ChatService) CreateConversation(ctx context.Context, ownerID string, input ConversationInput) (*domain.Conversation, error) {
	mode := input.Mode
	if mode == "" {
		mode = domain.ModeAdvisor
	}
	if mode != domain.ModeAdvisor && mode != domain.ModeObjectionPractice {
		return nil, ErrInvalidConversationMode
	}

	if input.ProjectID != nil {
		project, err := s.projects.GetByID(ctx, *input.ProjectID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrProjectNotFound
			}
			return nil, fmt.Errorf("lookup project: %w", err)
		}
		if project.OwnerID != ownerID {
			return nil, ErrForbidden
		}
	}

	now := s.now()
	conversation := domain.Conversation{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		ProjectID: input.ProjectID,
		Title:     strings.TrimSpace(input.Title),
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.chats.CreateConversation(ctx, conversation); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &conversation, nil
}

// ListConversations returns the caller's conversations, most recently active
// first.
func (s *ChatService) ListConversations(ctx context.Context, ownerID string) ([]domain.Conversation, error) {
	conversations, err := s.chats.ListConversations(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return conversations, nil
}

// GetConversation returns one conversation with its messages.
func (s *ChatService) GetConversation(ctx context.Context, ownerID, conversationID string) (*domain.Conversation, []domain.ChatMessage, error) {
	conversation, err := s.getOwnedConversation(ctx, ownerID, conversationID)
	if err != nil {
		return nil, nil, err
	}

	messages, err := s.chats.ListMessages(ctx, conversationID, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("list messages: %w", err)
	}
	return conversation, messages, nil
}

// DeleteConversation removes a conversation and its messages.
func (s *ChatService) DeleteConversation(ctx context.Context, ownerID, conversationID string) error {
	if _, err := s.getOwnedConversation(ctx, ownerID, conversationID); err != nil {
		return err
	}

	if err := s.chats.DeleteConversation(ctx, conversationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrConversationNotFound
		}
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

// SendMessage persists the user message, obtains the assistant reply, and
// pushes both to connected clients. The user message survives even when the
// completion call fails.
func (s *ChatService) SendMessage(ctx context.Context, ownerID, conversationID, content string) (*domain.ChatMessage, *domain.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, ErrEmptyMessage
	}

	conversation, err := s.getOwnedConversation(ctx, ownerID, conversationID)
	if err != nil {
		return nil, nil, err
	}

	userMsg := domain.ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: conversation.ID,
		Role:           domain.MessageRoleUser,
		Content:        content,
		CreatedAt:      s.now(),
	}
	if err := s.chats.AddMessage(ctx, userMsg); err != nil {
		return nil, nil, fmt.Errorf("store user message: %w", err)
	}

	s.afterMessage(ctx, conversation, userMsg)

	history, err := s.chats.ListMessages(ctx, conversation.ID, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("list messages: %w", err)
	}

	reply, err := s.completions.Complete(ctx, conversation.Mode, history)
	if err != nil {
		return &userMsg, nil, fmt.Errorf("generate reply: %w", err)
	}

	assistantMsg := domain.ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: conversation.ID,
		Role:           domain.MessageRoleAssistant,
		Content:        reply,
		CreatedAt:      s.now(),
	}
	if err := s.chats.AddMessage(ctx, assistantMsg); err != nil {
		return &userMsg, nil, fmt.Errorf("store assistant message: %w", err)
	}

	s.afterMessage(ctx, conversation, assistantMsg)

	if conversation.Title == "" {
		s.setTitleFromContent(ctx, conversation, content)
	}

	return &userMsg, &assistantMsg, nil
}

// afterMessage bumps the conversation stamp, broadcasts, and publishes the
// message event. All steps are best-effort.
func (s *ChatService) afterMessage(ctx context.Context, conversation *domain.Conversation, message domain.ChatMessage) {
	if err := s.chats.TouchConversation(ctx, conversation.ID); err != nil {
		s.logger.Warn("touch conversation failed",
			zap.String("conversation_id", conversation.ID),
			zap.Error(err),
		)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastMessage(conversation.ID, message)
	}

	if err := s.events.PublishChatMessageCreated(ctx, domain.ChatMessageCreatedEvent{
		ConversationID: conversation.ID,
		MessageID:      message.ID,
		OwnerID:        conversation.OwnerID,
		Role:           string(message.Role),
		CreatedAt:      message.CreatedAt,
	}); err != nil {
		s.logger.Warn("publish chat message event failed", zap.Error(err))
	}
}

// setTitleFromContent derives a conversation title from the first message.
func (s *ChatService) setTitleFromContent(ctx context.Context, conversation *domain.Conversation, content string) {
	title := content
	if runes := []rune(title); len(runes) > conversationTitleLimit {
		title = string(runes[:conversationTitleLimit])
	}

	if err := s.chats.RenameConversation(ctx, conversation.ID, title); err != nil {
		s.logger.Warn("rename conversation failed",
			zap.String("conversation_id", conversation.ID),
			zap.Error(err),
		)
		return
	}
	conversation.Title = title
}
