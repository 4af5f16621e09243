package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/startupadvisor/advisor-api/internal/core/domain"
	"github.com/startupadvisor/advisor-api/internal/core/port"
	"github.com/startupadvisor/advisor-api/internal/repository"
)

// ChatRepository implements port.ChatRepository using PostgreSQL.
type ChatRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewChatRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewChatRepository(exec pgExecutor) *ChatRepository {
	return &ChatRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CreateConversation inserts a new conversation row.
func (r *ChatRepository) CreateConversation(ctx context.Context, conversation domain.Conversation) error {
	stmt, args, err := r.builder.Insert("conversations").
		Columns("id", "owner_id", "project_id", "title", "mode", "created_at", "updated_at").
		Values(
			conversation.ID,
			conversation.OwnerID,
			conversation.ProjectID,
			conversation.Title,
			conversation.Mode,
			conversation.CreatedAt,
			conversation.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert conversation sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by identifier.
func (r *ChatRepository) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	stmt, args, err := r.builder.
		Select("id", "owner_id", "project_id", "title", "mode", "created_at", "updated_at").
		From("conversations").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select conversation sql: %w", err)
	}

	var conversation domain.Conversation
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&conversation.ID,
		&conversation.OwnerID,
		&conversation.ProjectID,
		&conversation.Title,
		&conversation.Mode,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	return &conversation, nil
}

// ListConversations returns the owner's conversations, most recently active
// first.
func (r *ChatRepository) ListConversations(ctx context.Context, ownerID string) ([]domain.Conversation, error) {
	stmt, args, err := r.builder.
		Select("id", "owner_id", "project_id", "title", "mode", "created_at", "updated_at").
		From("conversations").
		Where(squirrel.Eq{"owner_id": ownerID}).
		OrderBy("updated_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select conversations sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select conversations: %w", err)
	}
	defer rows.Close()

	var conversations []domain.Conversation
	for rows.Next() {
		var conversation domain.Conversation
		if err := rows.Scan(
			&conversation.ID,
			&conversation.OwnerID,
			&conversation.ProjectID,
			&conversation.Title,
			&conversation.Mode,
			&conversation.CreatedAt,
			&conversation.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, conversation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return conversations, nil
}

// TouchConversation bumps the conversation's updated_at stamp.
func (r *ChatRepository) TouchConversation(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update("conversations").
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch conversation sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// RenameConversation sets the conversation title.
func (r *ChatRepository) RenameConversation(ctx context.Context, id, title string) error {
	stmt, args, err := r.builder.Update("conversations").
		Set("title", title).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build rename conversation sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("rename conversation: %w", err)
	}
	return nil
}

// DeleteConversation removes a conversation and, via cascade, its messages.
func (r *ChatRepository) DeleteConversation(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete("conversations").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete conversation sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// AddMessage appends a message to a conversation.
func (r *ChatRepository) AddMessage(ctx context.Context, message domain.ChatMessage) error {
	stmt, args, err := r.builder.Insert("chat_messages").
		Columns("id", "conversation_id", "role", "content", "created_at").
		Values(message.ID, message.ConversationID, message.Role, message.Content, message.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert chat message sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// ListMessages returns messages in chronological order. When limit is
// positive only the most recent limit messages are returned, still oldest
// first.
func (r *ChatRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.ChatMessage, error) {
	builder := r.builder.
		Select("id", "conversation_id", "role", "content", "created_at").
		From("chat_messages").
		Where(squirrel.Eq{"conversation_id": conversationID}).
		OrderBy("created_at ASC")

	stmt, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select chat messages sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select chat messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var message domain.ChatMessage
		if err := rows.Scan(
			&message.ID,
			&message.ConversationID,
			&message.Role,
			&message.Content,
			&message.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

var _ port.ChatRepository = (*ChatRepository)(nil)
