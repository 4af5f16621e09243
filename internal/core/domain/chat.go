package domain

import "time"

// ConversationMode selects the assistant persona for a conversation.
type ConversationMode string

const (
	// ModeAdvisor is the default startup-advisor persona.
	ModeAdvisor ConversationMode = "advisor"
	// ModeObjectionPractice simulates a skeptical investor raising objections.
	ModeObjectionPractice ConversationMode = "objection_practice"
)

// MessageRole identifies the author of a chat message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Conversation groups an ordered exchange of messages owned by a user,
// optionally attached to a project.
type Conversation struct {
	ID        string
	OwnerID   string
	ProjectID *string
	Title     string
	Mode      ConversationMode
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChatMessage is a single message within a conversation.
type ChatMessage struct {
	ID             string
	ConversationID string
	Role           MessageRole
	Content        string
	CreatedAt      time.Time
}
