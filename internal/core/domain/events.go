package domain

import "time"

// UserRegisteredEvent represents the payload for advisor.user.registered messages.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Username     string
	Email        string
	CompanyName  string
	RegisteredAt time.Time
	Metadata     map[string]any
}

// UserLoggedInEvent represents the payload for advisor.user.logged_in messages.
type UserLoggedInEvent struct {
	EventID   string
	UserID    string
	LoggedAt  time.Time
	IPAddress *string
	Metadata  map[string]any
}

// PasswordChangedEvent represents the payload for advisor.user.password.changed messages.
type PasswordChangedEvent struct {
	EventID         string
	UserID          string
	ChangedAt       time.Time
	ChangedBy       string
	SessionsCleared bool
	Metadata        map[string]any
}

// PasswordResetRequestedEvent represents the payload for advisor.user.password.reset_requested messages.
type PasswordResetRequestedEvent struct {
	EventID           string
	UserID            string
	RequestedAt       time.Time
	MaskedDestination string
	IPAddress         *string
	ExpiresAt         time.Time
	Metadata          map[string]any
}

// AccountStateChangedEvent represents the payload for advisor.user.account.state_changed
// messages (lock, unlock, deactivate, reactivate).
type AccountStateChangedEvent struct {
	EventID   string
	UserID    string
	State     string
	ChangedAt time.Time
	Reason    string
	Metadata  map[string]any
}

// Account states carried by AccountStateChangedEvent.
const (
	AccountStateLocked      = "locked"
	AccountStateUnlocked    = "unlocked"
	AccountStateDeactivated = "deactivated"
	AccountStateReactivated = "reactivated"
)

// ProjectVersionCreatedEvent represents the payload for advisor.project.version_created messages.
type ProjectVersionCreatedEvent struct {
	EventID   string
	ProjectID string
	OwnerID   string
	Version   int
	CreatedAt time.Time
	Metadata  map[string]any
}

// ChatMessageCreatedEvent represents the payload for advisor.chat.message_created messages.
type ChatMessageCreatedEvent struct {
	EventID        string
	ConversationID string
	MessageID      string
	OwnerID        string
	Role           string
	CreatedAt      time.Time
	Metadata       map[string]any
}
