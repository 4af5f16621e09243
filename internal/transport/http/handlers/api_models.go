package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/startupadvisor/advisor-api/internal/core/domain"
	"github.com/startupadvisor/advisor-api/internal/transport/http/middleware"
	"github.com/startupadvisor/advisor-api/internal/usecase"
)

// ErrorResponse is the generic error payload, carrying the trace ID so a
// client report can be matched to server logs.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse builds an error response stamped with the request's trace ID.
func NewErrorResponse(c *gin.Context, msg string) ErrorResponse {
	return ErrorResponse{
		Error:   msg,
		TraceID: middleware.GetTraceID(c),
	}
}

// MessageResponse is a simple confirmation payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserPayload is the public view of an account.
type UserPayload struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Name        string     `json:"name,omitempty"`
	CompanyName string     `json:"company_name,omitempty"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// RegisterRequest is the account registration payload.
type RegisterRequest struct {
	Username    string `json:"username" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	Name        string `json:"name"`
	CompanyName string `json:"company_name"`
}

// LoginRequest is the login payload. Identifier accepts username or email.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// AuthResponse is returned by register, login, refresh, and reactivate.
type AuthResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	User         UserPayload `json:"user"`
}

// RefreshRequest carries the refresh token to rotate.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutRequest carries the refresh token to revoke.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ProfileUpdateRequest updates mutable profile fields.
type ProfileUpdateRequest struct {
	Name        string `json:"name"`
	CompanyName string `json:"company_name"`
}

// AccountStatusResponse reports lockout and activity state for the
// authenticated account.
type AccountStatusResponse struct {
	IsActive            bool       `json:"is_active"`
	IsLocked            bool       `json:"is_locked"`
	LockedUntil         *time.Time `json:"locked_until,omitempty"`
	FailedLoginAttempts int        `json:"failed_login_attempts"`
	PasswordChangedAt   time.Time  `json:"password_changed_at"`
	LastLogin           *time.Time `json:"last_login,omitempty"`
}

// SessionPayload describes an active refresh session.
type SessionPayload struct {
	ID        string    `json:"id"`
	IP        *string   `json:"ip,omitempty"`
	UserAgent *string   `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionListResponse wraps the active sessions of a user.
type SessionListResponse struct {
	Sessions []SessionPayload `json:"sessions"`
	Total    int              `json:"total"`
}

// ActivityPayload is one entry of the authentication audit trail.
type ActivityPayload struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	IP        *string   `json:"ip,omitempty"`
	UserAgent *string   `json:"user_agent,omitempty"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityListResponse wraps audit trail entries.
type ActivityListResponse struct {
	Activities []ActivityPayload `json:"activities"`
	Total      int               `json:"total"`
}

// ForgotPasswordRequest starts the reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest completes the reset flow with the emailed token.
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// ChangePasswordRequest rotates the password of an authenticated user.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// DeactivateRequest confirms deactivation with the account password.
type DeactivateRequest struct {
	Password string `json:"password" binding:"required"`
}

// ReactivateRequest re-enables a deactivated account.
type ReactivateRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// ChangeEmailRequest replaces the account email after password confirmation.
type ChangeEmailRequest struct {
	Password string `json:"password" binding:"required"`
	NewEmail string `json:"new_email" binding:"required,email"`
}

// UnlockRequest asks for an early lockout release.
type UnlockRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ProjectRequest is the create/update payload for a project.
type ProjectRequest struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	Industry     string `json:"industry"`
	Stage        string `json:"stage"`
	PitchSummary string `json:"pitch_summary"`
}

// ProjectPayload is the API view of a project.
type ProjectPayload struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Industry     string    `json:"industry,omitempty"`
	Stage        string    `json:"stage,omitempty"`
	PitchSummary string    `json:"pitch_summary,omitempty"`
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProjectListResponse wraps the projects of an owner.
type ProjectListResponse struct {
	Projects []ProjectPayload `json:"projects"`
	Total    int              `json:"total"`
}

// ProjectVersionPayload is one snapshot in a project's version log.
type ProjectVersionPayload struct {
	Version      int       `json:"version"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Industry     string    `json:"industry,omitempty"`
	Stage        string    `json:"stage,omitempty"`
	PitchSummary string    `json:"pitch_summary,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProjectVersionListResponse wraps the version log of a project.
type ProjectVersionListResponse struct {
	Versions []ProjectVersionPayload `json:"versions"`
	Total    int                     `json:"total"`
}

// ConversationRequest creates a conversation.
type ConversationRequest struct {
	ProjectID *string `json:"project_id,omitempty"`
	Title     string  `json:"title"`
	Mode      string  `json:"mode"`
}

// ConversationPayload is the API view of a conversation.
type ConversationPayload struct {
	ID        string    `json:"id"`
	ProjectID *string   `json:"project_id,omitempty"`
	Title     string    `json:"title"`
	Mode      string    `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationListResponse wraps the conversations of a user.
type ConversationListResponse struct {
	Conversations []ConversationPayload `json:"conversations"`
	Total         int                   `json:"total"`
}

// MessagePayload is one chat message.
type MessagePayload struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationDetailResponse is a conversation plus its full transcript.
type ConversationDetailResponse struct {
	Conversation ConversationPayload `json:"conversation"`
	Messages     []MessagePayload    `json:"messages"`
}

// SendMessageRequest submits a user message to a conversation.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// SendMessageResponse returns the stored user message and the assistant reply.
type SendMessageResponse struct {
	Message MessagePayload `json:"message"`
	Reply   MessagePayload `json:"reply"`
}

// HealthResponse describes the liveness payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadyResponse describes readiness probe results per dependency.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func newUserPayload(user domain.User) UserPayload {
	return UserPayload{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Name:        user.Name,
		CompanyName: user.CompanyName,
		Role:        string(user.Role),
		IsActive:    user.IsActive,
		LastLogin:   user.LastLogin,
		CreatedAt:   user.CreatedAt,
	}
}

func newProjectPayload(project domain.Project) ProjectPayload {
	return ProjectPayload{
		ID:           project.ID,
		Name:         project.Name,
		Description:  project.Description,
		Industry:     project.Industry,
		Stage:        project.Stage,
		PitchSummary: project.PitchSummary,
		Version:      project.Version,
		CreatedAt:    project.CreatedAt,
		UpdatedAt:    project.UpdatedAt,
	}
}

func newProjectVersionPayload(version domain.ProjectVersion) ProjectVersionPayload {
	return ProjectVersionPayload{
		Version:      version.Version,
		Name:         version.Name,
		Description:  version.Description,
		Industry:     version.Industry,
		Stage:        version.Stage,
		PitchSummary: version.PitchSummary,
		CreatedAt:    version.CreatedAt,
	}
}

func newConversationPayload(conversation domain.Conversation) ConversationPayload {
	return ConversationPayload{
		ID:        conversation.ID,
		ProjectID: conversation.ProjectID,
		Title:     conversation.Title,
		Mode:      string(conversation.Mode),
		CreatedAt: conversation.CreatedAt,
		UpdatedAt: conversation.UpdatedAt,
	}
}

func newMessagePayload(message domain.ChatMessage) MessagePayload {
	return MessagePayload{
		ID:        message.ID,
		Role:      string(message.Role),
		Content:   message.Content,
		CreatedAt: message.CreatedAt,
	}
}

// requestMeta captures the transport metadata passed to the audit trail.
func requestMeta(c *gin.Context) usecase.RequestMeta {
	meta := usecase.RequestMeta{}
	if ip := c.ClientIP(); ip != "" {
		meta.IP = &ip
	}
	if ua := c.Request.UserAgent(); ua != "" {
		meta.UserAgent = &ua
	}
	return meta
}
