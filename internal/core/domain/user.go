package domain

import "time"

// UserRole enumerates the roles a user can hold. Self-registered users are
// always owners in the current product scope.
type UserRole string

const (
	RoleOwner UserRole = "owner"
)

// User mirrors the persisted representation in the users table. PasswordHash
// and the reset token fields never leave the usecase layer unsanitized.
type User struct {
	ID                  string
	Username            string
	Email               string
	PasswordHash        string
	Name                string
	CompanyName         string
	Role                UserRole
	IsActive            bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	PasswordChangedAt   time.Time
	ResetTokenHash      *string
	ResetTokenExpires   *time.Time
	LastLogin           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsLocked reports whether the account is inside an active lock window.
func (u User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// PasswordHistoryEntry tracks a historical password hash for reuse prevention.
type PasswordHistoryEntry struct {
	ID           string
	UserID       string
	PasswordHash string
	SetAt        time.Time
}

// RefreshToken represents a persisted refresh token (stored as a hash).
// A token is valid only while its row exists; removal is the sole
// revocation mechanism. Expiry is derived as CreatedAt plus the configured
// refresh TTL.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	IP        *string
	UserAgent *string
	CreatedAt time.Time
}

// ExpiresAt derives the expiry of the token from its creation time.
func (t RefreshToken) ExpiresAt(ttl time.Duration) time.Time {
	return t.CreatedAt.Add(ttl)
}

// AuthActivity records an authentication-related action for audit purposes.
// Rows are append-only.
type AuthActivity struct {
	ID        string
	UserID    string
	Action    string
	IP        *string
	UserAgent *string
	Success   bool
	CreatedAt time.Time
}

// Auth activity actions recorded by the orchestrator.
const (
	ActivityRegister       = "register"
	ActivityLogin          = "login"
	ActivityLogout         = "logout"
	ActivityRefresh        = "refresh"
	ActivityPasswordChange = "password_change"
	ActivityEmailChange    = "email_change"
	ActivityPasswordReset  = "password_reset"
	ActivityDeactivate     = "deactivate"
	ActivityReactivate     = "reactivate"
	ActivityUnlock         = "unlock"
)
