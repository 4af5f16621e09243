package port

import (
	"context"
	"time"

	"github.com/startupadvisor/advisor-api/internal/core/domain"
)

// UserRepository exposes persistence behavior for the user aggregate.
// Lookups by email or username are case-insensitive; the storage layer also
// guarantees case-insensitive uniqueness on both columns.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByIdentifier resolves a user by email or username, case-insensitively.
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	// FindExisting reports which of email/username is already taken,
	// case-insensitively, in a single query.
	FindExisting(ctx context.Context, email, username string) (emailTaken, usernameTaken bool, err error)
	UpdateProfile(ctx context.Context, id, name, companyName string) error
	UpdateEmail(ctx context.Context, id, email string) error
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	SetActive(ctx context.Context, id string, active bool) error

	// Lockout counters.
	RecordFailedLogin(ctx context.Context, id string) (attempts int, err error)
	ResetFailedAttempts(ctx context.Context, id string) error
	SetLock(ctx context.Context, id string, until time.Time) error
	ClearLock(ctx context.Context, id string) error

	// Password history, bounded to the configured depth, newest first.
	ListPasswordHistory(ctx context.Context, userID string, limit int) ([]domain.PasswordHistoryEntry, error)
	AddPasswordHistory(ctx context.Context, entry domain.PasswordHistoryEntry) error
	TrimPasswordHistory(ctx context.Context, userID string, keep int) error

	// Refresh-token set. Removal is idempotent; RemoveRefreshToken reports
	// whether a row was actually deleted.
	AddRefreshToken(ctx context.Context, token domain.RefreshToken) error
	RemoveRefreshToken(ctx context.Context, userID, tokenHash string) (bool, error)
	ClearRefreshTokens(ctx context.Context, userID string) error
	GetRefreshToken(ctx context.Context, userID, tokenHash string) (*domain.RefreshToken, error)
	ListRefreshTokens(ctx context.Context, userID string) ([]domain.RefreshToken, error)

	// Reset flow. Only the hash of the delivered token is persisted.
	SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	GetByResetTokenHash(ctx context.Context, tokenHash string) (*domain.User, error)
	ClearResetToken(ctx context.Context, userID string) error

	// Audit log, append-only.
	LogAuthActivity(ctx context.Context, activity domain.AuthActivity) error
	ListAuthActivity(ctx context.Context, userID string, limit int) ([]domain.AuthActivity, error)
}
