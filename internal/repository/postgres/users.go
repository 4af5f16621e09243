package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/startupadvisor/advisor-api/internal/core/domain"
	"github.com/startupadvisor/advisor-api/internal/core/port"
	"github.com/startupadvisor/advisor-api/internal/repository"
)

var userColumns = []string{
	"id",
	"username",
	"email",
	"password_hash",
	"name",
	"company_name",
	"role",
	"is_active",
	"failed_login_attempts",
	"locked_until",
	"password_changed_at",
	"reset_token_hash",
	"reset_token_expires",
	"last_login",
	"created_at",
	"updated_at",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.CompanyName,
		&user.Role,
		&user.IsActive,
		&user.FailedLoginAttempts,
		&user.LockedUntil,
		&user.PasswordChangedAt,
		&user.ResetTokenHash,
		&user.ResetTokenExpires,
		&user.LastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

// Create inserts a new user row.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	stmt, args, err := r.builder.Insert("users").
		Columns(
			"id",
			"username",
			"email",
			"password_hash",
			"name",
			"company_name",
			"role",
			"is_active",
			"password_changed_at",
			"created_at",
			"updated_at",
		).
		Values(
			user.ID,
			user.Username,
			user.Email,
			user.PasswordHash,
			user.Name,
			user.CompanyName,
			user.Role,
			user.IsActive,
			user.PasswordChangedAt,
			user.CreatedAt,
			user.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	return scanUser(r.exec.QueryRow(ctx, stmt, args...))
}

// GetByIdentifier resolves a user by email or username, case-insensitively.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("users").
		Where(squirrel.Or{
			squirrel.Expr("LOWER(email) = LOWER(?)", identifier),
			squirrel.Expr("LOWER(username) = LOWER(?)", identifier),
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	return scanUser(r.exec.QueryRow(ctx, stmt, args...))
}

// FindExisting reports which of email and username is already taken.
func (r *UserRepository) FindExisting(ctx context.Context, email, username string) (bool, bool, error) {
	stmt := `SELECT
		EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1)),
		EXISTS (SELECT 1 FROM users WHERE LOWER(username) = LOWER($2))`

	var emailTaken, usernameTaken bool
	if err := r.exec.QueryRow(ctx, stmt, email, username).Scan(&emailTaken, &usernameTaken); err != nil {
		return false, false, fmt.Errorf("check existing user: %w", err)
	}
	return emailTaken, usernameTaken, nil
}

// UpdateProfile updates mutable profile fields.
func (r *UserRepository) UpdateProfile(ctx context.Context, id, name, companyName string) error {
	stmt, args, err := r.builder.Update("users").
		Set("name", name).
		Set("company_name", companyName).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update profile sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateEmail replaces the email address. Uniqueness is enforced by the
// case-insensitive index on the column.
func (r *UserRepository) UpdateEmail(ctx context.Context, id, email string) error {
	stmt, args, err := r.builder.Update("users").
		Set("email", email).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update email sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdatePassword replaces the password hash and stamps the change time.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	stmt, args, err := r.builder.Update("users").
		Set("password_hash", passwordHash).
		Set("password_changed_at", changedAt).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateLastLogin stamps the last successful login time.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("users").
		Set("last_login", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update last login sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// SetActive toggles the account active flag.
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	stmt, args, err := r.builder.Update("users").
		Set("is_active", active).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set active sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RecordFailedLogin increments the failed attempt counter atomically and
// returns the new count.
func (r *UserRepository) RecordFailedLogin(ctx context.Context, id string) (int, error) {
	stmt := `UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1
		WHERE id = $1
		RETURNING failed_login_attempts`

	var attempts int
	if err := r.exec.QueryRow(ctx, stmt, id).Scan(&attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("record failed login: %w", err)
	}
	return attempts, nil
}

// ResetFailedAttempts zeroes the failed attempt counter.
func (r *UserRepository) ResetFailedAttempts(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update("users").
		Set("failed_login_attempts", 0).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build reset attempts sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("reset failed attempts: %w", err)
	}
	return nil
}

// SetLock sets the lock expiry on the account.
func (r *UserRepository) SetLock(ctx context.Context, id string, until time.Time) error {
	stmt, args, err := r.builder.Update("users").
		Set("locked_until", until).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set lock sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("set lock: %w", err)
	}
	return nil
}

// ClearLock removes the lock and zeroes the attempt counter.
func (r *UserRepository) ClearLock(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update("users").
		Set("locked_until", nil).
		Set("failed_login_attempts", 0).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build clear lock sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("clear lock: %w", err)
	}
	return nil
}

// ListPasswordHistory returns the most recent password hashes, newest first.
func (r *UserRepository) ListPasswordHistory(ctx context.Context, userID string, limit int) ([]domain.PasswordHistoryEntry, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "password_hash", "set_at").
		From("password_history").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("set_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select password history sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select password history: %w", err)
	}
	defer rows.Close()

	var entries []domain.PasswordHistoryEntry
	for rows.Next() {
		var entry domain.PasswordHistoryEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.PasswordHash, &entry.SetAt); err != nil {
			return nil, fmt.Errorf("scan password history: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate password history: %w", err)
	}
	return entries, nil
}

// AddPasswordHistory appends a password hash to the history log.
func (r *UserRepository) AddPasswordHistory(ctx context.Context, entry domain.PasswordHistoryEntry) error {
	stmt, args, err := r.builder.Insert("password_history").
		Columns("id", "user_id", "password_hash", "set_at").
		Values(entry.ID, entry.UserID, entry.PasswordHash, entry.SetAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert password history sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert password history: %w", err)
	}
	return nil
}

// TrimPasswordHistory deletes all but the newest keep entries.
func (r *UserRepository) TrimPasswordHistory(ctx context.Context, userID string, keep int) error {
	stmt := `DELETE FROM password_history
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM password_history
			WHERE user_id = $1
			ORDER BY set_at DESC
			LIMIT $2
		)`

	if _, err := r.exec.Exec(ctx, stmt, userID, keep); err != nil {
		return fmt.Errorf("trim password history: %w", err)
	}
	return nil
}

// AddRefreshToken persists a refresh token hash.
func (r *UserRepository) AddRefreshToken(ctx context.Context, token domain.RefreshToken) error {
	stmt, args, err := r.builder.Insert("refresh_tokens").
		Columns("id", "user_id", "token_hash", "ip", "user_agent", "created_at").
		Values(token.ID, token.UserID, token.TokenHash, token.IP, token.UserAgent, token.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert refresh token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// RemoveRefreshToken deletes a refresh token row and reports whether one
// existed. Removal of an absent token is not an error.
func (r *UserRepository) RemoveRefreshToken(ctx context.Context, userID, tokenHash string) (bool, error) {
	stmt, args, err := r.builder.Delete("refresh_tokens").
		Where(squirrel.Eq{"user_id": userID, "token_hash": tokenHash}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete refresh token sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("delete refresh token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ClearRefreshTokens removes every refresh token for the user.
func (r *UserRepository) ClearRefreshTokens(ctx context.Context, userID string) error {
	stmt, args, err := r.builder.Delete("refresh_tokens").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build clear refresh tokens sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("clear refresh tokens: %w", err)
	}
	return nil
}

// GetRefreshToken fetches a refresh token row by its hash.
func (r *UserRepository) GetRefreshToken(ctx context.Context, userID, tokenHash string) (*domain.RefreshToken, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "token_hash", "ip", "user_agent", "created_at").
		From("refresh_tokens").
		Where(squirrel.Eq{"user_id": userID, "token_hash": tokenHash}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select refresh token sql: %w", err)
	}

	var token domain.RefreshToken
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.IP,
		&token.UserAgent,
		&token.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}
	return &token, nil
}

// ListRefreshTokens returns all refresh tokens for the user, newest first.
func (r *UserRepository) ListRefreshTokens(ctx context.Context, userID string) ([]domain.RefreshToken, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "token_hash", "ip", "user_agent", "created_at").
		From("refresh_tokens").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select refresh tokens sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select refresh tokens: %w", err)
	}
	defer rows.Close()

	var tokens []domain.RefreshToken
	for rows.Next() {
		var token domain.RefreshToken
		if err := rows.Scan(
			&token.ID,
			&token.UserID,
			&token.TokenHash,
			&token.IP,
			&token.UserAgent,
			&token.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan refresh token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refresh tokens: %w", err)
	}
	return tokens, nil
}

// SetResetToken stores the hashed reset token and its expiry, replacing any
// previous outstanding token.
func (r *UserRepository) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	stmt, args, err := r.builder.Update("users").
		Set("reset_token_hash", tokenHash).
		Set("reset_token_expires", expiresAt).
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set reset token sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetByResetTokenHash resolves the user holding the given reset token hash.
func (r *UserRepository) GetByResetTokenHash(ctx context.Context, tokenHash string) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"reset_token_hash": tokenHash}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select by reset token sql: %w", err)
	}

	return scanUser(r.exec.QueryRow(ctx, stmt, args...))
}

// ClearResetToken removes the outstanding reset token, if any.
func (r *UserRepository) ClearResetToken(ctx context.Context, userID string) error {
	stmt, args, err := r.builder.Update("users").
		Set("reset_token_hash", nil).
		Set("reset_token_expires", nil).
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build clear reset token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("clear reset token: %w", err)
	}
	return nil
}

// LogAuthActivity appends an audit row.
func (r *UserRepository) LogAuthActivity(ctx context.Context, activity domain.AuthActivity) error {
	stmt, args, err := r.builder.Insert("auth_activity").
		Columns("id", "user_id", "action", "ip", "user_agent", "success", "created_at").
		Values(
			activity.ID,
			activity.UserID,
			activity.Action,
			activity.IP,
			activity.UserAgent,
			activity.Success,
			activity.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert auth activity sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert auth activity: %w", err)
	}
	return nil
}

// ListAuthActivity returns the most recent audit rows, newest first.
func (r *UserRepository) ListAuthActivity(ctx context.Context, userID string, limit int) ([]domain.AuthActivity, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "action", "ip", "user_agent", "success", "created_at").
		From("auth_activity").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select auth activity sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select auth activity: %w", err)
	}
	defer rows.Close()

	var activities []domain.AuthActivity
	for rows.Next() {
		var activity domain.AuthActivity
		if err := rows.Scan(
			&activity.ID,
			&activity.UserID,
			&activity.Action,
			&activity.IP,
			&activity.UserAgent,
			&activity.Success,
			&activity.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan auth activity: %w", err)
		}
		activities = append(activities, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate auth activity: %w", err)
	}
	return activities, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
