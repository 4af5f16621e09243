package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/startupadvisor/advisor-api/internal/core/domain"
	"github.com/startupadvisor/advisor-api/internal/core/port"
	"github.com/startupadvisor/advisor-api/internal/infra/config"
	"github.com/startupadvisor/advisor-api/internal/infra/logger"
	"github.com/startupadvisor/advisor-api/internal/infra/security"
	"github.com/startupadvisor/advisor-api/internal/repository"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

const notifyTimeout = 10 * time.Second

// AuthService coordinates the session and credential lifecycle: registration,
// login, token refresh, logout, and the read-only account projections.
type AuthService struct {
	cfg      config.AuthSettings
	users    port.UserRepository
	tokens   *security.TokenService
	hasher   *security.PasswordHasher
	notifier port.Notifier
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	cfg config.AuthSettings,
	users port.UserRepository,
	tokens *security.TokenService,
	hasher *security.PasswordHasher,
	notifier port.Notifier,
	events port.EventPublisher,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		cfg:      cfg,
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
		events:   events,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	Name        string
	CompanyName string
}

// AuthResult bundles the sanitized user with a fresh token pair.
type AuthResult struct {
	User   domain.User
	Tokens security.TokenPair
}

// RequestMeta carries transport metadata recorded in the audit log.
type RequestMeta struct {
	IP        *string
	UserAgent *string
}

// SanitizeUser is the single chokepoint through which account data leaves
// the usecase layer. The copy never carries the password hash or reset
// token material.
func SanitizeUser(user domain.User) domain.User {
	sanitized := user
	sanitized.PasswordHash = ""
	sanitized.ResetTokenHash = nil
	sanitized.ResetTokenExpires = nil
	return sanitized
}

// notify dispatches an email without blocking the caller. Delivery failures
// are logged and never propagate.
func dispatchNotification(log *zap.Logger, kind string, send func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			log.Warn("notification dispatch failed",
				zap.String("kind", kind),
				zap.Error(err),
			)
		}
	}()
}

func (s *AuthService) audit(ctx context.Context, userID, action string, meta RequestMeta, success bool) {
	activity := domain.AuthActivity{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   success,
		CreatedAt: s.now(),
	}
	if err := s.users.LogAuthActivity(ctx, activity); err != nil {
		s.logger.Warn("audit log write failed",
			zap.String("action", action),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

// storeRefreshToken hashes and persists a freshly issued refresh token.
func (s *AuthService) storeRefreshToken(ctx context.Context, userID, rawToken string, meta RequestMeta) error {
	token := domain.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: security.HashToken(rawToken),
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		CreatedAt: s.now(),
	}
	if err := s.users.AddRefreshToken(ctx, token); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// Register creates the account and signs the user in. The duplicate check is
// a single combined query; when both fields collide the email error wins.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(input.Email)

	if !usernamePattern.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	if !emailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}

	strength := security.ScorePasswordStrength(input.Password, username, email)
	if !strength.IsValid {
		return nil, ErrWeakPassword
	}

	emailTaken, usernameTaken, err := s.users.FindExisting(ctx, email, username)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if emailTaken {
		return nil, ErrDuplicateEmail
	}
	if usernameTaken {
		return nil, ErrDuplicateUsername
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := domain.User{
		ID:                uuid.NewString(),
		Username:          username,
		Email:             email,
		PasswordHash:      passwordHash,
		Name:              strings.TrimSpace(input.Name),
		CompanyName:       strings.TrimSpace(input.CompanyName),
		Role:              domain.RoleOwner,
		IsActive:          true,
		PasswordChangedAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	pair, err := s.tokens.IssueTokenPair(user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.storeRefreshToken(ctx, user.ID, pair.RefreshToken, RequestMeta{}); err != nil {
		return nil, err
	}

	s.audit(ctx, user.ID, domain.ActivityRegister, RequestMeta{}, true)

	if err := s.events.PublishUserRegistered(ctx, domain.UserRegisteredEvent{
		UserID:       user.ID,
		Username:     user.Username,
		Email:        user.Email,
		CompanyName:  user.CompanyName,
		RegisteredAt: now,
	}); err != nil {
		s.logger.Warn("publish user registered event failed", zap.Error(err))
	}

	dispatchNotification(s.logger, "welcome", func(ctx context.Context) error {
		return s.notifier.SendWelcome(ctx, user.Email, user.Name)
	})

	return &AuthResult{User: SanitizeUser(user), Tokens: pair}, nil
}

// Authenticate validates credentials and issues a token pair. Unknown
// identifier and wrong password collapse into the same error. Wrong
// passwords count toward the lockout threshold; reaching it starts the lock
// window.
func (s *AuthService) Authenticate(ctx context.Context, identifier, password string, meta RequestMeta) (*AuthResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// No account resolves, so there is nothing to audit against.
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !user.IsActive {
		s.audit(ctx, user.ID, domain.ActivityLogin, meta, false)
		return nil, ErrAccountDeactivated
	}

	now := s.now()
	if user.IsLocked(now) {
		s.audit(ctx, user.ID, domain.ActivityLogin, meta, false)
		return nil, ErrAccountLocked
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.handleFailedLogin(ctx, user, meta)
		return nil, ErrInvalidCredentials
	}

	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		if err := s.users.ClearLock(ctx, user.ID); err != nil {
			s.logger.Warn("clear lock failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	pair, err := s.tokens.IssueTokenPair(user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.storeRefreshToken(ctx, user.ID, pair.RefreshToken, meta); err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("update last login failed", zap.String("user_id", user.ID), zap.Error(err))
	}

	s.audit(ctx, user.ID, domain.ActivityLogin, meta, true)

	if err := s.events.PublishUserLoggedIn(ctx, domain.UserLoggedInEvent{
		UserID:    user.ID,
		LoggedAt:  now,
		IPAddress: meta.IP,
	}); err != nil {
		s.logger.Warn("publish login event failed", zap.Error(err))
	}

	user.LastLogin = &now
	return &AuthResult{User: SanitizeUser(*user), Tokens: pair}, nil
}

// handleFailedLogin increments the counter and starts the lock window when
// the threshold is reached. Every step is best-effort; the caller still
// reports invalid credentials.
func (s *AuthService) handleFailedLogin(ctx context.Context, user *domain.User, meta RequestMeta) {
	attempts, err := s.users.RecordFailedLogin(ctx, user.ID)
	if err != nil {
		s.logger.Warn("record failed login failed", zap.String("user_id", user.ID), zap.Error(err))
		s.audit(ctx, user.ID, domain.ActivityLogin, meta, false)
		return
	}

	if attempts >= s.cfg.MaxFailedLogins {
		until := s.now().Add(s.cfg.LockDuration)
		if err := s.users.SetLock(ctx, user.ID, until); err != nil {
			s.logger.Warn("set lock failed", zap.String("user_id", user.ID), zap.Error(err))
		} else {
			s.logger.Info("account locked after repeated failures",
				zap.String("user_id", user.ID),
				zap.String("email", logger.MaskEmail(user.Email)),
				zap.Int("attempts", attempts),
				zap.Time("locked_until", until),
			)
			if err := s.events.PublishAccountStateChanged(ctx, domain.AccountStateChangedEvent{
				UserID:    user.ID,
				State:     domain.AccountStateLocked,
				ChangedAt: s.now(),
				Reason:    "failed login threshold reached",
			}); err != nil {
				s.logger.Warn("publish account locked event failed", zap.Error(err))
			}
		}
	}

	s.audit(ctx, user.ID, domain.ActivityLogin, meta, false)
}

// RefreshAccessToken rotates a refresh token: the presented token is
// invalidated and a new pair issued.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string, meta RequestMeta) (*AuthResult, error) {
	claims, err := s.tokens.Verify(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.Type != security.TokenTypeRefresh {
		return nil, ErrInvalidTokenType
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	tokenHash := security.HashToken(refreshToken)
	if _, err := s.users.GetRefreshToken(ctx, user.ID, tokenHash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenRevoked
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}

	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}
	if user.IsLocked(s.now()) {
		return nil, ErrAccountLocked
	}

	if _, err := s.users.RemoveRefreshToken(ctx, user.ID, tokenHash); err != nil {
		return nil, fmt.Errorf("remove refresh token: %w", err)
	}

	pair, err := s.tokens.IssueTokenPair(user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.storeRefreshToken(ctx, user.ID, pair.RefreshToken, meta); err != nil {
		return nil, err
	}

	s.audit(ctx, user.ID, domain.ActivityRefresh, meta, true)

	return &AuthResult{User: SanitizeUser(*user), Tokens: pair}, nil
}

// Logout removes a single refresh token. Removing an absent token is not an
// error; removal is a set-difference operation, safe to repeat.
func (s *AuthService) Logout(ctx context.Context, userID, refreshToken string, meta RequestMeta) error {
	if _, err := s.users.RemoveRefreshToken(ctx, userID, security.HashToken(refreshToken)); err != nil {
		return fmt.Errorf("remove refresh token: %w", err)
	}
	s.audit(ctx, userID, domain.ActivityLogout, meta, true)
	return nil
}

// LogoutAll clears the entire refresh-token set for the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID string, meta RequestMeta) error {
	if err := s.users.ClearRefreshTokens(ctx, userID); err != nil {
		return fmt.Errorf("clear refresh tokens: %w", err)
	}
	s.audit(ctx, userID, domain.ActivityLogout, meta, true)
	return nil
}

// RevokeSession removes the refresh token with the given session id. Unlike
// Logout it reports an absent id, to surface client bugs.
func (s *AuthService) RevokeSession(ctx context.Context, userID, sessionID string, meta RequestMeta) error {
	tokens, err := s.users.ListRefreshTokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("list refresh tokens: %w", err)
	}

	for _, token := range tokens {
		if token.ID == sessionID {
			if _, err := s.users.RemoveRefreshToken(ctx, userID, token.TokenHash); err != nil {
				return fmt.Errorf("remove refresh token: %w", err)
			}
			s.audit(ctx, userID, domain.ActivityLogout, meta, true)
			return nil
		}
	}
	return ErrSessionNotFound
}

// AccountStatus is the read-only account state projection.
type AccountStatus struct {
	IsActive            bool
	IsLocked            bool
	LockedUntil         *time.Time
	FailedLoginAttempts int
	LastLogin           *time.Time
	PasswordChangedAt   time.Time
}

// GetAccountStatus returns the account state projection.
func (s *AuthService) GetAccountStatus(ctx context.Context, userID string) (*AccountStatus, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	return &AccountStatus{
		IsActive:            user.IsActive,
		IsLocked:            user.IsLocked(s.now()),
		LockedUntil:         user.LockedUntil,
		FailedLoginAttempts: user.FailedLoginAttempts,
		LastLogin:           user.LastLogin,
		PasswordChangedAt:   user.PasswordChangedAt,
	}, nil
}

// SessionInfo is the read-only projection of a stored refresh token. The
// token hash never leaves the usecase layer.
type SessionInfo struct {
	ID        string
	IP        *string
	UserAgent *string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// GetActiveSessions lists the user's stored sessions, newest first.
func (s *AuthService) GetActiveSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	tokens, err := s.users.ListRefreshTokens(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(tokens))
	for _, token := range tokens {
		sessions = append(sessions, SessionInfo{
			ID:        token.ID,
			IP:        token.IP,
			UserAgent: token.UserAgent,
			CreatedAt: token.CreatedAt,
			ExpiresAt: token.ExpiresAt(s.tokens.RefreshTTL()),
		})
	}
	return sessions, nil
}

const defaultActivityLimit = 50

// GetAuthActivityLogs returns the newest audit rows, truncated to limit
// (default 50).
func (s *AuthService) GetAuthActivityLogs(ctx context.Context, userID string, limit int) ([]domain.AuthActivity, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	activities, err := s.users.ListAuthActivity(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list auth activity: %w", err)
	}
	return activities, nil
}

// UpdateProfile updates the mutable profile fields and returns the sanitized
// result.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, name, companyName string) (*domain.User, error) {
	if err := s.users.UpdateProfile(ctx, userID, strings.TrimSpace(name), strings.TrimSpace(companyName)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}
	sanitized := SanitizeUser(*user)
	return &sanitized, nil
}

// GetUser returns the sanitized user record.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	sanitized := SanitizeUser(*user)
	return &sanitized, nil
}
