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
	"github.com/startupadvisor/advisor-api/internal/infra/config"
	"github.com/startupadvisor/advisor-api/internal/infra/logger"
	"github.com/startupadvisor/advisor-api/internal/infra/security"
	"github.com/startupadvisor/advisor-api/internal/repository"
)

// PasswordService handles the reset and change flows for user credentials.
type PasswordService struct {
	cfg      config.AuthSettings
	baseURL  string
	users    port.UserRepository
	hasher   *security.PasswordHasher
	notifier port.Notifier
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewPasswordService constructs a PasswordService instance.
func NewPasswordService(
	cfg config.AuthSettings,
	baseURL string,
	users port.UserRepository,
	hasher *security.PasswordHasher,
	notifier port.Notifier,
	events port.EventPublisher,
	log *zap.Logger,
) *PasswordService {
	return &PasswordService{
		cfg:      cfg,
		baseURL:  strings.TrimRight(baseURL, "/"),
		users:    users,
		hasher:   hasher,
		notifier: notifier,
		events:   events,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *PasswordService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// isReused reports whether the candidate matches the current password or any
// recorded previous one.
func (s *PasswordService) isReused(ctx context.Context, user *domain.User, candidate string) (bool, error) {
	match, err := s.hasher.Verify(candidate, user.PasswordHash)
	if err != nil {
		return false, fmt.Errorf("compare current password: %w", err)
	}
	if match {
		return true, nil
	}

	history, err := s.users.ListPasswordHistory(ctx, user.ID, s.cfg.PasswordHistoryDepth)
	if err != nil {
		return false, fmt.Errorf("list password history: %w", err)
	}
	for _, entry := range history {
		match, err := s.hasher.Verify(candidate, entry.PasswordHash)
		if err != nil {
			return false, fmt.Errorf("compare historical password: %w", err)
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

// applyNewPassword records the outgoing hash in the history, installs the
// new hash, and trims the history to the configured depth.
func (s *PasswordService) applyNewPassword(ctx context.Context, user *domain.User, newPassword string) error {
	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	entry := domain.PasswordHistoryEntry{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		PasswordHash: user.PasswordHash,
		SetAt:        now,
	}
	if err := s.users.AddPasswordHistory(ctx, entry); err != nil {
		return fmt.Errorf("append password history: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, newHash, now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.users.TrimPasswordHistory(ctx, user.ID, s.cfg.PasswordHistoryDepth); err != nil {
		s.logger.Warn("trim password history failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	return nil
}

// InitiatePasswordReset starts the reset flow. It reports success whether or
// not the account exists; callers cannot probe for registered addresses.
func (s *PasswordService) InitiatePasswordReset(ctx context.Context, email string, meta RequestMeta) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return true, nil
	}

	user, err := s.users.GetByIdentifier(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email",
				zap.String("email", logger.MaskEmail(email)),
			)
			return true, nil
		}
		return false, fmt.Errorf("lookup user: %w", err)
	}

	rawToken, err := security.GenerateOpaqueToken()
	if err != nil {
		return false, fmt.Errorf("generate reset token: %w", err)
	}

	now := s.now()
	expiresAt := now.Add(s.cfg.ResetTokenTTL)
	if err := s.users.SetResetToken(ctx, user.ID, security.HashToken(rawToken), expiresAt); err != nil {
		return false, fmt.Errorf("store reset token: %w", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, rawToken)
	dispatchNotification(s.logger, "password_reset", func(ctx context.Context) error {
		return s.notifier.SendPasswordReset(ctx, user.Email, user.Name, resetURL)
	})

	if err := s.events.PublishPasswordResetRequested(ctx, domain.PasswordResetRequestedEvent{
		UserID:            user.ID,
		RequestedAt:       now,
		MaskedDestination: logger.MaskEmail(user.Email),
		IPAddress:         meta.IP,
		ExpiresAt:         expiresAt,
	}); err != nil {
		s.logger.Warn("publish reset requested event failed", zap.Error(err))
	}

	return true, nil
}

// ResetPassword consumes a reset token. Success clears the reset fields and
// the whole refresh-token set, forcing re-login everywhere.
func (s *PasswordService) ResetPassword(ctx context.Context, rawToken, newPassword string, meta RequestMeta) error {
	strength := security.ScorePasswordStrength(newPassword)
	if !strength.IsValid {
		return ErrWeakPassword
	}

	user, err := s.users.GetByResetTokenHash(ctx, security.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}

	now := s.now()
	if user.ResetTokenExpires == nil || user.ResetTokenExpires.Before(now) {
		return ErrInvalidOrExpiredToken
	}

	reused, err := s.isReused(ctx, user, newPassword)
	if err != nil {
		return err
	}
	if reused {
		return ErrPasswordReused
	}

	if err := s.applyNewPassword(ctx, user, newPassword); err != nil {
		return err
	}

	if err := s.users.ClearResetToken(ctx, user.ID); err != nil {
		return fmt.Errorf("clear reset token: %w", err)
	}
	if err := s.users.ClearRefreshTokens(ctx, user.ID); err != nil {
		return fmt.Errorf("clear refresh tokens: %w", err)
	}

	s.auditChange(ctx, user.ID, domain.ActivityPasswordReset, meta)

	if err := s.events.PublishPasswordChanged(ctx, domain.PasswordChangedEvent{
		UserID:          user.ID,
		ChangedAt:       now,
		ChangedBy:       "reset",
		SessionsCleared: true,
	}); err != nil {
		s.logger.Warn("publish password changed event failed", zap.Error(err))
	}

	dispatchNotification(s.logger, "password_changed", func(ctx context.Context) error {
		return s.notifier.SendPasswordChanged(ctx, user.Email, user.Name)
	})

	return nil
}

// ChangePassword replaces the password of an authenticated user. Unlike
// ResetPassword it leaves existing sessions intact.
func (s *PasswordService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string, meta RequestMeta) error {
	strength := security.ScorePasswordStrength(newPassword)
	if !strength.IsValid {
		return ErrWeakPassword
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrIncorrectPassword
	}

	reused, err := s.isReused(ctx, user, newPassword)
	if err != nil {
		return err
	}
	if reused {
		return ErrPasswordReused
	}

	if err := s.applyNewPassword(ctx, user, newPassword); err != nil {
		return err
	}

	s.auditChange(ctx, user.ID, domain.ActivityPasswordChange, meta)

	if err := s.events.PublishPasswordChanged(ctx, domain.PasswordChangedEvent{
		UserID:          user.ID,
		ChangedAt:       s.now(),
		ChangedBy:       "user",
		SessionsCleared: false,
	}); err != nil {
		s.logger.Warn("publish password changed event failed", zap.Error(err))
	}

	dispatchNotification(s.logger, "password_changed", func(ctx context.Context) error {
		return s.notifier.SendPasswordChanged(ctx, user.Email, user.Name)
	})

	return nil
}

func (s *PasswordService) auditChange(ctx context.Context, userID, action string, meta RequestMeta) {
	activity := domain.AuthActivity{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
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
