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
	"github.com/startupadvisor/advisor-api/internal/infra/logger"
	"github.com/startupadvisor/advisor-api/internal/infra/security"
	"github.com/startupadvisor/advisor-api/internal/repository"
)

// AccountService handles account state transitions: deactivation,
// reactivation, and the administrative unlock override.
type AccountService struct {
	users    port.UserRepository
	tokens   *security.TokenService
	hasher   *security.PasswordHasher
	notifier port.Notifier
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewAccountService constructs an AccountService instance.
func NewAccountService(
	users port.UserRepository,
	tokens *security.TokenService,
	hasher *security.PasswordHasher,
	notifier port.Notifier,
	events port.EventPublisher,
	log *zap.Logger,
) *AccountService {
	return &AccountService{
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
func (s *AccountService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

func (s *AccountService) verifyPassword(ctx context.Context, userID, password string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrIncorrectPassword
	}
	return user, nil
}

// Deactivate disables the account after re-verifying the password. All
// sessions are cleared; the record itself is retained.
func (s *AccountService) Deactivate(ctx context.Context, userID, password string, meta RequestMeta) error {
	user, err := s.verifyPassword(ctx, userID, password)
	if err != nil {
		return err
	}
	if !user.IsActive {
		return ErrAccountDeactivated
	}

	if err := s.users.SetActive(ctx, user.ID, false); err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	if err := s.users.ClearRefreshTokens(ctx, user.ID); err != nil {
		return fmt.Errorf("clear refresh tokens: %w", err)
	}

	s.audit(ctx, user.ID, domain.ActivityDeactivate, meta)
	s.publishStateChange(ctx, user.ID, domain.AccountStateDeactivated, "user requested deactivation")

	dispatchNotification(s.logger, "account_deactivated", func(ctx context.Context) error {
		return s.notifier.SendAccountDeactivated(ctx, user.Email, user.Name)
	})

	return nil
}

// Reactivate re-enables a deactivated account after password verification
// and signs the user back in.
func (s *AccountService) Reactivate(ctx context.Context, identifier, password string, meta RequestMeta) (*AuthResult, error) {
	identifier = strings.TrimSpace(identifier)

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if user.IsActive {
		return nil, ErrAccountAlreadyActive
	}

	if err := s.users.SetActive(ctx, user.ID, true); err != nil {
		return nil, fmt.Errorf("reactivate user: %w", err)
	}

	pair, err := s.tokens.IssueTokenPair(user.ID)
	if err != nil {
		return nil, err
	}

	token := domain.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: security.HashToken(pair.RefreshToken),
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		CreatedAt: s.now(),
	}
	if err := s.users.AddRefreshToken(ctx, token); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	s.audit(ctx, user.ID, domain.ActivityReactivate, meta)
	s.publishStateChange(ctx, user.ID, domain.AccountStateReactivated, "user reactivated account")

	dispatchNotification(s.logger, "account_reactivated", func(ctx context.Context) error {
		return s.notifier.SendAccountReactivated(ctx, user.Email, user.Name)
	})

	user.IsActive = true
	return &AuthResult{User: SanitizeUser(*user), Tokens: pair}, nil
}

// ChangeEmail updates the account email after re-verifying the password.
// Both the old and the new address are notified.
func (s *AccountService) ChangeEmail(ctx context.Context, userID, password, newEmail string, meta RequestMeta) (*domain.User, error) {
	newEmail = strings.ToLower(strings.TrimSpace(newEmail))
	if !emailPattern.MatchString(newEmail) {
		return nil, ErrInvalidEmail
	}

	user, err := s.verifyPassword(ctx, userID, password)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(user.Email, newEmail) {
		sanitized := SanitizeUser(*user)
		return &sanitized, nil
	}

	emailTaken, _, err := s.users.FindExisting(ctx, newEmail, "")
	if err != nil {
		return nil, fmt.Errorf("check existing email: %w", err)
	}
	if emailTaken {
		return nil, ErrDuplicateEmail
	}

	if err := s.users.UpdateEmail(ctx, user.ID, newEmail); err != nil {
		return nil, fmt.Errorf("update email: %w", err)
	}

	s.audit(ctx, user.ID, domain.ActivityEmailChange, meta)

	oldEmail := user.Email
	dispatchNotification(s.logger, "email_changed", func(ctx context.Context) error {
		return s.notifier.SendEmailChanged(ctx, oldEmail, newEmail, user.Name)
	})

	user.Email = newEmail
	sanitized := SanitizeUser(*user)
	return &sanitized, nil
}

// UnlockAccount is an administrative override. It reports success for
// unknown or already-unlocked accounts so the endpoint cannot be used to
// probe for registered addresses.
func (s *AccountService) UnlockAccount(ctx context.Context, email string, meta RequestMeta) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return true, nil
	}

	user, err := s.users.GetByIdentifier(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("unlock requested for unknown email",
				zap.String("email", logger.MaskEmail(email)),
			)
			return true, nil
		}
		return false, fmt.Errorf("lookup user: %w", err)
	}

	if user.LockedUntil == nil && user.FailedLoginAttempts == 0 {
		return true, nil
	}

	if err := s.users.ClearLock(ctx, user.ID); err != nil {
		return false, fmt.Errorf("clear lock: %w", err)
	}

	s.audit(ctx, user.ID, domain.ActivityUnlock, meta)
	s.publishStateChange(ctx, user.ID, domain.AccountStateUnlocked, "administrative unlock")

	dispatchNotification(s.logger, "account_unlocked", func(ctx context.Context) error {
		return s.notifier.SendAccountUnlocked(ctx, user.Email, user.Name)
	})

	return true, nil
}

func (s *AccountService) publishStateChange(ctx context.Context, userID, state, reason string) {
	if err := s.events.PublishAccountStateChanged(ctx, domain.AccountStateChangedEvent{
		UserID:    userID,
		State:     state,
		ChangedAt: s.now(),
		Reason:    reason,
	}); err != nil {
		s.logger.Warn("publish account state event failed",
			zap.String("state", state),
			zap.Error(err),
		)
	}
}

func (s *AccountService) audit(ctx context.Context, userID, action string, meta RequestMeta) {
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
