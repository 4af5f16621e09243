package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/startupadvisor/advisor-api/internal/core/domain"
	"github.com/startupadvisor/advisor-api/internal/infra/security"
)

const newTestPassword = "Fresh#Credential7!Now"

type passwordFixture struct {
	*authFixture
	service *PasswordService
}

func newPasswordFixture(t *testing.T) *passwordFixture {
	t.Helper()

	auth := newAuthFixture(t)
	service := NewPasswordService(
		testAuthSettings,
		"https://app.example.com/",
		auth.users,
		auth.hasher,
		auth.notifier,
		auth.events,
		zap.NewNop(),
	)
	return &passwordFixture{authFixture: auth, service: service}
}

// seedResetToken stores a reset token for the user the way the initiate flow
// would, and returns the raw token a user would receive by email.
func (f *passwordFixture) seedResetToken(t *testing.T, userID string, expiresAt time.Time) string {
	t.Helper()

	rawToken, err := security.GenerateOpaqueToken()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if err := f.users.SetResetToken(context.Background(), userID, security.HashToken(rawToken), expiresAt); err != nil {
		t.Fatalf("seed reset token: %v", err)
	}
	return rawToken
}

func TestInitiateResetUnknownEmailStillSucceeds(t *testing.T) {
	f := newPasswordFixture(t)

	ok, err := f.service.InitiatePasswordReset(context.Background(), "nobody@example.com", RequestMeta{})
	if err != nil {
		t.Fatalf("initiate reset: %v", err)
	}
	if !ok {
		t.Fatal("initiate reset for unknown email reported failure")
	}
	if got := f.events.count("password_reset_requested"); got != 0 {
		t.Errorf("reset events for unknown email = %d, want 0", got)
	}
}

func TestInitiateResetStoresHashedToken(t *testing.T) {
	f := newPasswordFixture(t)
	created := f.register(t, "resetter", "resetter@example.com")

	ok, err := f.service.InitiatePasswordReset(context.Background(), "resetter@example.com", RequestMeta{})
	if err != nil || !ok {
		t.Fatalf("initiate reset: ok=%v err=%v", ok, err)
	}

	stored, _ := f.users.GetByID(context.Background(), created.User.ID)
	if stored.ResetTokenHash == nil || stored.ResetTokenExpires == nil {
		t.Fatal("reset token not stored")
	}
	if got := f.events.count("password_reset_requested"); got != 1 {
		t.Errorf("reset events = %d, want 1", got)
	}
}

func TestResetPasswordClearsTokenAndSessions(t *testing.T) {
	f := newPasswordFixture(t)
	created := f.register(t, "resetme", "resetme@example.com")

	rawToken := f.seedResetToken(t, created.User.ID, time.Now().UTC().Add(testAuthSettings.ResetTokenTTL))

	if err := f.service.ResetPassword(context.Background(), rawToken, newTestPassword, RequestMeta{}); err != nil {
		t.Fatalf("reset password: %v", err)
	}

	stored, _ := f.users.GetByID(context.Background(), created.User.ID)
	if stored.ResetTokenHash != nil || stored.ResetTokenExpires != nil {
		t.Error("reset token not cleared after use")
	}

	// The whole refresh-token set is gone; the session from registration no
	// longer refreshes.
	if _, err := f.authFixture.service.RefreshAccessToken(context.Background(), created.Tokens.RefreshToken, RequestMeta{}); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("refresh after reset error = %v, want %v", err, ErrTokenRevoked)
	}

	// The old password stops working, the new one signs in.
	if _, err := f.authFixture.service.Authenticate(context.Background(), "resetme@example.com", strongTestPassword, RequestMeta{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password error = %v, want %v", err, ErrInvalidCredentials)
	}
	if _, err := f.authFixture.service.Authenticate(context.Background(), "resetme@example.com", newTestPassword, RequestMeta{}); err != nil {
		t.Fatalf("new password login: %v", err)
	}
}

func TestResetPasswordSingleUse(t *testing.T) {
	f := newPasswordFixture(t)
	created := f.register(t, "onetimer", "onetimer@example.com")

	rawToken := f.seedResetToken(t, created.User.ID, time.Now().UTC().Add(testAuthSettings.ResetTokenTTL))

	if err := f.service.ResetPassword(context.Background(), rawToken, newTestPassword, RequestMeta{}); err != nil {
		t.Fatalf("first reset: %v", err)
	}
	err := f.service.ResetPassword(context.Background(), rawToken, "Another#Password8!", RequestMeta{})
	if !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("second reset error = %v, want %v", err, ErrInvalidOrExpiredToken)
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	f := newPasswordFixture(t)
	created := f.register(t, "latecomer", "latecomer@example.com")

	rawToken := f.seedResetToken(t, created.User.ID, time.Now().UTC().Add(-time.Minute))

	err := f.service.ResetPassword(context.Background(), rawToken, newTestPassword, RequestMeta{})
	if !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expired token error = %v, want %v", err, ErrInvalidOrExpiredToken)
	}
}

func TestResetPasswordRejectsUnknownToken(t *testing.T) {
	f := newPasswordFixture(t)

	err := f.service.ResetPassword(context.Background(), "never-issued", newTestPassword, RequestMeta{})
	if !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("unknown token error = %v, want %v", err, ErrInvalidOrExpiredToken)
	}
}

func TestResetPasswordRejectsReuse(t *testing.T) {
	f := newPasswordFixture(t)
	created := f.register(t, "repeater", "repeater@example.com")

	rawToken := f.seedResetToken(t, created.User.ID, time.Now().UTC().Add(testAuthSettings.ResetTokenTTL))

	err := f.service.ResetPassword(context.Background(), rawToken, strongTestPassword, RequestMeta{})
	if !errors.Is(err, ErrPasswordReused) {
		t.Fatalf("reuse error = %v, want %v", err, ErrPasswordReused)
	}
}

func TestResetPasswordRejectsWeakPassword(t *testing.T) {
	f := newPasswordFixture(t)

	err := f.service.ResetPassword(context.Background(), "whatever", "weak", RequestMeta{})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("weak password error = %v, want %v", err, ErrWeakPassword)
	}
}

func TestChangePasswordKeepsSessions(t *testing.T) {
	f := newPasswordFixture(t)
	created := f.register(t, "changer", "changer@example.com")

	if err := f.service.ChangePassword(context.Background(), created.User.ID, strongTestPassword, newTestPassword, RequestMeta{}); err != nil {
		t.Fatalf("change password: %v", err)
	}

	// Change, unlike reset, leaves the session set intact.
	if _, err := f.authFixture.service.RefreshAccessToken(context.Background(), created.Tokens.RefreshToken, RequestMeta{}); err != nil {
		t.Fatalf("refresh after change: %v", err)
	}

	if _, err := f.authFixture.service.Authenticate(context.Background(), "changer@example.com", newTestPassword, RequestMeta{}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	f := newPasswordFixture(t)
	created := f.register(t, "fumbler", "fumbler@example.com")

	err := f.service.ChangePassword(context.Background(), created.User.ID, "Wrong!Current1", newTestPassword, RequestMeta{})
	if !errors.Is(err, ErrIncorrectPassword) {
		t.Fatalf("wrong current password error = %v, want %v", err, ErrIncorrectPassword)
	}

	// The session from registration is untouched by the failed attempt.
	if _, err := f.authFixture.service.RefreshAccessToken(context.Background(), created.Tokens.RefreshToken, RequestMeta{}); err != nil {
		t.Fatalf("refresh after failed change: %v", err)
	}
}

func TestChangePasswordRejectsHistoricalReuse(t *testing.T) {
	f := newPasswordFixture(t)
	created := f.register(t, "historian", "historian@example.com")

	if err := f.service.ChangePassword(context.Background(), created.User.ID, strongTestPassword, newTestPassword, RequestMeta{}); err != nil {
		t.Fatalf("first change: %v", err)
	}

	// Rolling back to the original password is refused while it sits in the
	// history window.
	err := f.service.ChangePassword(context.Background(), created.User.ID, newTestPassword, strongTestPassword, RequestMeta{})
	if !errors.Is(err, ErrPasswordReused) {
		t.Fatalf("historical reuse error = %v, want %v", err, ErrPasswordReused)
	}
}

func TestChangePasswordRecordsAudit(t *testing.T) {
	f := newPasswordFixture(t)
	created := f.register(t, "audited", "audited@example.com")

	if err := f.service.ChangePassword(context.Background(), created.User.ID, strongTestPassword, newTestPassword, RequestMeta{}); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if got := f.users.activityCount(created.User.ID, domain.ActivityPasswordChange); got != 1 {
		t.Errorf("password_change audit rows = %d, want 1", got)
	}
	if got := f.events.count("password_changed"); got != 1 {
		t.Errorf("password_changed events = %d, want 1", got)
	}
}
