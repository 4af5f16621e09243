package port

import "context"

// Notifier sends transactional email. All sends are fire-and-forget from the
// orchestrator's vantage point: implementations log delivery failures and
// never propagate them to callers.
type Notifier interface {
	SendWelcome(ctx context.Context, email, name string) error
	SendPasswordReset(ctx context.Context, email, name, resetURL string) error
	SendPasswordChanged(ctx context.Context, email, name string) error
	SendAccountUnlocked(ctx context.Context, email, name string) error
	SendAccountDeactivated(ctx context.Context, email, name string) error
	SendAccountReactivated(ctx context.Context, email, name string) error
	// SendEmailChanged notifies both the old and the new address.
	SendEmailChanged(ctx context.Context, oldEmail, newEmail, name string) error
}
