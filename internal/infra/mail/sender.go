package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/startupadvisor/advisor-api/internal/core/port"
	"github.com/startupadvisor/advisor-api/internal/infra/config"
	"github.com/startupadvisor/advisor-api/internal/infra/logger"
)

// NewNotifier returns an SMTP-backed notifier when SMTP is enabled and a
// log-only notifier otherwise.
func NewNotifier(cfg config.SMTPSettings, log *zap.Logger) port.Notifier {
	if cfg.Enabled {
		return &SMTPNotifier{cfg: cfg, logger: log}
	}
	return &LogNotifier{logger: log}
}

// SMTPNotifier delivers transactional email over plain SMTP.
type SMTPNotifier struct {
	cfg    config.SMTPSettings
	logger *zap.Logger
}

func (n *SMTPNotifier) send(toEmail, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	var auth smtp.Auth
	if n.cfg.User != "" {
		auth = smtp.PlainAuth("", n.cfg.User, n.cfg.Pass, n.cfg.Host)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		n.cfg.From, toEmail, subject, body)

	if err := smtp.SendMail(addr, auth, n.cfg.From, []string{toEmail}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (n *SMTPNotifier) SendWelcome(_ context.Context, email, name string) error {
	body := fmt.Sprintf("Hi %s,\r\n\r\nWelcome to Startup Advisor. Your account is ready.\r\n", name)
	return n.send(email, "Welcome to Startup Advisor", body)
}

func (n *SMTPNotifier) SendPasswordReset(_ context.Context, email, name, resetURL string) error {
	body := fmt.Sprintf("Hi %s,\r\n\r\nUse this link to reset your password:\r\n%s\r\n\r\nThe link expires shortly. If you did not request a reset you can ignore this message.\r\n", name, resetURL)
	return n.send(email, "Reset your password", body)
}

func (n *SMTPNotifier) SendPasswordChanged(_ context.Context, email, name string) error {
	body := fmt.Sprintf("Hi %s,\r\n\r\nYour password was changed. If this was not you, reset your password immediately.\r\n", name)
	return n.send(email, "Your password was changed", body)
}

func (n *SMTPNotifier) SendAccountUnlocked(_ context.Context, email, name string) error {
	body := fmt.Sprintf("Hi %s,\r\n\r\nYour account has been unlocked. You can sign in again.\r\n", name)
	return n.send(email, "Your account was unlocked", body)
}

func (n *SMTPNotifier) SendAccountDeactivated(_ context.Context, email, name string) error {
	body := fmt.Sprintf("Hi %s,\r\n\r\nYour account has been deactivated. Sign in again at any time to reactivate it.\r\n", name)
	return n.send(email, "Your account was deactivated", body)
}

func (n *SMTPNotifier) SendAccountReactivated(_ context.Context, email, name string) error {
	body := fmt.Sprintf("Hi %s,\r\n\r\nYour account has been reactivated. Welcome back.\r\n", name)
	return n.send(email, "Your account was reactivated", body)
}

func (n *SMTPNotifier) SendEmailChanged(_ context.Context, oldEmail, newEmail, name string) error {
	oldBody := fmt.Sprintf("Hi %s,\r\n\r\nThe email on your account was changed to %s. If this was not you, contact support immediately.\r\n", name, newEmail)
	if err := n.send(oldEmail, "Your account email was changed", oldBody); err != nil {
		return err
	}
	newBody := fmt.Sprintf("Hi %s,\r\n\r\nThis address now receives notifications for your Startup Advisor account.\r\n", name)
	return n.send(newEmail, "Your account email was changed", newBody)
}

var _ port.Notifier = (*SMTPNotifier)(nil)

// LogNotifier records outbound mail in the logs without delivering it.
// Reset URLs are not logged; only the masked recipient is.
type LogNotifier struct {
	logger *zap.Logger
}

func (n *LogNotifier) logSend(kind, email string) {
	n.logger.Info("notification suppressed, smtp disabled",
		zap.String("kind", kind),
		zap.String("email", logger.MaskEmail(email)),
	)
}

func (n *LogNotifier) SendWelcome(_ context.Context, email, _ string) error {
	n.logSend("welcome", email)
	return nil
}

func (n *LogNotifier) SendPasswordReset(_ context.Context, email, _, _ string) error {
	n.logSend("password_reset", email)
	return nil
}

func (n *LogNotifier) SendPasswordChanged(_ context.Context, email, _ string) error {
	n.logSend("password_changed", email)
	return nil
}

func (n *LogNotifier) SendAccountUnlocked(_ context.Context, email, _ string) error {
	n.logSend("account_unlocked", email)
	return nil
}

func (n *LogNotifier) SendAccountDeactivated(_ context.Context, email, _ string) error {
	n.logSend("account_deactivated", email)
	return nil
}

func (n *LogNotifier) SendAccountReactivated(_ context.Context, email, _ string) error {
	n.logSend("account_reactivated", email)
	return nil
}

func (n *LogNotifier) SendEmailChanged(_ context.Context, oldEmail, _, _ string) error {
	n.logSend("email_changed", oldEmail)
	return nil
}

var _ port.Notifier = (*LogNotifier)(nil)
