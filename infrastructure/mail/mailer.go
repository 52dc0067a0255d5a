package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"millionx-backend/infrastructure/config"
	"millionx-backend/pkg/errors"
)

// SMTPMailer delivers magic-link emails over SMTP
type SMTPMailer struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewSMTPMailer creates the mailer
func NewSMTPMailer(cfg *config.Config, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, logger: logger}
}

// SendMagicLink emails a sign-in link
func (m *SMTPMailer) SendMagicLink(ctx context.Context, email, link string) error {
	body := strings.Join([]string{
		"From: " + m.cfg.MailFrom,
		"To: " + email,
		"Subject: Your sign-in link",
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Click the link below to sign in. It expires in " +
			fmt.Sprintf("%.0f hours", m.cfg.MagicLinkTTL.Hours()) + " and works once.",
		"",
		link,
		"",
		"If you did not request this, you can ignore this email.",
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	var auth smtp.Auth
	if m.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUsername, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, m.cfg.MailFrom, []string{email}, []byte(body))
	}()

	select {
	case err := <-done:
		if err != nil {
			return errors.NewExternalError("smtp", err)
		}
		m.logger.Info("magic link sent", zap.String("email", email))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogMailer writes the link to the log instead of sending email.
// Used in development where no SMTP host is configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates the mailer
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendMagicLink logs the sign-in link
func (m *LogMailer) SendMagicLink(ctx context.Context, email, link string) error {
	m.logger.Info("magic link (development delivery)",
		zap.String("email", email),
		zap.String("link", link))
	return nil
}
