package auth

import (
	"context"
	"log/slog"
)

// Mailer delivers account emails.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, link string) error
	SendConfirmation(ctx context.Context, email, link string) error
}

// LogMailer writes emails to the log instead of sending them. It is the
// only mailer the server ships with; operators read the links from logs.
type LogMailer struct {
	log *slog.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(log *slog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, email, link string) error {
	m.log.InfoContext(ctx, "password reset email", "to", email, "link", link)
	return nil
}

func (m *LogMailer) SendConfirmation(ctx context.Context, email, link string) error {
	m.log.InfoContext(ctx, "email confirmation", "to", email, "link", link)
	return nil
}
