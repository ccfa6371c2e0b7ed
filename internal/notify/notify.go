// Package notify delivers transactional email.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mouldconnect/apiserver/config"
)

// Notifier sends a single HTML message.
type Notifier interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// New builds the notifier selected by cfg.Backend.
func New(cfg config.MailConfig, logger *slog.Logger) (Notifier, error) {
	switch cfg.Backend {
	case "smtp":
		return NewSMTP(cfg)
	case "log":
		return NewLog(logger), nil
	default:
		return nil, fmt.Errorf("unknown notifier backend %q", cfg.Backend)
	}
}

// Log writes messages to the logger instead of delivering them. Development
// only: the OTP appears in the log.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Send(ctx context.Context, to, subject, htmlBody string) error {
	l.logger.InfoContext(ctx, "email not delivered (log notifier)",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", htmlBody),
	)
	return nil
}
