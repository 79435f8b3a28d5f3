// Package devsms is an SMS sender for local development. It writes messages
// to the log instead of delivering them.
package devsms

import (
	"context"
	"log/slog"
)

type Sender struct {
	logger *slog.Logger
}

func NewSender(logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{logger: logger}
}

func (s *Sender) SendSMS(ctx context.Context, to, message string) error {
	s.logger.InfoContext(ctx, "sms not delivered (dev sender)", "to", to, "message", message)
	return nil
}
