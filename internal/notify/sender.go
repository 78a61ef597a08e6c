package notify

import (
	"github.com/rs/zerolog"
)

// EmailSender delivers a single plain-text email.
type EmailSender interface {
	Send(to, subject, body string) error
}

// LogSender writes outgoing emails to the application log. It stands in for
// a real SMTP or provider integration in development and tests.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) Send(to, subject, body string) error {
	s.Logger.Info().
		Str("to", to).
		Str("subject", subject).
		Int("body_bytes", len(body)).
		Msg("email dispatched")
	return nil
}
