// Package mail delivers account emails such as verification codes and
// password reset links.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrNoRecipient is returned when a message has no destination address.
var ErrNoRecipient = errors.New("mail: missing recipient")

// Message is a plain text email.
type Message struct {
	To      string
	Subject string
	Text    string
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return ErrNoRecipient
	}
	return nil
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// VerificationMessage renders the email carrying a verification code.
func VerificationMessage(to, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Your ClassScribe verification code",
		Text: fmt.Sprintf("Welcome to ClassScribe!\n\nYour verification code is %s. It expires in %s.\n\nIf you did not create an account you can ignore this email.\n",
			code, humanDuration(ttl)),
	}
}

// ResetMessage renders the email carrying a password reset link.
func ResetMessage(to, link string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Reset your ClassScribe password",
		Text: fmt.Sprintf("We received a request to reset your password.\n\nOpen this link to choose a new one: %s\n\nThe link expires in %s. If you did not ask for a reset you can ignore this email.\n",
			link, humanDuration(ttl)),
	}
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if d == time.Hour {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		if d == time.Minute {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}

// LogMailer writes messages to the logger instead of delivering them. It is
// meant for local development where codes are read from the log.
type LogMailer struct {
	log *slog.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(log *slog.Logger) *LogMailer {
	if log == nil {
		log = slog.Default()
	}
	return &LogMailer{log: log}
}

// Send logs the message.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	m.log.Info("outgoing email", "to", msg.To, "subject", msg.Subject, "body", msg.Text)
	return nil
}
