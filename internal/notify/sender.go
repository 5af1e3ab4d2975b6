package notify

import (
	"context"
	"errors"

	"consent-backend/internal/shared/telemetry"
)

var (
	// ErrDispatch marks a notification that could not be delivered. It is logged
	// and never fails the operation that triggered the notification.
	ErrDispatch = errors.New("notification dispatch failed")
	// ErrNoContact means the recipient resolved but has no contact address.
	ErrNoContact = errors.New("recipient has no contact address")
)

// Message is one rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes message metadata to the structured log instead of sending.
// Bodies carry the consent link and are never logged.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	telemetry.Info("notify.email.logged", map[string]any{
		"to":       msg.To,
		"subject":  msg.Subject,
		"text_len": len(msg.Text),
		"html_len": len(msg.HTML),
	})
	return nil
}
