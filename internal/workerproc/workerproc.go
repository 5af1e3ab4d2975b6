package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"consent-backend/internal/consent"
	"consent-backend/internal/notify"
	"consent-backend/internal/queue"
	"consent-backend/internal/recipients"
	"consent-backend/internal/shared/telemetry"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingRecordID indicates a message missing the record id.
type ErrMissingRecordID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingRecordID) Error() string { return "missing record id" }

// ErrProcess indicates delivery failed after successful parsing. Unrecoverable
// failures will fail the same way on every retry and should be dropped.
type ErrProcess struct {
	RecordID      string
	RequestID     string
	Unrecoverable bool
	Err           error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process notification"
	}
	return "process notification: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.RecordID) == "" {
		return msg, meta, ErrMissingRecordID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// MessageProcessor delivers the notification a message asks for.
type MessageProcessor interface {
	ProcessNotification(ctx context.Context, msg queue.Message) error
}

// RecordLoader loads a record and its document for delivery.
type RecordLoader interface {
	RecordForDelivery(ctx context.Context, recordID string) (consent.Record, consent.Document, error)
}

// Deliverer sends one notification.
type Deliverer interface {
	Deliver(ctx context.Context, d notify.Delivery) error
}

// Processor delivers queued consent notifications.
type Processor struct {
	Records    RecordLoader
	Dispatcher Deliverer
}

func NewProcessor(records RecordLoader, dispatcher Deliverer) *Processor {
	return &Processor{Records: records, Dispatcher: dispatcher}
}

// ProcessNotification loads the record and sends its notification. Messages for
// deactivated documents are acknowledged without sending.
func (p *Processor) ProcessNotification(ctx context.Context, msg queue.Message) error {
	if p == nil || p.Records == nil || p.Dispatcher == nil {
		return errors.New("notification processor not configured")
	}
	rec, doc, err := p.Records.RecordForDelivery(ctx, msg.RecordID)
	if err != nil {
		return err
	}
	if !doc.IsActive {
		telemetry.Info("worker.notification.skipped_inactive", map[string]any{
			"record_id":   rec.ID,
			"document_id": doc.ID,
		})
		return nil
	}
	return p.Dispatcher.Deliver(ctx, notify.Delivery{
		Record:   rec,
		Document: doc,
		Reminder: msg.Kind == queue.KindReminder,
	})
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.Message, bool) {
	if ctx == nil {
		return queue.Message{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	return msg, ok
}

// HandleMessage parses, validates, and processes a message payload.
func HandleMessage(ctx context.Context, processor MessageProcessor, body string) error {
	if processor == nil {
		return errors.New("notification processor not configured")
	}

	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			return err
		}
	}

	if strings.TrimSpace(msg.RecordID) == "" {
		return ErrMissingRecordID{Meta: ComputeMeta(body), RequestID: msg.RequestID}
	}

	if err := processor.ProcessNotification(ctx, msg); err != nil {
		return ErrProcess{
			RecordID:      msg.RecordID,
			RequestID:     msg.RequestID,
			Unrecoverable: unrecoverable(err),
			Err:           err,
		}
	}
	return nil
}

func unrecoverable(err error) bool {
	return errors.Is(err, consent.ErrNotFound) ||
		errors.Is(err, recipients.ErrNotFound) ||
		errors.Is(err, notify.ErrNoContact)
}

// Dropped reports whether err means the message should be removed from the
// queue instead of being retried.
func Dropped(err error) bool {
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		missing ErrMissingRecordID
		proc    ErrProcess
	)
	switch {
	case errors.As(err, &empty), errors.As(err, &decode), errors.As(err, &missing):
		return true
	case errors.As(err, &proc):
		return proc.Unrecoverable
	}
	return false
}
