package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"consent-backend/internal/consent"
	"consent-backend/internal/recipients"
	"consent-backend/internal/shared/metrics"
	"consent-backend/internal/shared/telemetry"
)

const defaultConcurrency = 8

// Delivery is one notification to send: the record's recipient is asked to
// review the document.
type Delivery struct {
	Record   consent.Record
	Document consent.Document
	Reminder bool
}

// BatchResult counts the outcome of DeliverAll.
type BatchResult struct {
	Sent   int
	Failed int
}

// Dispatcher resolves recipients, renders the email and hands it to the Sender.
type Dispatcher struct {
	Recipients    recipients.Resolver
	Sender        Sender
	PublicBaseURL string
	Concurrency   int
}

func NewDispatcher(resolver recipients.Resolver, sender Sender, publicBaseURL string, concurrency int) *Dispatcher {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Dispatcher{
		Recipients:    resolver,
		Sender:        sender,
		PublicBaseURL: publicBaseURL,
		Concurrency:   concurrency,
	}
}

// Deliver sends a single notification. Every failure is wrapped in ErrDispatch.
func (d *Dispatcher) Deliver(ctx context.Context, del Delivery) error {
	start := time.Now()
	err := d.deliver(ctx, del)
	metrics.ObserveDispatchDurationMs(float64(time.Since(start).Milliseconds()))

	fields := map[string]any{
		"record_id":      del.Record.ID,
		"document_id":    del.Document.ID,
		"recipient_type": string(del.Record.RecipientType),
		"recipient_id":   del.Record.RecipientID,
		"reminder":       del.Reminder,
	}
	if err != nil {
		metrics.IncNotificationFailed()
		fields["error"] = err.Error()
		telemetry.Error("notify.dispatch_failed", fields)
		return fmt.Errorf("%w: %w", ErrDispatch, err)
	}
	metrics.IncNotificationSent()
	telemetry.Info("notify.dispatched", fields)
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, del Delivery) error {
	if d.Recipients == nil || d.Sender == nil {
		return errors.New("dispatcher not configured")
	}
	rcpt, err := d.Recipients.Resolve(ctx, del.Record.RecipientType, del.Record.RecipientID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}
	to := strings.TrimSpace(rcpt.Email)
	if to == "" {
		return ErrNoContact
	}
	msg, err := render(to, emailData{
		RecipientName: rcpt.DisplayName,
		FileName:      del.Document.FileName,
		Link:          ConsentURL(d.PublicBaseURL, del.Record.Token),
		Reminder:      del.Reminder,
	})
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}
	return d.Sender.Send(ctx, msg)
}

// DeliverAll sends every delivery with bounded concurrency. One failure never
// stops the others.
func (d *Dispatcher) DeliverAll(ctx context.Context, deliveries []Delivery) BatchResult {
	var sent, failed atomic.Int64
	g := new(errgroup.Group)
	limit := d.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	g.SetLimit(limit)
	for _, del := range deliveries {
		g.Go(func() error {
			if err := d.Deliver(ctx, del); err != nil {
				failed.Add(1)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return BatchResult{Sent: int(sent.Load()), Failed: int(failed.Load())}
}
