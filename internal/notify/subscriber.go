package notify

import (
	"context"
	"sync"
	"time"

	"consent-backend/internal/consent"
	"consent-backend/internal/queue"
	"consent-backend/internal/shared/metrics"
	"consent-backend/internal/shared/telemetry"
)

// Subscriber turns consent events into notifications. With a Queue configured
// each record becomes one queue message; records whose enqueue fails are
// delivered in-process instead.
type Subscriber struct {
	Dispatcher *Dispatcher
	Queue      queue.Client
	// Sync delivers on the publishing goroutine. Used by tests and the lambda
	// runtime, where background work may be frozen after the response.
	Sync bool

	wg sync.WaitGroup
}

func NewSubscriber(d *Dispatcher, q queue.Client) *Subscriber {
	return &Subscriber{Dispatcher: d, Queue: q}
}

func (s *Subscriber) Handle(ctx context.Context, ev consent.Event) {
	var deliveries []Delivery
	switch e := ev.(type) {
	case consent.RequestCreated:
		deliveries = make([]Delivery, 0, len(e.Records))
		for _, rec := range e.Records {
			deliveries = append(deliveries, Delivery{Record: rec, Document: e.Document})
		}
	case consent.RecordsResent:
		deliveries = make([]Delivery, 0, len(e.Records))
		for _, rec := range e.Records {
			deliveries = append(deliveries, Delivery{Record: rec, Document: e.Documents[rec.DocumentID], Reminder: true})
		}
	default:
		return
	}
	if len(deliveries) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)
	if s.Sync {
		s.dispatch(ctx, ev.EventName(), deliveries)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.dispatch(ctx, ev.EventName(), deliveries)
	}()
}

// Wait blocks until background dispatches started by Handle have finished.
func (s *Subscriber) Wait() {
	s.wg.Wait()
}

func (s *Subscriber) dispatch(ctx context.Context, event string, deliveries []Delivery) {
	local := deliveries
	queued := 0
	if s.Queue != nil {
		local = local[:0:0]
		for _, del := range deliveries {
			if err := s.enqueue(ctx, del); err != nil {
				telemetry.Warn("notify.enqueue_failed", map[string]any{
					"record_id": del.Record.ID,
					"error":     err.Error(),
				})
				local = append(local, del)
				continue
			}
			queued++
		}
	}

	res := BatchResult{}
	if len(local) > 0 && s.Dispatcher != nil {
		res = s.Dispatcher.DeliverAll(ctx, local)
	}
	telemetry.Info("notify.batch_done", map[string]any{
		"event":  event,
		"total":  len(deliveries),
		"queued": queued,
		"sent":   res.Sent,
		"failed": res.Failed,
	})
}

func (s *Subscriber) enqueue(ctx context.Context, del Delivery) error {
	kind := queue.KindRequest
	if del.Reminder {
		kind = queue.KindReminder
	}
	err := s.Queue.Send(ctx, queue.Message{
		RecordID:   del.Record.ID,
		Kind:       kind,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    queue.MessageVersion,
	})
	if err != nil {
		return err
	}
	metrics.IncNotificationQueued()
	return nil
}

var _ consent.Subscriber = (*Subscriber)(nil)
