package consent

import (
	"context"
	"fmt"
	"sync"

	"consent-backend/internal/shared/telemetry"
)

// Event is published after a state change has been committed.
type Event interface {
	EventName() string
}

// RequestCreated follows a successful CreateRequest.
type RequestCreated struct {
	Actor    string
	Document Document
	Records  []Record
}

// RecordsResent follows a successful Resend. Documents is keyed by document id.
type RecordsResent struct {
	Actor     string
	Records   []Record
	Documents map[string]Document
}

// ConsentCompleted follows the pending to completed transition.
type ConsentCompleted struct {
	Record   Record
	Document Document
}

// DocumentDeactivated follows a document being disabled.
type DocumentDeactivated struct {
	Actor    string
	Document Document
}

func (RequestCreated) EventName() string      { return "consent.request_created" }
func (RecordsResent) EventName() string       { return "consent.records_resent" }
func (ConsentCompleted) EventName() string    { return "consent.completed" }
func (DocumentDeactivated) EventName() string { return "consent.document_deactivated" }

// Subscriber reacts to committed events. Handle must not block for long; slow work
// belongs on its own goroutine.
type Subscriber interface {
	Handle(ctx context.Context, ev Event)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, ev Event)

func (f SubscriberFunc) Handle(ctx context.Context, ev Event) { f(ctx, ev) }

// Bus fans events out to subscribers in registration order.
type Bus struct {
	mu   sync.RWMutex
	subs []Subscriber
}

func NewBus(subs ...Subscriber) *Bus {
	return &Bus{subs: subs}
}

func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, s)
}

// Publish delivers ev to every subscriber. A panicking subscriber is logged and
// does not stop delivery to the rest.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs...)
	b.mu.RUnlock()

	for _, s := range subs {
		deliver(ctx, s, ev)
	}
}

func deliver(ctx context.Context, s Subscriber, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.Error("consent.event.subscriber_panic", map[string]any{
				"event": ev.EventName(),
				"panic": fmt.Sprint(rec),
			})
		}
	}()
	s.Handle(ctx, ev)
}
