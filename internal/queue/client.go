package queue

import (
	"context"
	"time"
)

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Delivery is one received message awaiting acknowledgement.
type Delivery struct {
	ID           string
	Receipt      string
	Body         string
	ReceiveCount int
}

// ReceiveOptions bounds a single long poll.
type ReceiveOptions struct {
	MaxMessages int32
	Wait        time.Duration
	Visibility  time.Duration
}

// Consumer receives and acknowledges queue messages. A message that is not
// acknowledged becomes visible again after its visibility timeout.
type Consumer interface {
	Receive(ctx context.Context, opts ReceiveOptions) ([]Delivery, error)
	Ack(ctx context.Context, d Delivery) error
}
