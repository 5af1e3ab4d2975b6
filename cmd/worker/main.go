package main

// Long-running notification consumer:
//   NOTIFY_SQS_QUEUE_URL=... go run ./cmd/worker

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"consent-backend/internal/bootstrap"
	"consent-backend/internal/queue"
	"consent-backend/internal/shared/config"
	"consent-backend/internal/shared/metrics"
	"consent-backend/internal/shared/telemetry"
	"consent-backend/internal/workerproc"
)

const receiveBackoff = 2 * time.Second

func main() {
	cfg := config.Load()
	telemetry.Init(cfg.Env)
	defer telemetry.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer, err := queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.NotifyQueueURL)
	if err != nil {
		fatal("worker.queue_init_failed", err)
	}

	// Delivered here directly; the worker never re-enqueues what it consumes.
	cfg.NotifyQueueURL = ""
	app, err := bootstrap.Build(cfg)
	if err != nil {
		fatal("worker.bootstrap_failed", err)
	}
	defer app.Close()

	w := &worker{
		consumer:    consumer,
		processor:   app.Processor,
		concurrency: cfg.Worker.Concurrency,
		receive: queue.ReceiveOptions{
			MaxMessages: 10,
			Wait:        20 * time.Second,
			Visibility:  cfg.Worker.Visibility,
		},
	}
	telemetry.Info("worker.started", map[string]any{
		"queue_url":   consumer.QueueURL(),
		"concurrency": w.concurrency,
		"visibility":  cfg.Worker.Visibility.String(),
	})

	done := make(chan struct{})
	go func() {
		w.run(ctx)
		close(done)
	}()
	<-ctx.Done()

	telemetry.Info("worker.shutdown", map[string]any{"timeout": cfg.Worker.ShutdownTimeout.String()})
	select {
	case <-done:
	case <-time.After(cfg.Worker.ShutdownTimeout):
		telemetry.Warn("worker.shutdown_timeout", map[string]any{"timeout": cfg.Worker.ShutdownTimeout.String()})
	}
}

func fatal(event string, err error) {
	telemetry.Error(event, map[string]any{"error": err.Error()})
	telemetry.Sync()
	os.Exit(1)
}

type worker struct {
	consumer    queue.Consumer
	processor   workerproc.MessageProcessor
	concurrency int
	receive     queue.ReceiveOptions
}

// run polls until ctx is cancelled, then waits for in-flight messages. Handlers
// run detached from ctx; messages never started reappear after their visibility timeout.
func (w *worker) run(ctx context.Context) {
	var g errgroup.Group
	g.SetLimit(max(1, w.concurrency))
	work := context.WithoutCancel(ctx)

	for ctx.Err() == nil {
		batch, err := w.consumer.Receive(ctx, w.receive)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			telemetry.Warn("worker.receive_failed", map[string]any{"error": err.Error()})
			select {
			case <-ctx.Done():
			case <-time.After(receiveBackoff):
			}
			continue
		}
		for _, d := range batch {
			if ctx.Err() != nil {
				break
			}
			metrics.IncWorkerReceived()
			g.Go(func() error {
				w.handle(work, d)
				return nil
			})
		}
	}
	_ = g.Wait()
}

func (w *worker) handle(ctx context.Context, d queue.Delivery) {
	decoded, meta, err := workerproc.ParseMessage(d.Body)
	fields := deliveryFields(d, decoded)
	if err != nil {
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.notification.invalid_message", fields)
		if w.ack(ctx, d, fields) {
			metrics.IncWorkerDropped()
		}
		return
	}

	telemetry.Info("worker.notification.received", fields)
	err = workerproc.HandleMessage(workerproc.WithParsedMessage(ctx, decoded), w.processor, d.Body)
	switch {
	case err == nil:
		if w.ack(ctx, d, fields) {
			telemetry.Info("worker.notification.completed", fields)
			metrics.IncWorkerCompleted()
		}
	case workerproc.Dropped(err):
		fields["error"] = err.Error()
		telemetry.Error("worker.notification.dropped", fields)
		if w.ack(ctx, d, fields) {
			metrics.IncWorkerDropped()
		}
	default:
		fields["error"] = err.Error()
		telemetry.Error("worker.notification.failed", fields)
		metrics.IncWorkerFailed()
	}
}

func (w *worker) ack(ctx context.Context, d queue.Delivery, fields map[string]any) bool {
	if err := w.consumer.Ack(ctx, d); err != nil {
		failed := make(map[string]any, len(fields)+1)
		for k, v := range fields {
			failed[k] = v
		}
		failed["ack_error"] = err.Error()
		telemetry.Error("worker.notification.ack_failed", failed)
		return false
	}
	return true
}

func deliveryFields(d queue.Delivery, msg queue.Message) map[string]any {
	fields := map[string]any{
		"sqs_message_id": d.ID,
		"receive_count":  d.ReceiveCount,
	}
	if msg.RecordID != "" {
		fields["record_id"] = msg.RecordID
	}
	if msg.RequestID != "" {
		fields["request_id"] = msg.RequestID
	}
	if msg.Kind != "" {
		fields["kind"] = msg.Kind
	}
	return fields
}
