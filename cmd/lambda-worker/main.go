package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"consent-backend/internal/bootstrap"
	"consent-backend/internal/queue"
	"consent-backend/internal/shared/config"
	"consent-backend/internal/shared/metrics"
	"consent-backend/internal/shared/telemetry"
	"consent-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	telemetry.Init(cfg.Env)
	// Messages consumed here are delivered directly, never re-enqueued.
	cfg.NotifyQueueURL = ""
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda.worker.bootstrap_failed", map[string]any{"error": initErr.Error()})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processBatch(ctx, app.Processor, event), nil
}

func processBatch(ctx context.Context, processor workerproc.MessageProcessor, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		metrics.IncWorkerReceived()
		err := workerproc.HandleMessage(ctx, processor, record.Body)
		switch {
		case err == nil:
			metrics.IncWorkerCompleted()
		case workerproc.Dropped(err):
			telemetry.Error("worker.notification.dropped", recordFields(record, err))
			metrics.IncWorkerDropped()
		default:
			telemetry.Error("worker.notification.failed", recordFields(record, err))
			metrics.IncWorkerFailed()
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func recordFields(record events.SQSMessage, err error) map[string]any {
	return map[string]any{
		"sqs_message_id": record.MessageId,
		"receive_count":  queue.ReceiveCount(record.Attributes),
		"error":          err.Error(),
	}
}

func main() {
	lambda.Start(handler)
}
