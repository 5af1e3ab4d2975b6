package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const (
	defaultRegion = "us-east-1"

	attrReceiveCount = "ApproximateReceiveCount"
	maxBatch         = 10
	maxWaitSeconds   = 20
)

// ErrMissingReceipt is returned when acknowledging a delivery without a receipt handle.
var ErrMissingReceipt = errors.New("missing receipt handle")

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSClient sends and consumes notification messages on one AWS SQS queue.
type SQSClient struct {
	client   sqsAPI
	queueURL string
}

// NewSQSClient constructs an SQS-backed queue client.
func NewSQSClient(ctx context.Context, region, queueURL string) (*SQSClient, error) {
	queueURL = strings.TrimSpace(queueURL)
	if queueURL == "" {
		return nil, fmt.Errorf("NOTIFY_SQS_QUEUE_URL is required")
	}
	if strings.TrimSpace(region) == "" {
		region = defaultRegion
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SQSClient{client: sqs.NewFromConfig(cfg), queueURL: queueURL}, nil
}

// QueueURL returns the queue this client is bound to.
func (s *SQSClient) QueueURL() string {
	return s.queueURL
}

// Send delivers a message to the configured SQS queue.
func (s *SQSClient) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode sqs message: %w", err)
	}

	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(payload)),
	})
	if err != nil {
		return fmt.Errorf("sqs send message: %w", err)
	}
	return nil
}

// Receive long-polls for up to opts.MaxMessages messages. Values outside the
// SQS limits are clamped.
func (s *SQSClient) Receive(ctx context.Context, opts ReceiveOptions) ([]Delivery, error) {
	maxMessages := opts.MaxMessages
	if maxMessages <= 0 || maxMessages > maxBatch {
		maxMessages = maxBatch
	}
	wait := int32(opts.Wait.Seconds())
	if wait < 0 {
		wait = 0
	}
	if wait > maxWaitSeconds {
		wait = maxWaitSeconds
	}

	input := &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(s.queueURL),
		MaxNumberOfMessages:         maxMessages,
		WaitTimeSeconds:             wait,
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{sqstypes.MessageSystemAttributeNameApproximateReceiveCount},
	}
	if opts.Visibility > 0 {
		input.VisibilityTimeout = int32(opts.Visibility.Seconds())
	}

	out, err := s.client.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("sqs receive message: %w", err)
	}
	deliveries := make([]Delivery, 0, len(out.Messages))
	for _, m := range out.Messages {
		deliveries = append(deliveries, Delivery{
			ID:           aws.ToString(m.MessageId),
			Receipt:      aws.ToString(m.ReceiptHandle),
			Body:         aws.ToString(m.Body),
			ReceiveCount: ReceiveCount(m.Attributes),
		})
	}
	return deliveries, nil
}

// Ack deletes a delivered message from the queue.
func (s *SQSClient) Ack(ctx context.Context, d Delivery) error {
	if strings.TrimSpace(d.Receipt) == "" {
		return ErrMissingReceipt
	}
	_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.queueURL),
		ReceiptHandle: aws.String(d.Receipt),
	})
	if err != nil {
		return fmt.Errorf("sqs delete message: %w", err)
	}
	return nil
}

// ReceiveCount reads ApproximateReceiveCount from SQS message attributes; 0 when absent.
func ReceiveCount(attrs map[string]string) int {
	n, err := strconv.Atoi(attrs[attrReceiveCount])
	if err != nil {
		return 0
	}
	return n
}

var (
	_ Client   = (*SQSClient)(nil)
	_ Consumer = (*SQSClient)(nil)
)
