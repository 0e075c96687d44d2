// Package consumer receives inbound alert messages from the SQS queue and
// converts them into the transport envelope the processor understands.
// Visibility and redelivery are owned by the queue: a message is deleted
// only on a terminal outcome, so an unacknowledged message reappears with an
// incremented ApproximateReceiveCount.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"alert-collector/internal/envelope"
)

const (
	// maxMessagesPerPoll is the SQS batch-size ceiling.
	maxMessagesPerPoll = 10
	// waitTimeSeconds enables long polling to avoid empty-receive spin.
	waitTimeSeconds = 20
)

// API is the subset of the SQS client the consumer uses.
type API interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Received pairs an inbound message with the transport handle needed to
// acknowledge it.
type Received struct {
	Message       *envelope.InboundMessage
	ReceiptHandle string
}

// Consumer long-polls an SQS queue for alert messages.
type Consumer struct {
	client   API
	queueURL string
	queueARN string
}

// New creates an SQS consumer using the default AWS credential chain.
// queueARN is stamped onto each inbound message as its event source.
func New(ctx context.Context, queueURL, queueARN, region string) (*Consumer, error) {
	if queueURL == "" {
		return nil, fmt.Errorf("queue URL cannot be empty")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	slog.Info("SQS consumer initialized",
		"queue_url", queueURL,
		"region", region,
		"wait_time_seconds", waitTimeSeconds,
	)

	return &Consumer{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
		queueARN: queueARN,
	}, nil
}

// NewWithClient wraps an existing SQS client. Used by tests.
func NewWithClient(client API, queueURL, queueARN string) *Consumer {
	return &Consumer{client: client, queueURL: queueURL, queueARN: queueARN}
}

// Receive long-polls for the next batch of messages. An empty slice means
// the poll timed out with nothing to do.
func (c *Consumer) Receive(ctx context.Context) ([]Received, error) {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: maxMessagesPerPoll,
		WaitTimeSeconds:     waitTimeSeconds,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
		MessageAttributeNames: []string{"source"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}

	received := make([]Received, 0, len(out.Messages))
	for _, msg := range out.Messages {
		received = append(received, Received{
			Message:       c.toInbound(msg),
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
		})
	}
	return received, nil
}

// Delete acknowledges a message so the queue stops redelivering it.
func (c *Consumer) Delete(ctx context.Context, receiptHandle string) error {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// toInbound converts an SQS message into the transport envelope, preserving
// the attribute names the rest of the pipeline keys on.
func (c *Consumer) toInbound(msg types.Message) *envelope.InboundMessage {
	attributes := make(map[string]string, len(msg.Attributes))
	for k, v := range msg.Attributes {
		attributes[k] = v
	}

	var messageAttributes map[string]envelope.MessageAttribute
	if len(msg.MessageAttributes) > 0 {
		messageAttributes = make(map[string]envelope.MessageAttribute, len(msg.MessageAttributes))
		for k, v := range msg.MessageAttributes {
			messageAttributes[k] = envelope.MessageAttribute{
				StringValue: aws.ToString(v.StringValue),
				DataType:    aws.ToString(v.DataType),
			}
		}
	}

	return &envelope.InboundMessage{
		MessageID:         aws.ToString(msg.MessageId),
		Body:              aws.ToString(msg.Body),
		MessageAttributes: messageAttributes,
		Attributes:        attributes,
		EventSourceARN:    c.queueARN,
	}
}
