// Package producer publishes normalized alert events and dead letters to
// Kafka. Both producers use synchronous writes with leader acks, so an
// unacknowledged pipeline message is retried by the queue rather than lost.
package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"alert-collector/internal/events"
	"alert-collector/internal/kafkautil"
)

// Producer publishes normalized alerts keyed by fingerprint, so every
// lifecycle event of one alert lands on the same partition in order.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a Kafka producer for normalized alert events.
func NewProducer(brokers string, topic string) (*Producer, error) {
	writer, err := newWriter(brokers, topic)
	if err != nil {
		return nil, err
	}
	return &Producer{writer: writer, topic: topic}, nil
}

// newWriter builds a synchronous, hash-partitioned Kafka writer and makes a
// best-effort attempt to create the topic.
func newWriter(brokers string, topic string) (*kafka.Writer, error) {
	if err := kafkautil.ValidateProducerParams(brokers, topic); err != nil {
		return nil, err
	}

	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing Kafka producer",
		"brokers", brokerList,
		"topic", topic,
	)

	createTopicIfNotExists(brokerList[0], topic)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerList...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: kafkautil.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	slog.Info("Kafka producer configured",
		"topic", topic,
		"write_timeout", kafkautil.WriteTimeout,
		"required_acks", "RequireOne",
		"balancer", "Hash (key-based partitioning)",
	)

	return writer, nil
}

// createTopicIfNotExists attempts to create the topic if it doesn't exist.
// Failures are logged but don't prevent producer creation.
func createTopicIfNotExists(broker, topic string) {
	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		slog.Warn("Could not connect to Kafka to check/create topic",
			"broker", broker,
			"topic", topic,
			"error", err,
			"note", "Topic may need to be created manually",
		)
		return
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(topic)
	if err == nil && len(partitions) > 0 {
		slog.Info("Topic already exists",
			"topic", topic,
			"partitions", len(partitions),
		)
		return
	}

	topicConfig := kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	}

	if err := conn.CreateTopics(topicConfig); err != nil {
		slog.Warn("Could not create topic (may need to be created manually)",
			"topic", topic,
			"error", err,
		)
		return
	}

	slog.Info("Created topic",
		"topic", topic,
		"partitions", 3,
		"replication_factor", 1,
	)
}

// Publish serializes a normalized alert to JSON and writes it to Kafka,
// keyed by fingerprint.
func (p *Producer) Publish(ctx context.Context, normalized *events.AlertNormalized) error {
	payload, err := json.Marshal(normalized)
	if err != nil {
		slog.Error("Failed to marshal normalized alert to JSON",
			"event_id", normalized.EventID,
			"fingerprint", normalized.Fingerprint,
			"error", err,
		)
		return fmt.Errorf("failed to marshal normalized alert: %w", err)
	}

	msgTime := time.Now().UTC()
	if ts, err := time.Parse(time.RFC3339Nano, normalized.NormalizedAt); err == nil {
		msgTime = ts
	}

	msg := kafka.Message{
		Key:   []byte(normalized.Fingerprint),
		Value: payload,
		Headers: []kafka.Header{
			{
				Key:   "schema_version",
				Value: []byte(fmt.Sprintf("%d", normalized.Alert.SchemaVersion)),
			},
			{
				Key:   "source",
				Value: []byte(normalized.Alert.Source),
			},
		},
		Time: msgTime,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("Failed to write message to Kafka",
			"event_id", normalized.EventID,
			"topic", p.topic,
			"error", err,
		)
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	return nil
}

// Close gracefully closes the Kafka writer and releases resources.
func (p *Producer) Close() error {
	slog.Info("Closing Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		slog.Error("Error closing Kafka producer", "error", err)
		return err
	}
	return nil
}

// DeadLetterProducer publishes undeliverable messages to the dead-letter
// topic, keyed by the original queue message ID.
type DeadLetterProducer struct {
	writer *kafka.Writer
	topic  string
}

// NewDeadLetterProducer creates a Kafka producer for dead letters.
func NewDeadLetterProducer(brokers string, topic string) (*DeadLetterProducer, error) {
	writer, err := newWriter(brokers, topic)
	if err != nil {
		return nil, err
	}
	return &DeadLetterProducer{writer: writer, topic: topic}, nil
}

// Publish serializes a dead letter to JSON and writes it to Kafka.
func (p *DeadLetterProducer) Publish(ctx context.Context, letter *events.DeadLetter) error {
	payload, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(letter.MessageID),
		Value: payload,
		Headers: []kafka.Header{
			{
				Key:   "error_kind",
				Value: []byte(letter.Kind),
			},
		},
		Time: time.Now().UTC(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("Failed to write dead letter to Kafka",
			"message_id", letter.MessageID,
			"topic", p.topic,
			"error", err,
		)
		return fmt.Errorf("failed to write dead letter to Kafka: %w", err)
	}

	return nil
}

// Close gracefully closes the Kafka writer.
func (p *DeadLetterProducer) Close() error {
	slog.Info("Closing dead-letter producer", "topic", p.topic)
	return p.writer.Close()
}
