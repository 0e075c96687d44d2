// Package envelope models the SQS-style inbound message and the delivery
// metadata derived from it. The wire field names are fixed by the transport
// and must be preserved exactly.
package envelope

import (
	"strconv"
	"strings"
	"time"
)

// MessageAttribute is a single typed attribute on the inbound message.
type MessageAttribute struct {
	StringValue string `json:"stringValue"`
	DataType    string `json:"dataType"`
}

// InboundMessage is the opaque envelope delivered by the transport.
// It is owned by the processor for the duration of one attempt and
// discarded afterwards; the transport owns durable retention.
type InboundMessage struct {
	MessageID         string                      `json:"messageId"`
	Body              string                      `json:"body"`
	MessageAttributes map[string]MessageAttribute `json:"messageAttributes,omitempty"`
	Attributes        map[string]string           `json:"attributes"`
	EventSourceARN    string                      `json:"eventSourceARN"`
}

// SourceHint returns the explicit source attribute when the producer set one,
// or the empty string.
func (m *InboundMessage) SourceHint() string {
	if attr, ok := m.MessageAttributes["source"]; ok {
		return attr.StringValue
	}
	return ""
}

// DeliveryAttempt returns the approximate delivery count reported by the
// transport. Missing or malformed counters are treated as the first attempt.
func (m *InboundMessage) DeliveryAttempt() int {
	raw, ok := m.Attributes["ApproximateReceiveCount"]
	if !ok {
		return 1
	}
	count, err := strconv.Atoi(raw)
	if err != nil || count < 1 {
		return 1
	}
	return count
}

// Envelope is the per-attempt delivery metadata attached to a normalized
// alert for tracing and retry decisions.
type Envelope struct {
	ReceivedAt      time.Time
	IngestQueue     string
	IngestRegion    string
	DeliveryAttempt int
	EventID         string
}

// Build derives delivery metadata from an inbound message.
func Build(msg *InboundMessage) *Envelope {
	return &Envelope{
		ReceivedAt:      time.Now().UTC(),
		IngestQueue:     queueNameFromARN(msg.EventSourceARN),
		IngestRegion:    regionFromARN(msg.EventSourceARN),
		DeliveryAttempt: msg.DeliveryAttempt(),
		EventID:         msg.MessageID,
	}
}

// queueNameFromARN extracts the queue name from an SQS ARN
// (arn:aws:sqs:region:account:queue-name).
func queueNameFromARN(arn string) string {
	parts := strings.Split(arn, ":")
	if len(parts) >= 6 {
		return parts[5]
	}
	return "unknown"
}

// regionFromARN extracts the region segment from an ARN.
func regionFromARN(arn string) string {
	parts := strings.Split(arn, ":")
	if len(parts) >= 4 && parts[3] != "" {
		return parts[3]
	}
	return "unknown"
}
