// Package metrics provides metrics recording for the collector.
// It uses the null object pattern to avoid nil checks throughout the
// codebase; the Redis-backed collector periodically reports counters for
// centralized access.
package metrics

import "time"

// Recorder defines the interface for recording collector metrics.
type Recorder interface {
	// RecordReceived increments the count of received messages.
	RecordReceived()

	// RecordProcessed records a successfully processed message with its latency.
	RecordProcessed(latency time.Duration)

	// RecordPublished increments the count of published normalized events.
	RecordPublished()

	// RecordError increments the generic error counter.
	RecordError()

	// RecordUserActionable increments the count of user-actionable rejections.
	RecordUserActionable()

	// RecordCorrupted increments the count of system-corruption rejections.
	RecordCorrupted()

	// RecordDeadLettered increments the count of dead-lettered messages.
	RecordDeadLettered()

	// RecordSkipped increments the count of duplicate/skipped messages.
	RecordSkipped()
}

// NoOp is a no-op implementation of Recorder that discards all metrics.
// Use this when no metrics backend is configured.
type NoOp struct{}

// NewNoOp creates a new no-op metrics recorder.
func NewNoOp() *NoOp {
	return &NoOp{}
}

func (n *NoOp) RecordReceived()                 {}
func (n *NoOp) RecordProcessed(_ time.Duration) {}
func (n *NoOp) RecordPublished()                {}
func (n *NoOp) RecordError()                    {}
func (n *NoOp) RecordUserActionable()           {}
func (n *NoOp) RecordCorrupted()                {}
func (n *NoOp) RecordDeadLettered()             {}
func (n *NoOp) RecordSkipped()                  {}

// Ensure NoOp implements Recorder
var _ Recorder = (*NoOp)(nil)
