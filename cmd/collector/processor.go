package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"alert-collector/internal/consumer"
	"alert-collector/internal/dedupe"
	"alert-collector/internal/events"
	"alert-collector/internal/faults"
	"alert-collector/internal/metrics"
	"alert-collector/internal/processor"
	"alert-collector/internal/producer"
	"alert-collector/internal/state"
)

// work represents a unit of work for the worker pool.
type work struct {
	received consumer.Received
}

// processorDeps holds all dependencies needed for alert processing.
// This makes testing and dependency injection cleaner.
type processorDeps struct {
	consumer   *consumer.Consumer
	processor  *processor.Processor
	normalized *producer.Producer
	deadLetter *producer.DeadLetterProducer
	state      *state.Store
	dedupe     *dedupe.Cache
	metrics    metrics.Recorder
	maxReceive int
}

// processAlerts polls SQS for inbound alerts and processes them concurrently.
func processAlerts(ctx context.Context, deps *processorDeps, workers int) error {
	slog.Info("Starting alert processing loop", "workers", workers)

	jobs := make(chan work, workers*2)
	var wg sync.WaitGroup

	// Start worker goroutines
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go runWorker(ctx, deps, jobs, &wg)
	}

	// Poll the queue and dispatch to workers
	dispatchMessages(ctx, deps, jobs)

	close(jobs)
	wg.Wait()
	slog.Info("Alert processing loop stopped")
	return nil
}

// runWorker processes jobs from the channel until it's closed.
func runWorker(ctx context.Context, deps *processorDeps, jobs <-chan work, wg *sync.WaitGroup) {
	defer wg.Done()
	for job := range jobs {
		processOne(ctx, deps, job.received)
	}
}

// dispatchMessages long-polls SQS and dispatches batches to workers.
func dispatchMessages(ctx context.Context, deps *processorDeps, jobs chan<- work) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			batch, err := deps.consumer.Receive(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("Failed to receive messages", "error", err)
				continue
			}
			for _, rec := range batch {
				deps.metrics.RecordReceived()
				jobs <- work{received: rec}
			}
		}
	}
}

// processOne handles a single inbound message end to end: normalize,
// deduplicate, record state, publish, acknowledge. A message is only
// deleted from the queue on a terminal outcome, so any early return
// leaves it for redelivery.
func processOne(ctx context.Context, deps *processorDeps, rec consumer.Received) {
	startTime := time.Now()

	result := deps.processor.Process(rec.Message)
	if !result.Success {
		handleFailure(ctx, deps, rec, result)
		return
	}

	alert := result.Metadata.AlertEvent

	// Suppress exact duplicates of an already-handled lifecycle event.
	if deps.dedupe != nil {
		key := dedupe.Key(result.Fingerprint, alert)
		seen, err := deps.dedupe.Seen(ctx, key)
		if err != nil {
			slog.Warn("Dedupe check failed, processing anyway",
				"message_id", rec.Message.MessageID, "error", err)
		} else if seen {
			slog.Debug("Duplicate alert suppressed",
				"message_id", rec.Message.MessageID,
				"fingerprint", result.Fingerprint,
			)
			deps.metrics.RecordSkipped()
			deleteMessage(ctx, deps, rec)
			return
		}
	}

	action := resolveAction(ctx, deps, result.Fingerprint, alert)
	if action == "" {
		// State transition failed; leave the message for redelivery.
		deps.metrics.RecordError()
		return
	}

	normalized := events.NewAlertNormalized(
		alert,
		result.Fingerprint,
		string(action),
		result.Envelope.ReceivedAt.Format(time.RFC3339Nano),
	)

	if err := deps.normalized.Publish(ctx, normalized); err != nil {
		slog.Error("Failed to publish normalized alert",
			"message_id", rec.Message.MessageID,
			"fingerprint", result.Fingerprint,
			"error", err,
		)
		deps.metrics.RecordError()
		return
	}

	deleteMessage(ctx, deps, rec)
	if deps.dedupe != nil {
		key := dedupe.Key(result.Fingerprint, alert)
		if err := deps.dedupe.Mark(ctx, key); err != nil {
			slog.Warn("Failed to mark dedupe entry", "error", err)
		}
	}

	deps.metrics.RecordProcessed(time.Since(startTime))
	deps.metrics.RecordPublished()

	slog.Info("Published normalized alert",
		"event_id", normalized.EventID,
		"fingerprint", result.Fingerprint,
		"source", alert.Source,
		"state", alert.State,
		"action", action,
	)
}

// resolveAction determines the lifecycle action for a normalized alert.
// With a state store the action comes from the persisted transition; without
// one every alert is treated as first-seen. An empty action signals a
// transient store failure.
func resolveAction(ctx context.Context, deps *processorDeps, fp string, alert *events.AlertEvent) state.Action {
	if deps.state == nil {
		return state.DetermineAction(nil, alert, time.Time{})
	}

	action, err := deps.state.Transition(ctx, fp, alert)
	if err != nil {
		slog.Error("Failed to transition alert state",
			"fingerprint", fp, "error", err)
		return ""
	}
	return action
}

// handleFailure routes a classified processing failure. Operator mistakes
// are acknowledged immediately since redelivering them cannot help.
// Corrupted messages stay on the queue until the retry budget is spent,
// then go to the dead-letter topic.
func handleFailure(ctx context.Context, deps *processorDeps, rec consumer.Received, result *processor.Result) {
	if result.Err.Kind == faults.KindUserActionable {
		slog.Warn("Alert rejected, operator fix required",
			"message_id", rec.Message.MessageID,
			"error", result.Error,
		)
		deps.metrics.RecordUserActionable()
		deleteMessage(ctx, deps, rec)
		return
	}

	attempt := rec.Message.DeliveryAttempt()
	if attempt < deps.maxReceive {
		slog.Warn("Corrupted message left for redelivery",
			"message_id", rec.Message.MessageID,
			"delivery_attempt", attempt,
			"max_receive_count", deps.maxReceive,
			"error", result.Error,
		)
		deps.metrics.RecordCorrupted()
		return
	}

	letter := &events.DeadLetter{
		MessageID:       rec.Message.MessageID,
		Error:           result.Error,
		Kind:            string(result.Err.Kind),
		Body:            rec.Message.Body,
		DeliveryAttempt: attempt,
		DeadLetteredAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := deps.deadLetter.Publish(ctx, letter); err != nil {
		slog.Error("Failed to publish dead letter, leaving message on queue",
			"message_id", rec.Message.MessageID, "error", err)
		deps.metrics.RecordError()
		return
	}

	slog.Error("Message dead-lettered after exhausting retry budget",
		"message_id", rec.Message.MessageID,
		"delivery_attempt", attempt,
		"error", result.Error,
	)
	deps.metrics.RecordDeadLettered()
	deleteMessage(ctx, deps, rec)
}

// deleteMessage acknowledges a message so the queue stops redelivering it.
func deleteMessage(ctx context.Context, deps *processorDeps, rec consumer.Received) {
	if err := deps.consumer.Delete(ctx, rec.ReceiptHandle); err != nil {
		slog.Error("Failed to delete message",
			"message_id", rec.Message.MessageID, "error", err)
	}
}
