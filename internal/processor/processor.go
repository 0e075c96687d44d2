// Package processor orchestrates the normalization pipeline for one inbound
// message: decode body, select transformer, normalize, fingerprint. It
// performs no I/O and retains no state, so independent messages may be
// processed concurrently and a caller may abandon an attempt at any point.
package processor

import (
	"log/slog"

	"alert-collector/internal/envelope"
	"alert-collector/internal/events"
	"alert-collector/internal/faults"
	"alert-collector/internal/fingerprint"
	"alert-collector/internal/transformer"
)

// Metadata carries the normalized alert on a successful result.
type Metadata struct {
	AlertEvent *events.AlertEvent `json:"alertEvent"`
}

// Result is the uniform outcome of one processing attempt. Exactly one of
// the success or failure halves is populated; the struct is never mutated
// after construction.
type Result struct {
	Success     bool      `json:"success"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Metadata    *Metadata `json:"metadata,omitempty"`
	Error       string    `json:"error,omitempty"`

	// Err carries the classification for the caller's retry/terminal
	// decision. Not serialized; the Error string holds the phrasing
	// contract.
	Err *faults.Classified `json:"-"`

	// Envelope is the delivery metadata derived from the message.
	Envelope *envelope.Envelope `json:"-"`
}

// Processor drives the registry -> transformer -> fingerprint pipeline.
type Processor struct {
	registry *transformer.Registry
}

// New creates a processor over the given transformer registry.
func New(registry *transformer.Registry) *Processor {
	return &Processor{registry: registry}
}

// Process runs one inbound message through the pipeline. All failures are
// returned as classified results; nothing panics across this boundary.
// Calling Process twice on the same message yields the same fingerprint, so
// blind retries are always safe.
func (p *Processor) Process(msg *envelope.InboundMessage) *Result {
	env := envelope.Build(msg)

	t, err := p.registry.Select(msg)
	if err != nil {
		return failure(msg, env, err)
	}

	alert, err := t.Normalize([]byte(msg.Body), env)
	if err != nil {
		// No fingerprinting on invalid data.
		return failure(msg, env, err)
	}

	fp := fingerprint.Generate(alert)

	slog.Debug("Normalized alert",
		"message_id", msg.MessageID,
		"fingerprint", fp,
		"source", alert.Source,
		"title", alert.Title,
		"team", alert.Team,
		"state", alert.State,
	)

	return &Result{
		Success:     true,
		Fingerprint: fp,
		Metadata:    &Metadata{AlertEvent: alert},
		Envelope:    env,
	}
}

// failure builds a classified failure result. Errors that arrive
// unclassified are treated as system corruption so the caller's retry
// decision is always well-defined.
func failure(msg *envelope.InboundMessage, env *envelope.Envelope, err error) *Result {
	classified := faults.Ensure(err)
	slog.Warn("Failed to process message",
		"message_id", msg.MessageID,
		"kind", classified.Kind,
		"error", classified.Message,
	)
	return &Result{
		Success:  false,
		Error:    classified.Message,
		Err:      classified,
		Envelope: env,
	}
}
