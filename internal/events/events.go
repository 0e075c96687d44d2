// Package events defines the canonical alert event produced by the
// transformers and the normalized event published to downstream consumers.
package events

import (
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the current canonical alert schema version.
const SchemaVersion = 1

// Source identifies which transformer produced a canonical alert.
type Source string

const (
	SourceGrafana    Source = "grafana"
	SourceCloudWatch Source = "cloudwatch"
)

// State is the alert lifecycle state reported by the upstream vendor.
type State string

const (
	StateFiring   State = "FIRING"
	StateResolved State = "RESOLVED"
)

// Links carries optional URLs extracted from the vendor payload.
type Links struct {
	RunbookURL   string `json:"runbook_url,omitempty"`
	DashboardURL string `json:"dashboard_url,omitempty"`
	SourceURL    string `json:"source_url,omitempty"`
}

// AlertEvent is the canonical, vendor-neutral alert representation.
// It is a value type: two events with identical identity-bearing fields
// (source, title, team, identity token) are interchangeable for
// fingerprinting regardless of state or occurred_at.
type AlertEvent struct {
	SchemaVersion int    `json:"schema_version"`
	Source        Source `json:"source"`
	Title         string `json:"title"`
	Team          string `json:"team"`
	Priority      string `json:"priority"`
	State         State  `json:"state"`
	OccurredAt    string `json:"occurred_at"` // ISO-8601, UTC

	// IdentityToken is a vendor-supplied stable identity (e.g. Grafana's
	// per-alert fingerprint, derived from the label set). Empty when the
	// vendor does not supply one.
	IdentityToken string `json:"identity_token,omitempty"`

	Description string `json:"description,omitempty"`
	Links       Links  `json:"links"`
}

// AlertNormalized is the event published to the normalized alerts topic.
// One message per successfully processed inbound message.
type AlertNormalized struct {
	EventID      string     `json:"event_id"`
	Fingerprint  string     `json:"fingerprint"`
	Action       string     `json:"action,omitempty"` // CREATE, COMMENT, CLOSE, SKIP_STALE, SKIP_MANUAL_CLOSE
	Alert        AlertEvent `json:"alert"`
	ReceivedAt   string     `json:"received_at"`
	NormalizedAt string     `json:"normalized_at"`
}

// NewAlertNormalized builds a publishable event from a canonical alert.
// A fresh event ID is assigned on every call.
func NewAlertNormalized(alert *AlertEvent, fingerprint, action, receivedAt string) *AlertNormalized {
	return &AlertNormalized{
		EventID:      uuid.NewString(),
		Fingerprint:  fingerprint,
		Action:       action,
		Alert:        *alert,
		ReceivedAt:   receivedAt,
		NormalizedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// DeadLetter is the payload published to the dead-letter topic when a
// message exhausts its retry budget on a SYSTEM_CORRUPTION failure.
type DeadLetter struct {
	MessageID       string `json:"message_id"`
	Error           string `json:"error"`
	Kind            string `json:"kind"`
	Body            string `json:"body"`
	DeliveryAttempt int    `json:"delivery_attempt"`
	DeadLetteredAt  string `json:"dead_lettered_at"`
}
