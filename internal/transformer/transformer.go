// Package transformer converts vendor-specific alert payloads into the
// canonical alert event. Each vendor has one Transformer; the Registry picks
// which one applies to an inbound message.
//
// The error taxonomy follows a single line: fields authored by a human in
// free text (annotations, alarm descriptions) fail as UserActionable, fields
// populated mechanically by the vendor platform (status enums, structural
// envelope fields) fail as SystemCorruption.
package transformer

import (
	"strings"
	"time"

	"alert-collector/internal/envelope"
	"alert-collector/internal/events"
	"alert-collector/internal/faults"
)

// Defaults holds the fallback values applied when an operator-authored
// enrichment container (annotation map, alarm description) is entirely
// absent. Kept in one place so the default/required boundary stays auditable.
type Defaults struct {
	Team     string
	Priority string
}

// StandardDefaults are the platform-wide fallback values.
var StandardDefaults = Defaults{
	Team:     "unknown",
	Priority: "P0",
}

// Transformer normalizes one vendor's raw payload into a canonical alert.
// Implementations are pure: no I/O, no retained state, safe for concurrent
// use.
type Transformer interface {
	// Source identifies the vendor this transformer handles.
	Source() events.Source

	// Normalize parses and validates the payload body. Failures are always
	// classified (faults.Classified), never panics.
	Normalize(body []byte, env *envelope.Envelope) (*events.AlertEvent, error)
}

// grafana's zero-value timestamp sentinel for endsAt on firing alerts.
const zeroTimestamp = "0001-01-01T00:00:00Z"

// timestampLayouts are the accepted vendor timestamp formats. CloudWatch
// emits numeric zone offsets without a colon; Grafana emits RFC3339.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
}

// parseTimestamp parses a vendor timestamp into canonical ISO-8601 UTC.
// An empty or sentinel value falls back to the current time; an unparsable
// value is a SystemCorruption error, since timestamps are machine-populated.
func parseTimestamp(raw, vendor string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == zeroTimestamp {
		return time.Now().UTC().Format(time.RFC3339Nano), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format(time.RFC3339Nano), nil
		}
	}
	return "", faults.SystemCorruption(
		"unparsable timestamp %q in %s alert. This indicates corrupted data from %s", raw, vendor, vendor)
}

// normalizePriority canonicalizes an operator-authored priority value.
// Accepts P0-P3 in any casing and bare digits 0-3; anything else is a
// UserActionable error because the value is authored by the alert owner.
func normalizePriority(raw string) (string, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	switch value {
	case "P0", "P1", "P2", "P3":
		return value, nil
	case "0", "1", "2", "3":
		return "P" + value, nil
	}
	return "", faults.UserActionable(
		"invalid priority value %q: expected P0, P1, P2, P3, or 0-3. Please fix this to make the alert work", raw)
}

// normalizeTitle trims incidental whitespace from an alert title.
func normalizeTitle(raw string) string {
	return strings.TrimSpace(raw)
}
