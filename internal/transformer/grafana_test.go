package transformer

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"alert-collector/internal/envelope"
	"alert-collector/internal/events"
	"alert-collector/internal/faults"
)

func grafanaBody(t *testing.T, mutate func(payload map[string]interface{})) []byte {
	t.Helper()
	payload := map[string]interface{}{
		"receiver": "sns",
		"status":   "firing",
		"orgId":    1,
		"alerts": []map[string]interface{}{
			{
				"status": "firing",
				"labels": map[string]string{"alertname": "Runners Scale Up Failure"},
				"annotations": map[string]string{
					"Team":     "dev-infra",
					"Priority": "P1",
				},
				"startsAt":     "2025-09-16T17:19:40Z",
				"endsAt":       "0001-01-01T00:00:00Z",
				"generatorURL": "https://grafana.example.com/alerting/1",
				"fingerprint":  "abc123",
			},
		},
		"groupLabels": map[string]string{"alertname": "Runners Scale Up Failure"},
		"externalURL": "https://grafana.example.com",
	}
	if mutate != nil {
		mutate(payload)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal test payload: %v", err)
	}
	return body
}

func testEnvelope() *envelope.Envelope {
	return &envelope.Envelope{
		ReceivedAt:      time.Now().UTC(),
		IngestQueue:     "alerts-queue",
		IngestRegion:    "us-east-1",
		DeliveryAttempt: 1,
		EventID:         "test-message",
	}
}

func firstAlert(payload map[string]interface{}) map[string]interface{} {
	return payload["alerts"].([]map[string]interface{})[0]
}

func TestGrafanaTransformer_Normalize(t *testing.T) {
	tr := NewGrafanaTransformer(StandardDefaults)

	event, err := tr.Normalize(grafanaBody(t, nil), testEnvelope())
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if event.Source != events.SourceGrafana {
		t.Errorf("Source = %v, want grafana", event.Source)
	}
	if event.Title != "Runners Scale Up Failure" {
		t.Errorf("Title = %q, want \"Runners Scale Up Failure\"", event.Title)
	}
	if event.Team != "dev-infra" {
		t.Errorf("Team = %q, want dev-infra", event.Team)
	}
	if event.Priority != "P1" {
		t.Errorf("Priority = %q, want P1", event.Priority)
	}
	if event.State != events.StateFiring {
		t.Errorf("State = %v, want FIRING", event.State)
	}
	if event.OccurredAt != "2025-09-16T17:19:40Z" {
		t.Errorf("OccurredAt = %q, want 2025-09-16T17:19:40Z", event.OccurredAt)
	}
	if event.IdentityToken != "abc123" {
		t.Errorf("IdentityToken = %q, want abc123", event.IdentityToken)
	}
	if event.Links.SourceURL != "https://grafana.example.com/alerting/1" {
		t.Errorf("Links.SourceURL = %q", event.Links.SourceURL)
	}
}

func TestGrafanaTransformer_ResolvedState(t *testing.T) {
	tr := NewGrafanaTransformer(StandardDefaults)

	body := grafanaBody(t, func(payload map[string]interface{}) {
		payload["status"] = "resolved"
		firstAlert(payload)["status"] = "resolved"
	})

	event, err := tr.Normalize(body, testEnvelope())
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if event.State != events.StateResolved {
		t.Errorf("State = %v, want RESOLVED", event.State)
	}
}

func TestGrafanaTransformer_RulenamePreferredOverAlertname(t *testing.T) {
	tr := NewGrafanaTransformer(StandardDefaults)

	body := grafanaBody(t, func(payload map[string]interface{}) {
		firstAlert(payload)["labels"] = map[string]string{
			"alertname": "GenericAlertType",
			"rulename":  "Runner Pool Exhausted",
		}
	})

	event, err := tr.Normalize(body, testEnvelope())
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if event.Title != "Runner Pool Exhausted" {
		t.Errorf("Title = %q, want rulename value", event.Title)
	}
}

func TestGrafanaTransformer_MissingRequiredAnnotations(t *testing.T) {
	tr := NewGrafanaTransformer(StandardDefaults)

	tests := []struct {
		name        string
		annotations map[string]string
		wantField   string
	}{
		{
			name:        "missing Priority with Team present",
			annotations: map[string]string{"Team": "dev-infra"},
			wantField:   "Priority",
		},
		{
			name:        "missing Team with Priority present",
			annotations: map[string]string{"Priority": "P1"},
			wantField:   "Team",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := grafanaBody(t, func(payload map[string]interface{}) {
				firstAlert(payload)["annotations"] = tt.annotations
			})

			_, err := tr.Normalize(body, testEnvelope())
			if err == nil {
				t.Fatal("Normalize() expected error, got nil")
			}
			if !faults.IsUserActionable(err) {
				t.Errorf("missing annotation must classify as UserActionable, got %v", err)
			}
			if !strings.Contains(err.Error(), "Please add this to make the alert work") {
				t.Errorf("error %q missing the user-actionable phrasing", err.Error())
			}
			if !strings.Contains(err.Error(), tt.wantField) {
				t.Errorf("error %q should name field %q", err.Error(), tt.wantField)
			}
		})
	}
}

func TestGrafanaTransformer_AbsentAnnotationsFallBackToDefaults(t *testing.T) {
	tr := NewGrafanaTransformer(StandardDefaults)

	body := grafanaBody(t, func(payload map[string]interface{}) {
		delete(firstAlert(payload), "annotations")
	})

	event, err := tr.Normalize(body, testEnvelope())
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if event.Team != "unknown" {
		t.Errorf("Team = %q, want default \"unknown\"", event.Team)
	}
	if event.Priority != "P0" {
		t.Errorf("Priority = %q, want default \"P0\"", event.Priority)
	}
}

func TestGrafanaTransformer_UnrecognizedStatus(t *testing.T) {
	tr := NewGrafanaTransformer(StandardDefaults)

	body := grafanaBody(t, func(payload map[string]interface{}) {
		firstAlert(payload)["status"] = "invalid_status_from_grafana"
	})

	_, err := tr.Normalize(body, testEnvelope())
	if err == nil {
		t.Fatal("Normalize() expected error, got nil")
	}
	if !faults.IsSystemCorruption(err) {
		t.Errorf("unrecognized status must classify as SystemCorruption, got %v", err)
	}
	if !strings.Contains(err.Error(), "corrupted") {
		t.Errorf("error %q should indicate corrupted data", err.Error())
	}
}

func TestGrafanaTransformer_StatusIsCaseSensitive(t *testing.T) {
	tr := NewGrafanaTransformer(StandardDefaults)

	body := grafanaBody(t, func(payload map[string]interface{}) {
		firstAlert(payload)["status"] = "FIRING"
	})

	_, err := tr.Normalize(body, testEnvelope())
	if !faults.IsSystemCorruption(err) {
		t.Errorf("uppercase status literal must be rejected as SystemCorruption, got %v", err)
	}
}

func TestGrafanaTransformer_UnparsableTimestamp(t *testing.T) {
	tr := NewGrafanaTransformer(StandardDefaults)

	body := grafanaBody(t, func(payload map[string]interface{}) {
		firstAlert(payload)["startsAt"] = "yesterday at noon"
	})

	_, err := tr.Normalize(body, testEnvelope())
	if !faults.IsSystemCorruption(err) {
		t.Errorf("unparsable timestamp must classify as SystemCorruption, got %v", err)
	}
}

func TestGrafanaTransformer_ZeroTimestampFallsBackToNow(t *testing.T) {
	tr := NewGrafanaTransformer(StandardDefaults)

	body := grafanaBody(t, func(payload map[string]interface{}) {
		alert := firstAlert(payload)
		alert["startsAt"] = "0001-01-01T00:00:00Z"
		alert["endsAt"] = "0001-01-01T00:00:00Z"
	})

	before := time.Now().UTC().Add(-time.Second)
	event, err := tr.Normalize(body, testEnvelope())
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	occurred, err := time.Parse(time.RFC3339Nano, event.OccurredAt)
	if err != nil {
		t.Fatalf("OccurredAt %q is not valid RFC3339: %v", event.OccurredAt, err)
	}
	if occurred.Before(before) {
		t.Errorf("OccurredAt = %v, expected roughly now", occurred)
	}
}

func TestGrafanaTransformer_PriorityNormalization(t *testing.T) {
	tr := NewGrafanaTransformer(StandardDefaults)

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "canonical", raw: "P1", want: "P1"},
		{name: "lowercase", raw: "p2", want: "P2"},
		{name: "numeric", raw: "0", want: "P0"},
		{name: "whitespace", raw: " P3 ", want: "P3"},
		{name: "out of range", raw: "P4", wantErr: true},
		{name: "word", raw: "HIGH", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := grafanaBody(t, func(payload map[string]interface{}) {
				firstAlert(payload)["annotations"] = map[string]string{
					"Team":     "dev-infra",
					"Priority": tt.raw,
				}
			})

			event, err := tr.Normalize(body, testEnvelope())
			if tt.wantErr {
				if err == nil {
					t.Fatal("Normalize() expected error, got nil")
				}
				if !faults.IsUserActionable(err) {
					t.Errorf("invalid priority must classify as UserActionable, got %v", err)
				}
				if !strings.Contains(err.Error(), "to make the alert work") {
					t.Errorf("error %q should carry the operator-instruction phrase", err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if event.Priority != tt.want {
				t.Errorf("Priority = %q, want %q", event.Priority, tt.want)
			}
		})
	}
}

func TestGrafanaTransformer_NotJSON(t *testing.T) {
	tr := NewGrafanaTransformer(StandardDefaults)

	_, err := tr.Normalize([]byte("not json"), testEnvelope())
	if !faults.IsSystemCorruption(err) {
		t.Errorf("non-JSON body must classify as SystemCorruption, got %v", err)
	}
}

func TestGrafanaTransformer_MissingTitle(t *testing.T) {
	tr := NewGrafanaTransformer(StandardDefaults)

	body := grafanaBody(t, func(payload map[string]interface{}) {
		firstAlert(payload)["labels"] = map[string]string{}
		payload["groupLabels"] = map[string]string{}
	})

	_, err := tr.Normalize(body, testEnvelope())
	if !faults.IsSystemCorruption(err) {
		t.Errorf("missing alert name labels must classify as SystemCorruption, got %v", err)
	}
}
