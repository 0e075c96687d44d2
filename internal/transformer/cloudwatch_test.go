package transformer

import (
	"encoding/json"
	"strings"
	"testing"

	"alert-collector/internal/events"
	"alert-collector/internal/faults"
)

func cloudwatchBody(t *testing.T, mutate func(alarm map[string]interface{})) []byte {
	t.Helper()
	alarm := map[string]interface{}{
		"AlarmName":        "runners-scale-up-errors",
		"AlarmDescription": "TEAM=dev-infra | PRIORITY=P1 | RUNBOOK=https://runbooks.example.com/runners",
		"AWSAccountId":     "123456789012",
		"NewStateValue":    "ALARM",
		"NewStateReason":   "Threshold Crossed: 1 datapoint was greater than the threshold",
		"OldStateValue":    "OK",
		"StateChangeTime":  "2025-09-16T17:19:40.000+0000",
		"Region":           "us-east-1",
		"AlarmArn":         "arn:aws:cloudwatch:us-east-1:123456789012:alarm:runners-scale-up-errors",
		"Trigger": map[string]interface{}{
			"MetricName": "ScaleUpErrors",
			"Namespace":  "GHARunners",
		},
	}
	if mutate != nil {
		mutate(alarm)
	}
	inner, err := json.Marshal(alarm)
	if err != nil {
		t.Fatalf("marshal alarm: %v", err)
	}
	outer, err := json.Marshal(map[string]interface{}{
		"Type":      "Notification",
		"MessageId": "sns-message-id",
		"TopicArn":  "arn:aws:sns:us-east-1:123456789012:alerts",
		"Message":   string(inner),
		"Timestamp": "2025-09-16T17:19:41.000Z",
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return outer
}

func TestCloudWatchTransformer_Normalize(t *testing.T) {
	tr := NewCloudWatchTransformer(StandardDefaults)

	event, err := tr.Normalize(cloudwatchBody(t, nil), testEnvelope())
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if event.Source != events.SourceCloudWatch {
		t.Errorf("Source = %v, want cloudwatch", event.Source)
	}
	if event.Title != "runners-scale-up-errors" {
		t.Errorf("Title = %q", event.Title)
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
	if event.Links.RunbookURL != "https://runbooks.example.com/runners" {
		t.Errorf("Links.RunbookURL = %q", event.Links.RunbookURL)
	}
	if !strings.Contains(event.Links.SourceURL, "console.aws.amazon.com/cloudwatch") {
		t.Errorf("Links.SourceURL = %q, want console link", event.Links.SourceURL)
	}
}

func TestCloudWatchTransformer_ResolvedState(t *testing.T) {
	tr := NewCloudWatchTransformer(StandardDefaults)

	body := cloudwatchBody(t, func(alarm map[string]interface{}) {
		alarm["NewStateValue"] = "OK"
		alarm["OldStateValue"] = "ALARM"
	})

	event, err := tr.Normalize(body, testEnvelope())
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if event.State != events.StateResolved {
		t.Errorf("State = %v, want RESOLVED", event.State)
	}
}

func TestCloudWatchTransformer_MissingNewStateValue(t *testing.T) {
	tr := NewCloudWatchTransformer(StandardDefaults)

	body := cloudwatchBody(t, func(alarm map[string]interface{}) {
		delete(alarm, "NewStateValue")
	})

	_, err := tr.Normalize(body, testEnvelope())
	if err == nil {
		t.Fatal("Normalize() expected error, got nil")
	}
	if !faults.IsSystemCorruption(err) {
		t.Errorf("missing NewStateValue must classify as SystemCorruption, got %v", err)
	}
	if !strings.Contains(err.Error(), "corrupted") {
		t.Errorf("error %q should indicate corrupted data", err.Error())
	}
}

func TestCloudWatchTransformer_UnrecognizedState(t *testing.T) {
	tr := NewCloudWatchTransformer(StandardDefaults)

	body := cloudwatchBody(t, func(alarm map[string]interface{}) {
		alarm["NewStateValue"] = "INSUFFICIENT_DATA"
	})

	_, err := tr.Normalize(body, testEnvelope())
	if !faults.IsSystemCorruption(err) {
		t.Errorf("unrecognized NewStateValue must classify as SystemCorruption, got %v", err)
	}
}

func TestCloudWatchTransformer_DescriptionPolicy(t *testing.T) {
	tr := NewCloudWatchTransformer(StandardDefaults)

	tests := []struct {
		name         string
		description  interface{} // nil to delete
		wantTeam     string
		wantPriority string
		wantErr      bool
		wantKind     faults.Kind
	}{
		{
			name:         "absent description falls back to defaults",
			description:  nil,
			wantTeam:     "unknown",
			wantPriority: "P0",
		},
		{
			name:         "blank description falls back to defaults",
			description:  "   ",
			wantTeam:     "unknown",
			wantPriority: "P0",
		},
		{
			name:        "missing PRIORITY token",
			description: "TEAM=dev-infra",
			wantErr:     true,
			wantKind:    faults.KindUserActionable,
		},
		{
			name:        "missing TEAM token",
			description: "PRIORITY=P1",
			wantErr:     true,
			wantKind:    faults.KindUserActionable,
		},
		{
			name:        "unparsable description",
			description: "this alarm fires when runners fail to scale",
			wantErr:     true,
			wantKind:    faults.KindUserActionable,
		},
		{
			name:         "case-insensitive keys",
			description:  "team=ml-infra | priority=p2",
			wantTeam:     "ml-infra",
			wantPriority: "P2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := cloudwatchBody(t, func(alarm map[string]interface{}) {
				if tt.description == nil {
					delete(alarm, "AlarmDescription")
				} else {
					alarm["AlarmDescription"] = tt.description
				}
			})

			event, err := tr.Normalize(body, testEnvelope())
			if tt.wantErr {
				if err == nil {
					t.Fatal("Normalize() expected error, got nil")
				}
				kind, _ := faults.KindOf(err)
				if kind != tt.wantKind {
					t.Errorf("error kind = %v, want %v (error: %v)", kind, tt.wantKind, err)
				}
				if tt.wantKind == faults.KindUserActionable && !strings.Contains(err.Error(), "to make the alert work") {
					t.Errorf("error %q should instruct the operator", err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if event.Team != tt.wantTeam {
				t.Errorf("Team = %q, want %q", event.Team, tt.wantTeam)
			}
			if event.Priority != tt.wantPriority {
				t.Errorf("Priority = %q, want %q", event.Priority, tt.wantPriority)
			}
		})
	}
}

func TestCloudWatchTransformer_BadEnvelopeType(t *testing.T) {
	tr := NewCloudWatchTransformer(StandardDefaults)

	body := []byte(`{"Type":"SubscriptionConfirmation","Message":"{}"}`)
	_, err := tr.Normalize(body, testEnvelope())
	if !faults.IsSystemCorruption(err) {
		t.Errorf("non-Notification envelope must classify as SystemCorruption, got %v", err)
	}
}

func TestCloudWatchTransformer_UnparsableInnerMessage(t *testing.T) {
	tr := NewCloudWatchTransformer(StandardDefaults)

	body := []byte(`{"Type":"Notification","Message":"not json"}`)
	_, err := tr.Normalize(body, testEnvelope())
	if !faults.IsSystemCorruption(err) {
		t.Errorf("unparsable inner Message must classify as SystemCorruption, got %v", err)
	}
}

func TestCloudWatchTransformer_BareAlarmDocument(t *testing.T) {
	tr := NewCloudWatchTransformer(StandardDefaults)

	body := []byte(`{
		"AlarmName": "HighCPU",
		"AlarmDescription": "TEAM=platform | PRIORITY=P2",
		"NewStateValue": "ALARM",
		"StateChangeTime": "2025-09-16T17:19:40Z",
		"Region": "us-east-1"
	}`)

	event, err := tr.Normalize(body, testEnvelope())
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if event.Title != "HighCPU" || event.Team != "platform" {
		t.Errorf("bare alarm normalization: title=%q team=%q", event.Title, event.Team)
	}
}

func TestParseAlarmDescription(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        map[string]string
		wantErr     bool
	}{
		{
			name:        "standard pairs",
			description: "TEAM=dev-infra | PRIORITY=P1",
			want:        map[string]string{"TEAM": "dev-infra", "PRIORITY": "P1"},
		},
		{
			name:        "value containing equals",
			description: "TEAM=dev-infra | RUNBOOK=https://example.com/runbook?id=7",
			want:        map[string]string{"TEAM": "dev-infra", "RUNBOOK": "https://example.com/runbook?id=7"},
		},
		{
			name:        "extra whitespace and empty segments",
			description: " TEAM = dev-infra || PRIORITY = P1 ",
			want:        map[string]string{"TEAM": "dev-infra", "PRIORITY": "P1"},
		},
		{
			name:        "blank description",
			description: "",
			want:        map[string]string{},
		},
		{
			name:        "no recognizable pairs",
			description: "fires when cpu is high",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAlarmDescription(tt.description)
			if tt.wantErr {
				if err == nil {
					t.Fatal("ParseAlarmDescription() expected error, got nil")
				}
				if !faults.IsUserActionable(err) {
					t.Errorf("tokenizer failure must classify as UserActionable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAlarmDescription() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseAlarmDescription() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("token %q = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
