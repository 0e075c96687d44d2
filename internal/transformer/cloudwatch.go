package transformer

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"alert-collector/internal/envelope"
	"alert-collector/internal/events"
	"alert-collector/internal/faults"
)

// snsEnvelope is the outer SNS notification wrapper CloudWatch alarms arrive
// in. Only the structural fields are read; Message is itself JSON-encoded.
type snsEnvelope struct {
	Type      string `json:"Type"`
	MessageID string `json:"MessageId"`
	TopicArn  string `json:"TopicArn"`
	Subject   string `json:"Subject"`
	Message   string `json:"Message"`
	Timestamp string `json:"Timestamp"`
}

// cloudWatchAlarm is the alarm document inside the SNS Message field.
type cloudWatchAlarm struct {
	AlarmName        string        `json:"AlarmName"`
	AlarmDescription string        `json:"AlarmDescription"`
	AWSAccountID     string        `json:"AWSAccountId"`
	NewStateValue    string        `json:"NewStateValue"`
	NewStateReason   string        `json:"NewStateReason"`
	OldStateValue    string        `json:"OldStateValue"`
	StateChangeTime  string        `json:"StateChangeTime"`
	Region           string        `json:"Region"`
	AlarmArn         string        `json:"AlarmArn"`
	Trigger          *alarmTrigger `json:"Trigger"`
}

type alarmTrigger struct {
	MetricName         string           `json:"MetricName"`
	Namespace          string           `json:"Namespace"`
	Statistic          string           `json:"Statistic"`
	ComparisonOperator string           `json:"ComparisonOperator"`
	Threshold          float64          `json:"Threshold"`
	Dimensions         []alarmDimension `json:"Dimensions"`
}

type alarmDimension struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CloudWatchTransformer normalizes CloudWatch alarm notifications delivered
// via SNS.
type CloudWatchTransformer struct {
	defaults Defaults
}

// NewCloudWatchTransformer creates a CloudWatch transformer with the given
// fallback defaults.
func NewCloudWatchTransformer(defaults Defaults) *CloudWatchTransformer {
	return &CloudWatchTransformer{defaults: defaults}
}

// Source returns the vendor identifier.
func (t *CloudWatchTransformer) Source() events.Source {
	return events.SourceCloudWatch
}

// Normalize converts a CloudWatch SNS notification (or a bare alarm
// document) into a canonical alert event.
func (t *CloudWatchTransformer) Normalize(body []byte, env *envelope.Envelope) (*events.AlertEvent, error) {
	alarm, err := t.unwrapAlarm(body)
	if err != nil {
		return nil, err
	}

	title := normalizeTitle(alarm.AlarmName)
	if title == "" {
		return nil, faults.SystemCorruption(
			`missing required field "AlarmName" in CloudWatch alarm. This indicates corrupted data from CloudWatch`)
	}

	state, err := t.extractState(alarm)
	if err != nil {
		return nil, err
	}

	occurredAt, err := parseTimestamp(alarm.StateChangeTime, "CloudWatch")
	if err != nil {
		return nil, err
	}

	tokens, err := ParseAlarmDescription(alarm.AlarmDescription)
	if err != nil {
		return nil, err
	}
	team, priority, err := t.extractTeamAndPriority(alarm.AlarmDescription, tokens)
	if err != nil {
		return nil, err
	}

	return &events.AlertEvent{
		SchemaVersion: events.SchemaVersion,
		Source:        events.SourceCloudWatch,
		Title:         title,
		Team:          team,
		Priority:      priority,
		State:         state,
		OccurredAt:    occurredAt,
		Description:   alarm.NewStateReason,
		Links: events.Links{
			RunbookURL: tokens["RUNBOOK"],
			SourceURL:  consoleURL(alarm),
		},
	}, nil
}

// unwrapAlarm peels the SNS envelope off the alarm document. An envelope
// whose Type is anything but "Notification", or whose Message does not
// parse, is structurally broken on the platform side.
func (t *CloudWatchTransformer) unwrapAlarm(body []byte) (*cloudWatchAlarm, error) {
	var outer snsEnvelope
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, faults.SystemCorruption(
			"invalid CloudWatch payload: not a JSON object. This indicates corrupted data from CloudWatch")
	}

	if outer.Type == "" && outer.Message == "" {
		// Bare alarm document without the SNS wrapper.
		var alarm cloudWatchAlarm
		if err := json.Unmarshal(body, &alarm); err != nil {
			return nil, faults.SystemCorruption(
				"invalid CloudWatch alarm document: failed to parse. This indicates corrupted data from CloudWatch")
		}
		return &alarm, nil
	}

	if outer.Type != "Notification" {
		return nil, faults.SystemCorruption(
			"unexpected SNS envelope Type %q: expected \"Notification\". This indicates corrupted data from the notification transport", outer.Type)
	}

	var alarm cloudWatchAlarm
	if err := json.Unmarshal([]byte(outer.Message), &alarm); err != nil {
		return nil, faults.SystemCorruption(
			"invalid CloudWatch SNS Message: inner JSON failed to parse. This indicates corrupted data from CloudWatch")
	}
	return &alarm, nil
}

// extractState maps NewStateValue onto the canonical state. The field is
// populated by the cloud provider itself, never by the alert author, so its
// absence or an unknown literal is always a platform-side failure.
func (t *CloudWatchTransformer) extractState(alarm *cloudWatchAlarm) (events.State, error) {
	switch alarm.NewStateValue {
	case "":
		return "", faults.SystemCorruption(
			`missing required field "NewStateValue" in CloudWatch alarm. This indicates corrupted data from CloudWatch`)
	case "ALARM":
		return events.StateFiring, nil
	case "OK":
		return events.StateResolved, nil
	}
	return "", faults.SystemCorruption(
		"unrecognized alarm state %q: expected \"ALARM\" or \"OK\". This indicates corrupted data from CloudWatch", alarm.NewStateValue)
}

// extractTeamAndPriority applies the same required-key policy as the Grafana
// transformer: an entirely absent description falls back to defaults, a
// present description must carry both TEAM and PRIORITY tokens.
func (t *CloudWatchTransformer) extractTeamAndPriority(description string, tokens map[string]string) (string, string, error) {
	if strings.TrimSpace(description) == "" {
		return t.defaults.Team, t.defaults.Priority, nil
	}

	team := tokens["TEAM"]
	if team == "" {
		return "", "", faults.UserActionable(
			`missing required field "TEAM" in CloudWatch alarm description. Please add this to make the alert work`)
	}

	rawPriority := tokens["PRIORITY"]
	if rawPriority == "" {
		return "", "", faults.UserActionable(
			`missing required field "PRIORITY" in CloudWatch alarm description. Please add this to make the alert work`)
	}
	priority, err := normalizePriority(rawPriority)
	if err != nil {
		return "", "", err
	}

	return team, priority, nil
}

// ParseAlarmDescription tokenizes the operator-authored alarm description,
// a free-text field of |-separated KEY=value pairs, e.g.
// "TEAM=dev-infra | PRIORITY=P1 | RUNBOOK=https://...". Keys are
// case-insensitive and returned upper-cased. A blank description yields an
// empty map; a non-blank description that yields no pairs at all is a
// UserActionable error, since the description is authored by the alert
// owner.
func ParseAlarmDescription(description string) (map[string]string, error) {
	tokens := make(map[string]string)
	if strings.TrimSpace(description) == "" {
		return tokens, nil
	}

	for _, pair := range strings.Split(description, "|") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		tokens[key] = value
	}

	if len(tokens) == 0 {
		return nil, faults.UserActionable(
			"unparsable alarm description %q: expected |-separated KEY=value pairs like \"TEAM=dev-infra | PRIORITY=P1\". Please fix this to make the alert work", description)
	}
	return tokens, nil
}

// consoleURL builds a deep link to the alarm in the provider console.
func consoleURL(alarm *cloudWatchAlarm) string {
	if alarm.Region == "" || alarm.AlarmName == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.console.aws.amazon.com/cloudwatch/home?region=%s#alarmsV2:alarm/%s",
		alarm.Region, alarm.Region, url.PathEscape(alarm.AlarmName))
}
