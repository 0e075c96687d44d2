package transformer

import (
	"encoding/json"

	"alert-collector/internal/envelope"
	"alert-collector/internal/events"
	"alert-collector/internal/faults"
)

// Registry selects the transformer for an inbound message. Selection is pure
// and side-effect-free; an unroutable message is a terminal SystemCorruption
// error because it indicates a misconfigured queue or an unknown producer,
// not something the alert owner can fix.
type Registry struct {
	grafana    Transformer
	cloudwatch Transformer
}

// NewRegistry builds a registry over all known vendor transformers.
func NewRegistry(defaults Defaults) *Registry {
	return &Registry{
		grafana:    NewGrafanaTransformer(defaults),
		cloudwatch: NewCloudWatchTransformer(defaults),
	}
}

// shapeProbe captures just enough of a payload to recognize which vendor
// emitted it. Field names match the vendors' wire formats exactly.
type shapeProbe struct {
	// Grafana-style webhook markers
	Receiver string            `json:"receiver"`
	Alerts   []json.RawMessage `json:"alerts"`
	OrgID    json.Number       `json:"orgId"`

	// CloudWatch SNS envelope markers
	Type    string `json:"Type"`
	Message string `json:"Message"`

	// Direct CloudWatch alarm markers
	AlarmName     string `json:"AlarmName"`
	NewStateValue string `json:"NewStateValue"`
}

// Select returns the transformer for a message. The explicit source
// attribute wins when it names a known vendor; otherwise the payload shape
// decides; a message matching neither fails selection.
func (r *Registry) Select(msg *envelope.InboundMessage) (Transformer, error) {
	switch events.Source(msg.SourceHint()) {
	case events.SourceGrafana:
		return r.grafana, nil
	case events.SourceCloudWatch:
		return r.cloudwatch, nil
	}

	var probe shapeProbe
	if err := json.Unmarshal([]byte(msg.Body), &probe); err != nil {
		return nil, faults.SystemCorruption(
			"unrecognized alert source: message body is not a JSON object. This indicates corrupted data from the transport")
	}

	if probe.Alerts != nil || probe.Receiver != "" || probe.OrgID != "" {
		return r.grafana, nil
	}
	if probe.Type == "Notification" && probe.Message != "" {
		return r.cloudwatch, nil
	}
	if probe.AlarmName != "" && probe.NewStateValue != "" {
		return r.cloudwatch, nil
	}

	return nil, faults.SystemCorruption(
		"unrecognized alert source: payload matches no known vendor shape. This indicates unexpected upstream data from a misconfigured queue or unknown producer")
}
