package transformer

import (
	"encoding/json"

	"alert-collector/internal/envelope"
	"alert-collector/internal/events"
	"alert-collector/internal/faults"
)

// grafanaPayload is the Grafana/Alertmanager-style webhook body. Field names
// are fixed by the vendor and parsed exactly as emitted.
type grafanaPayload struct {
	Receiver          string            `json:"receiver"`
	Status            string            `json:"status"`
	OrgID             json.Number       `json:"orgId"`
	Alerts            []grafanaAlert    `json:"alerts"`
	GroupLabels       map[string]string `json:"groupLabels"`
	CommonLabels      map[string]string `json:"commonLabels"`
	CommonAnnotations map[string]string `json:"commonAnnotations"`
	ExternalURL       string            `json:"externalURL"`
	Title             string            `json:"title"`
}

// grafanaAlert is one alert inside the webhook's alerts array.
type grafanaAlert struct {
	Status       string            `json:"status"`
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations"`
	StartsAt     string            `json:"startsAt"`
	EndsAt       string            `json:"endsAt"`
	GeneratorURL string            `json:"generatorURL"`
	DashboardURL string            `json:"dashboardURL"`
	PanelURL     string            `json:"panelURL"`
	Fingerprint  string            `json:"fingerprint"`
}

// GrafanaTransformer normalizes Grafana-style webhook payloads.
type GrafanaTransformer struct {
	defaults Defaults
}

// NewGrafanaTransformer creates a Grafana transformer with the given
// fallback defaults.
func NewGrafanaTransformer(defaults Defaults) *GrafanaTransformer {
	return &GrafanaTransformer{defaults: defaults}
}

// Source returns the vendor identifier.
func (t *GrafanaTransformer) Source() events.Source {
	return events.SourceGrafana
}

// Normalize converts a Grafana webhook body into a canonical alert event.
func (t *GrafanaTransformer) Normalize(body []byte, env *envelope.Envelope) (*events.AlertEvent, error) {
	var payload grafanaPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, faults.SystemCorruption(
			"invalid Grafana payload: not a JSON object. This indicates corrupted data from Grafana")
	}

	// First alert in the group carries the per-alert fields; fall back to
	// the webhook's common maps when the array is empty.
	var alert grafanaAlert
	if len(payload.Alerts) > 0 {
		alert = payload.Alerts[0]
	} else {
		alert = grafanaAlert{Status: payload.Status}
	}

	labels := alert.Labels
	if len(labels) == 0 {
		labels = payload.CommonLabels
	}
	annotations := alert.Annotations
	if len(annotations) == 0 {
		annotations = payload.CommonAnnotations
	}

	title, err := t.extractTitle(&payload, labels)
	if err != nil {
		return nil, err
	}

	state, err := t.extractState(&payload, &alert)
	if err != nil {
		return nil, err
	}

	team, priority, err := t.extractTeamAndPriority(annotations, labels)
	if err != nil {
		return nil, err
	}

	occurredAt, err := t.extractOccurredAt(&alert)
	if err != nil {
		return nil, err
	}

	return &events.AlertEvent{
		SchemaVersion: events.SchemaVersion,
		Source:        events.SourceGrafana,
		Title:         title,
		Team:          team,
		Priority:      priority,
		State:         state,
		OccurredAt:    occurredAt,
		IdentityToken: alert.Fingerprint,
		Description:   firstNonEmpty(annotations["description"], annotations["summary"]),
		Links: events.Links{
			RunbookURL:   firstNonEmpty(annotations["runbook_url"], labels["runbook_url"]),
			DashboardURL: firstNonEmpty(alert.DashboardURL, alert.PanelURL),
			SourceURL:    alert.GeneratorURL,
		},
	}, nil
}

// extractTitle picks the alert name from its label set. The descriptive
// rulename label wins over the generic alertname.
func (t *GrafanaTransformer) extractTitle(payload *grafanaPayload, labels map[string]string) (string, error) {
	candidates := []string{
		labels["rulename"],
		labels["alertname"],
		payload.GroupLabels["alertname"],
		payload.Title,
	}
	for _, candidate := range candidates {
		if title := normalizeTitle(candidate); title != "" {
			return title, nil
		}
	}
	return "", faults.SystemCorruption(
		`missing required field "rulename" or "alertname" in Grafana alert labels. This indicates corrupted data from Grafana`)
}

// extractState maps the vendor's status vocabulary onto the canonical state.
// The vocabulary is fixed by Grafana's protocol, so an unrecognized literal
// means the upstream data is broken, not misconfigured.
func (t *GrafanaTransformer) extractState(payload *grafanaPayload, alert *grafanaAlert) (events.State, error) {
	status := alert.Status
	if status == "" {
		status = payload.Status
	}
	switch status {
	case "firing":
		return events.StateFiring, nil
	case "resolved":
		return events.StateResolved, nil
	}
	return "", faults.SystemCorruption(
		"unrecognized alert status %q: expected \"firing\" or \"resolved\". This indicates corrupted data from Grafana", status)
}

// extractTeamAndPriority applies the required-annotation policy: when the
// operator-authored annotation map is present, both Team and Priority are
// required and a missing key is the operator's to fix. When the map is
// entirely absent, both fall back to the configured defaults.
func (t *GrafanaTransformer) extractTeamAndPriority(annotations, labels map[string]string) (string, string, error) {
	if len(annotations) == 0 {
		return t.defaults.Team, t.defaults.Priority, nil
	}

	team := firstNonEmpty(annotations["Team"], annotations["TEAM"], annotations["team"], labels["team"])
	if team == "" {
		return "", "", faults.UserActionable(
			`missing required field "Team" in Grafana alert annotations. Please add this to make the alert work`)
	}

	rawPriority := firstNonEmpty(annotations["Priority"], annotations["priority"], labels["priority"])
	if rawPriority == "" {
		return "", "", faults.UserActionable(
			`missing required field "Priority" in Grafana alert annotations. Please add this to make the alert work`)
	}
	priority, err := normalizePriority(rawPriority)
	if err != nil {
		return "", "", err
	}

	return team, priority, nil
}

// extractOccurredAt prefers the alert's start timestamp; the zero sentinel
// Grafana sends for endsAt on firing alerts is skipped.
func (t *GrafanaTransformer) extractOccurredAt(alert *grafanaAlert) (string, error) {
	raw := alert.StartsAt
	if raw == "" || raw == zeroTimestamp {
		raw = alert.EndsAt
	}
	return parseTimestamp(raw, "Grafana")
}

// firstNonEmpty returns the first non-empty string among the candidates.
func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}
