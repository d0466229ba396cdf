package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// payloadSource names the monitor in every webhook body.
const payloadSource = "wikipulse"

// deliver posts a's transition to every webhook with a resolvable URL.
// Failures are logged per target and never reach the evaluating caller.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}
		body, err := renderPayload(wh.Type, a)
		if err != nil {
			slog.Warn("alerts: cannot render webhook payload", "type", wh.Type, "err", err)
			continue
		}
		if err := e.post(url, body); err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type, "rule", a.RuleName, "state", a.State, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "rule", a.RuleName, "state", a.State)
	}
}

// renderPayload builds the body for one webhook type.
func renderPayload(kind string, a *Alert) ([]byte, error) {
	switch kind {
	case "slack":
		return json.Marshal(map[string]string{"text": slackText(a)})
	case "teams":
		return json.Marshal(teamsCard(a))
	case "http":
		return json.Marshal(map[string]any{"source": payloadSource, "alert": a})
	default:
		return nil, fmt.Errorf("unknown webhook type %q", kind)
	}
}

func slackText(a *Alert) string {
	if a.State == StateResolved {
		return fmt.Sprintf(":white_check_mark: *%s* resolved, edit rate back to %.2f edits/s", a.RuleName, a.Value)
	}
	return fmt.Sprintf("%s *%s* (%s): %.2f edits/s on the wiki feed", severityEmoji(a.Severity), a.RuleName, a.Severity, a.Value)
}

// teamsCard renders a legacy Office 365 connector MessageCard with the edit
// rate as a fact.
func teamsCard(a *Alert) map[string]any {
	facts := []map[string]string{
		{"name": "Edit rate", "value": fmt.Sprintf("%.2f edits/s", a.Value)},
		{"name": "Severity", "value": a.Severity},
		{"name": "Fired", "value": a.FiredAt.UTC().Format(time.RFC3339)},
	}
	if a.ResolvedAt != nil {
		facts = append(facts, map[string]string{"name": "Resolved", "value": a.ResolvedAt.UTC().Format(time.RFC3339)})
	}
	color := severityColor(a.Severity)
	if a.State == StateResolved {
		color = resolvedColor
	}
	return map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": color,
		"summary":    fmt.Sprintf("%s %s", a.RuleName, a.State),
		"title":      fmt.Sprintf("Wiki edit rate %s: %s", a.State, a.RuleName),
		"sections": []map[string]any{{
			"activityTitle": a.Message,
			"facts":         facts,
		}},
	}
}

func (e *Engine) post(url string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), e.client.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

const resolvedColor = "2EB67D"

func severityEmoji(s string) string {
	switch s {
	case "critical":
		return ":rotating_light:"
	case "warning":
		return ":warning:"
	default:
		return ":information_source:"
	}
}

func severityColor(s string) string {
	switch s {
	case "critical":
		return "D33E43"
	case "warning":
		return "F2A33A"
	default:
		return "3366CC"
	}
}
