package api

import (
	"fmt"
	"sort"

	"github.com/wikipulse/wikipulse/monitor/internal/security"
)

// DiagnosticHint is one human-readable insight about the feed's health.
// The UI shows these as chips above the rate chart; Detail is the full
// explanation shown on hover.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label shown on the chip.
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint.
	Value *float64 `json:"value,omitempty"`
}

// DiagnosticsResponse is the payload for GET /api/v1/diagnostics.
type DiagnosticsResponse struct {
	Hints       []DiagnosticHint `json:"hints"`
	GeneratedAt string           `json:"generated_at"` // RFC3339
}

// diagnosticInput is everything computeDiagnostics looks at.
type diagnosticInput struct {
	FeedState   string
	Stats       Stats
	Rate        *float64
	SampleCount int
	Firing      int
	Cert        *security.CertStatus
}

var levelOrder = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

// computeDiagnostics derives hints from the current feed state.
// Hints are ordered: critical first, then warnings, then info.
func computeDiagnostics(in diagnosticInput) []DiagnosticHint {
	var hints []DiagnosticHint

	// ── Feed lifecycle ───────────────────────────────────────────────────────
	switch in.FeedState {
	case "failed":
		hints = append(hints, DiagnosticHint{
			Key:   "feed_failed",
			Level: "critical",
			Title: "Feed connection lost",
			Detail: "The connection to the edit feed ended with an error. " +
				"Rates, ticker text and annotations are frozen at their last values. " +
				"Check that the feed URL is reachable and restart the monitor.",
		})
	case "closed":
		hints = append(hints, DiagnosticHint{
			Key:   "feed_closed",
			Level: "warning",
			Title: "Feed closed",
			Detail: "The edit feed closed the connection normally. " +
				"No further edits will arrive until the monitor is restarted.",
		})
	case "idle":
		hints = append(hints, DiagnosticHint{
			Key:    "feed_idle",
			Level:  "info",
			Title:  "Not connected",
			Detail: "The monitor has not opened the feed connection yet.",
		})
	}

	// ── Warming up ───────────────────────────────────────────────────────────
	if in.FeedState == "open" && in.SampleCount == 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "warming_up",
			Level: "info",
			Title: "Warming up",
			Detail: "The first rate window has not closed yet. " +
				"The chart gets its first point at the end of the first window. " +
				"No action needed.",
		})
	}

	// ── Decode failures ──────────────────────────────────────────────────────
	if in.Stats.MessagesReceived > 0 && in.Stats.DecodeFailures > 0 {
		pct := float64(in.Stats.DecodeFailures) / float64(in.Stats.MessagesReceived) * 100
		v := pct
		level := "info"
		switch {
		case pct >= 10:
			level = "critical"
		case pct >= 1:
			level = "warning"
		}
		hints = append(hints, DiagnosticHint{
			Key:   "decode_failures",
			Level: level,
			Title: fmt.Sprintf("%.1f%% undecodable", pct),
			Detail: fmt.Sprintf(
				"%d of %d feed messages could not be decoded and were dropped. "+
					"A rising share usually means the feed changed its message format.",
				in.Stats.DecodeFailures, in.Stats.MessagesReceived,
			),
			Value: &v,
		})
	}

	// ── Quiet feed ───────────────────────────────────────────────────────────
	if in.FeedState == "open" && in.Rate != nil && *in.Rate == 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "quiet",
			Level: "info",
			Title: "No edits in last window",
			Detail: "The connection is open but no edits arrived during the last window. " +
				"Short lulls are normal; a long flat line can mean the feed stalled.",
		})
	}

	// ── Alerts ───────────────────────────────────────────────────────────────
	if in.Firing > 0 {
		v := float64(in.Firing)
		hints = append(hints, DiagnosticHint{
			Key:    "alerts_firing",
			Level:  "warning",
			Title:  fmt.Sprintf("%d alert(s) firing", in.Firing),
			Detail: "One or more rate rules are firing. See /api/v1/alerts.",
			Value:  &v,
		})
	}

	// ── Feed certificate ─────────────────────────────────────────────────────
	if c := in.Cert; c != nil && c.Status != "valid" {
		level := "warning"
		if c.Status == "expired" || c.Status == "unreachable" {
			level = "critical"
		}
		v := float64(c.DaysLeft)
		hints = append(hints, DiagnosticHint{
			Key:   "feed_cert_" + c.Status,
			Level: level,
			Title: "Feed certificate " + c.Status,
			Detail: fmt.Sprintf(
				"The TLS certificate for %s is %s (%d days left, issuer %q).",
				c.Endpoint, c.Status, c.DaysLeft, c.Issuer,
			),
			Value: &v,
		})
	}

	// ── All clear ────────────────────────────────────────────────────────────
	if len(hints) == 0 {
		hint := DiagnosticHint{
			Key:    "healthy",
			Level:  "ok",
			Title:  "All clear",
			Detail: "The feed is open and every message decoded cleanly.",
		}
		if in.Rate != nil {
			v := *in.Rate
			hint.Value = &v
		}
		hints = append(hints, hint)
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelOrder[hints[i].Level] < levelOrder[hints[j].Level]
	})
	return hints
}
