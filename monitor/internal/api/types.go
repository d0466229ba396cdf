package api

import (
	"github.com/wikipulse/wikipulse/monitor/internal/alerts"
	"github.com/wikipulse/wikipulse/monitor/internal/security"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	FeedState        string   `json:"feed_state"`
	Rate             *float64 `json:"rate,omitempty"` // latest sample; absent before the first window
	SampleCount      int      `json:"sample_count"`
	AnnotationCount  int      `json:"annotation_count"`
	MessagesReceived uint64   `json:"messages_received"`
	EventsEmitted    uint64   `json:"events_emitted"`
	DecodeFailures   uint64   `json:"decode_failures"`
	AlertCount       int      `json:"alert_count"`
	GeneratedAt      string   `json:"generated_at"` // RFC3339

	FeedTLS *security.CertStatus `json:"feed_tls,omitempty"` // wss:// feeds only
}

// RatePoint is one rate sample.
type RatePoint struct {
	Value float64 `json:"value"` // edits per second
	At    string  `json:"at"`    // RFC3339Nano
}

// TickerResponse is the payload for GET /api/v1/ticker.
type TickerResponse struct {
	Text      string `json:"text"`
	UpdatedAt string `json:"updated_at"` // RFC3339Nano
}

// AnnotationResponse is one chart annotation.
type AnnotationResponse struct {
	Kind string `json:"kind"`
	At   string `json:"at"` // RFC3339Nano
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the first
// message every WebSocket client receives.
type SnapshotResponse struct {
	Rates       []RatePoint          `json:"rates"`
	Ticker      *TickerResponse      `json:"ticker,omitempty"`
	Annotations []AnnotationResponse `json:"annotations"`
	GeneratedAt string               `json:"generated_at"` // RFC3339
}

// AlertsResponse is the payload for GET /api/v1/alerts.
type AlertsResponse struct {
	Alerts []alerts.Alert `json:"alerts"`
}

// Stats are the feed counters reported by /api/v1/health.
type Stats struct {
	MessagesReceived uint64
	EventsEmitted    uint64
	DecodeFailures   uint64
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
