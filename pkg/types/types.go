package types

import "time"

// RateSample is one edit-rate reading in edits per second. At is the time
// the window closed.
type RateSample struct {
	Value float64   `json:"value"`
	At    time.Time `json:"at"`
}

// Annotation marks a point on the chart's time axis, e.g. a new-user event.
type Annotation struct {
	Kind string    `json:"kind"`
	At   time.Time `json:"at"`
}

// TickerUpdate is the latest content string shown by the ticker label.
type TickerUpdate struct {
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updated_at"`
}
