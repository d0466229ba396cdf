// Package pipeline wires the feed's event stream to the display sinks.
//
// RateAggregator turns events into one edits-per-second sample per window.
// ContentTicker shows the content of the most recent event of one kind.
// AnnotationTracker marks the chart whenever an event of another kind (new
// user registrations by default) arrives with a usable timestamp.
//
// Each pipeline does its buffering and mapping on a worker scheduler and
// calls its sink only on the presentation scheduler. Pipelines are
// independent subscriptions: stopping one never affects another.
package pipeline
