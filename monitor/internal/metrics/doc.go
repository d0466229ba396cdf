// Package metrics exposes the monitor's Prometheus metrics.
//
// Metrics implements feed.Recorder and pipeline.ChartSink, so it is wired in
// as the connection's recorder and as one more rate sink. Handler serves the
// registry in the Prometheus text format; Snapshot reads the gathered
// families back for the health endpoint.
package metrics
