// Package types defines the value types shared between the monitor's
// pipelines and the sinks that display them. These are the canonical
// in-memory representations of the derived views, separate from any wire
// format used by the hub, the REST API or the NATS publisher.
package types
