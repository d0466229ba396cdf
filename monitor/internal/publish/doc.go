// Package publish forwards display updates to external consumers over NATS.
//
// Sink implements the pipeline sinks and publishes each call as JSON on
// <prefix>.rate, <prefix>.ticker or <prefix>.annotation. NoopPublisher
// stands in when no NATS URL is configured.
package publish
