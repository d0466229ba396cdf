// Package store keeps what the display shows: the recent rate series, the
// current ticker text and the most recent chart annotations. It implements
// all three pipeline sinks and evicts rate samples older than the retention
// period.
package store
