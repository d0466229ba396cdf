// Package decode turns raw feed payloads into Events.
//
// A payload is one JSON object. Only three fields are read:
//
//	{ "type": "unspecified", "content": "...", "time": "2014-06-25T10:15:30.123+0000" }
//
// type and content are optional strings; anything else is ignored. The time
// field uses TimeLayout. What happens when it cannot be parsed is set by the
// decoder's TimestampPolicy: TimestampKeep (the default) returns the event
// with a zero Timestamp, TimestampDrop rejects the payload with
// ErrTimestampUnparseable. A missing time field is accepted under both.
//
// Decoder holds no mutable state and is safe for concurrent use.
package decode
