package decode

import (
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

// TimeLayout is the feed's timestamp format: millisecond precision and a
// numeric UTC offset, e.g. 2014-06-25T10:15:30.123+0000.
const TimeLayout = "2006-01-02T15:04:05.000-0700"

// Well-known event kinds. The feed may send others.
const (
	KindUnspecified = "unspecified"
	KindNewUser     = "newuser"
)

// Event is one decoded feed message. It is a value type: each subscriber
// works on its own copy.
type Event struct {
	Kind       string
	Content    string
	HasContent bool
	// Timestamp is zero when the message carried no usable time.
	Timestamp time.Time
}

// HasTimestamp reports whether the event carries a parsed time.
func (e Event) HasTimestamp() bool { return !e.Timestamp.IsZero() }

// TimestampPolicy decides what an unparseable time field does to a payload.
type TimestampPolicy int

const (
	// TimestampKeep emits the event with a zero Timestamp.
	TimestampKeep TimestampPolicy = iota
	// TimestampDrop rejects the payload with ErrTimestampUnparseable.
	TimestampDrop
)

func (p TimestampPolicy) String() string {
	switch p {
	case TimestampKeep:
		return "keep"
	case TimestampDrop:
		return "drop"
	default:
		return "unknown"
	}
}

// ParsePolicy maps a config value ("keep", "drop" or empty) to a policy.
func ParsePolicy(s string) (TimestampPolicy, error) {
	switch s {
	case "", "keep":
		return TimestampKeep, nil
	case "drop":
		return TimestampDrop, nil
	default:
		return TimestampKeep, fmt.Errorf("decode: unknown timestamp policy %q", s)
	}
}

// Decoder parses raw payloads into Events.
type Decoder struct {
	policy TimestampPolicy
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithTimestampPolicy sets how unparseable timestamps are handled.
func WithTimestampPolicy(p TimestampPolicy) Option {
	return func(d *Decoder) { d.policy = p }
}

// New returns a Decoder. The default policy is TimestampKeep.
func New(opts ...Option) *Decoder {
	d := &Decoder{policy: TimestampKeep}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Policy returns the decoder's timestamp policy.
func (d *Decoder) Policy() TimestampPolicy { return d.policy }

// Decode parses one payload. It returns a *DecodeError when the payload is
// not a JSON object, or when its time field is unparseable under
// TimestampDrop.
func (d *Decoder) Decode(raw []byte) (Event, error) {
	var doc map[string]any
	if err := sonic.ConfigStd.Unmarshal(raw, &doc); err != nil {
		return Event{}, &DecodeError{Kind: ErrMalformedPayload, Err: err}
	}
	if doc == nil {
		return Event{}, &DecodeError{Kind: ErrMalformedPayload, Err: errors.New("payload is not an object")}
	}

	var ev Event
	ev.Kind, _ = doc["type"].(string)
	ev.Content, ev.HasContent = doc["content"].(string)

	tv, present := doc["time"]
	if !present || tv == nil {
		return ev, nil
	}
	ts, err := parseTime(tv)
	if err != nil {
		if d.policy == TimestampDrop {
			return Event{}, &DecodeError{Kind: ErrTimestampUnparseable, Err: err}
		}
		return ev, nil
	}
	ev.Timestamp = ts
	return ev, nil
}

// parseTime parses the time field, which must be a TimeLayout string.
func parseTime(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("time field is %T, not a string", v)
	}
	return time.Parse(TimeLayout, s)
}
