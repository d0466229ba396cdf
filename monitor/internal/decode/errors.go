package decode

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by errors.Is against a *DecodeError.
var (
	ErrMalformedPayload     = errors.New("malformed payload")
	ErrTimestampUnparseable = errors.New("timestamp unparseable")
)

// DecodeError describes why one payload was rejected.
type DecodeError struct {
	// Kind is ErrMalformedPayload or ErrTimestampUnparseable.
	Kind error
	// Err is the underlying parser error, if any.
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return "decode: " + e.Kind.Error()
	}
	return fmt.Sprintf("decode: %s: %v", e.Kind, e.Err)
}

// Is matches the error's Kind.
func (e *DecodeError) Is(target error) bool { return target == e.Kind }

func (e *DecodeError) Unwrap() error { return e.Err }

// Reason returns a short label for metrics and logs.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, ErrTimestampUnparseable):
		return "timestamp_unparseable"
	default:
		return "unknown"
	}
}
