package feed

import "errors"

// ErrConnectionClosed is returned by Start once the connection has
// terminated.
var ErrConnectionClosed = errors.New("feed: connection closed")

// ConnectionError is the terminal error delivered to subscribers when the
// transport fails.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return "feed: connection failed"
	}
	return "feed: connection failed: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Err }
