package feed

import "context"

// SignalKind identifies what a transport is reporting.
type SignalKind int

const (
	// SignalMessage carries one raw text payload.
	SignalMessage SignalKind = iota
	// SignalFailed reports a transport error. It is terminal.
	SignalFailed
	// SignalClosed reports a graceful close. It is terminal.
	SignalClosed
)

func (k SignalKind) String() string {
	switch k {
	case SignalMessage:
		return "message"
	case SignalFailed:
		return "failed"
	case SignalClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Signal is one notification from a transport.
type Signal struct {
	Kind    SignalKind
	Payload []byte
	Err     error
}

// Message wraps a received payload. The transport must not reuse payload.
func Message(payload []byte) Signal { return Signal{Kind: SignalMessage, Payload: payload} }

// Failed reports a transport error.
func Failed(err error) Signal { return Signal{Kind: SignalFailed, Err: err} }

// Closed reports a graceful close.
func Closed() Signal { return Signal{Kind: SignalClosed} }

// Inbox accepts signals from a transport. Post never blocks.
type Inbox interface {
	Post(Signal)
}

// InboxFunc adapts a function to Inbox.
type InboxFunc func(Signal)

// Post calls f(s).
func (f InboxFunc) Post(s Signal) { f(s) }

// Transport is a connection to a feed endpoint.
type Transport interface {
	// Connect starts connecting and returns immediately. The transport then
	// posts messages to inbox, followed by exactly one SignalFailed or
	// SignalClosed.
	Connect(ctx context.Context, inbox Inbox)
	// Close starts a graceful shutdown. The transport reports it with
	// SignalClosed.
	Close() error
}
