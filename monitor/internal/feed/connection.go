package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/wikipulse/wikipulse/monitor/internal/decode"
	"github.com/wikipulse/wikipulse/monitor/internal/stream"
)

// State is the lifecycle state of a Connection.
type State int32

const (
	StateIdle State = iota
	StateOpen
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is Closed or Failed.
func (s State) Terminal() bool { return s == StateClosed || s == StateFailed }

// Recorder receives connection telemetry. Implementations must be safe for
// concurrent use.
type Recorder interface {
	MessageReceived()
	DecodeFailed(reason string)
	EventEmitted()
	StateChanged(state string)
}

type nopRecorder struct{}

func (nopRecorder) MessageReceived()    {}
func (nopRecorder) DecodeFailed(string) {}
func (nopRecorder) EventEmitted()       {}
func (nopRecorder) StateChanged(string) {}

// Option configures a Connection.
type Option func(*Connection)

// WithWorker runs decoding and dispatch on sched instead of a private
// SerialQueue. sched must run tasks one at a time in order.
func WithWorker(sched stream.Scheduler) Option {
	return func(c *Connection) { c.worker = sched }
}

// WithRecorder attaches a telemetry recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Connection) { c.rec = r }
}

// Connection manages one transport's lifecycle and exposes its decoded
// messages as a multicast stream.
//
// All exported methods are safe for concurrent use.
type Connection struct {
	transport Transport
	decoder   *decode.Decoder
	worker    stream.Scheduler
	ownQueue  *stream.SerialQueue
	rec       Recorder
	subject   *stream.Subject[decode.Event]

	mu    sync.Mutex
	state State
}

// NewConnection returns an Idle connection over t.
func NewConnection(t Transport, dec *decode.Decoder, opts ...Option) *Connection {
	c := &Connection{
		transport: t,
		decoder:   dec,
		rec:       nopRecorder{},
		subject:   stream.NewSubject[decode.Event](),
	}
	for _, o := range opts {
		o(c)
	}
	if c.worker == nil {
		c.ownQueue = stream.NewSerialQueue("feed-worker")
		c.worker = c.ownQueue
	}
	return c
}

// Events returns the stream of decoded events. It may be subscribed any
// number of times, before or after Start.
func (c *Connection) Events() stream.Stream[decode.Event] {
	return c.subject.Stream()
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start opens the transport. It returns immediately; the connection may not
// be established yet. Start on an Open connection is a no-op, and on a
// terminated one returns ErrConnectionClosed.
func (c *Connection) Start(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.state == StateOpen:
		c.mu.Unlock()
		return nil
	case c.state.Terminal():
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	c.setStateLocked(StateOpen)
	c.mu.Unlock()

	slog.Info("feed: connecting")
	c.transport.Connect(ctx, InboxFunc(c.post))
	return nil
}

// Stop moves the connection to Closed and asks the transport to shut down.
// Subscribers receive completion after any messages already received. Stop
// is idempotent.
func (c *Connection) Stop() error {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return nil
	}
	wasOpen := c.state == StateOpen
	c.setStateLocked(StateClosed)
	c.mu.Unlock()

	var err error
	if wasOpen {
		err = c.transport.Close()
	}
	c.worker.Schedule(func() { c.terminate(nil) })
	return err
}

// post is the Inbox handed to the transport.
func (c *Connection) post(sig Signal) {
	c.worker.Schedule(func() { c.handle(sig) })
}

func (c *Connection) handle(sig Signal) {
	switch sig.Kind {
	case SignalMessage:
		c.rec.MessageReceived()
		ev, err := c.decoder.Decode(sig.Payload)
		if err != nil {
			reason := decode.Reason(err)
			slog.Warn("feed: dropping undecodable message",
				"reason", reason, "bytes", len(sig.Payload), "err", err)
			c.rec.DecodeFailed(reason)
			return
		}
		if c.subject.Terminated() {
			return
		}
		c.subject.Next(ev)
		c.rec.EventEmitted()

	case SignalFailed:
		if c.transition(StateFailed) {
			c.terminate(&ConnectionError{Err: sig.Err})
		}

	case SignalClosed:
		if c.transition(StateClosed) {
			c.terminate(nil)
		}
	}
}

// transition moves an Open connection to a terminal state. It reports false
// if the connection had already terminated, e.g. through Stop.
func (c *Connection) transition(to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Terminal() {
		return false
	}
	c.setStateLocked(to)
	return true
}

// terminate signals subscribers. It runs on the worker.
func (c *Connection) terminate(err error) {
	var done bool
	if err != nil {
		done = c.subject.Error(err)
	} else {
		done = c.subject.Complete()
	}
	if !done {
		return
	}
	if err != nil {
		slog.Error("feed: connection failed", "err", err)
	} else {
		slog.Info("feed: connection closed")
	}
	if c.ownQueue != nil {
		c.ownQueue.Close()
	}
}

func (c *Connection) setStateLocked(s State) {
	c.state = s
	c.rec.StateChanged(s.String())
}
