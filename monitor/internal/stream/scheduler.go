package stream

import (
	"log/slog"
	"sync"
)

// Scheduler runs work on an execution context. Schedule must not block the
// caller on the work itself.
type Scheduler interface {
	Schedule(fn func())
}

// SchedulerFunc adapts a plain function to the Scheduler interface.
type SchedulerFunc func(fn func())

// Schedule calls f(fn).
func (f SchedulerFunc) Schedule(fn func()) { f(fn) }

// Immediate runs scheduled work inline on the caller's goroutine.
var Immediate Scheduler = SchedulerFunc(func(fn func()) { fn() })

// SerialQueue is an unbounded FIFO executed by a single goroutine. Work is
// run in submission order, one item at a time. Schedule never blocks.
type SerialQueue struct {
	name string

	mu     sync.Mutex
	tasks  []func()
	closed bool

	wake chan struct{}
	done chan struct{}
}

// NewSerialQueue starts a queue. name is used in logs only.
func NewSerialQueue(name string) *SerialQueue {
	q := &SerialQueue{
		name: name,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

// Name returns the name the queue was created with.
func (q *SerialQueue) Name() string { return q.name }

// Schedule appends fn to the queue. Work scheduled after Close is discarded.
func (q *SerialQueue) Schedule(fn func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()
	q.signal()
}

// Close stops accepting work. Work already queued still runs; Done is closed
// once it has drained.
func (q *SerialQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Done is closed after Close once every queued task has run.
func (q *SerialQueue) Done() <-chan struct{} { return q.done }

// Len reports the number of tasks waiting to run.
func (q *SerialQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *SerialQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *SerialQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		batch := q.tasks
		q.tasks = nil
		closed := q.closed
		q.mu.Unlock()

		for _, fn := range batch {
			q.exec(fn)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-q.wake
	}
}

func (q *SerialQueue) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("stream: scheduled task panicked", "queue", q.name, "panic", r)
		}
	}()
	fn()
}
