package pipeline

import (
	"time"

	"github.com/wikipulse/wikipulse/monitor/internal/decode"
	"github.com/wikipulse/wikipulse/monitor/internal/stream"
)

// DefaultWindow is the rate aggregation window.
const DefaultWindow = 5 * time.Second

type options struct {
	window       time.Duration
	worker       stream.Scheduler
	presentation stream.Scheduler
	clock        stream.Clock
	kind         string
}

// Option configures a pipeline. Options that do not apply to a pipeline are
// ignored by it.
type Option func(*options)

// WithWindow sets the rate window. Non-positive values are ignored.
func WithWindow(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.window = d
		}
	}
}

// WithWorker sets the scheduler that buffering and mapping run on. When
// unset the pipeline starts a private SerialQueue.
func WithWorker(s stream.Scheduler) Option {
	return func(o *options) { o.worker = s }
}

// WithPresentation sets the scheduler sinks are called on. When unset the
// pipeline starts a private SerialQueue.
func WithPresentation(s stream.Scheduler) Option {
	return func(o *options) { o.presentation = s }
}

// WithClock replaces stream.SystemClock.
func WithClock(c stream.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithKind sets the event kind a ContentTicker or AnnotationTracker selects.
func WithKind(kind string) Option {
	return func(o *options) { o.kind = kind }
}

func buildOptions(defaultKind string, opts []Option) options {
	o := options{window: DefaultWindow, clock: stream.SystemClock, kind: defaultKind}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// runner holds one started chain and the queues it owns.
type runner struct {
	sub   *stream.Subscription
	owned []*stream.SerialQueue
}

// schedulers returns the worker and presentation schedulers for one run,
// creating private queues for whichever were not configured.
func (o options) schedulers(name string, r *runner) (worker, presentation stream.Scheduler) {
	worker, presentation = o.worker, o.presentation
	if worker == nil {
		q := stream.NewSerialQueue(name + "-worker")
		r.owned = append(r.owned, q)
		worker = q
	}
	if presentation == nil {
		q := stream.NewSerialQueue(name + "-presentation")
		r.owned = append(r.owned, q)
		presentation = q
	}
	return worker, presentation
}

func (r *runner) stop() {
	if r == nil {
		return
	}
	r.sub.Unsubscribe()
	for _, q := range r.owned {
		q.Close()
	}
}

func ofKind(kind string) func(decode.Event) bool {
	return func(e decode.Event) bool { return e.Kind == kind }
}
