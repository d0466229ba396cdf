package pipeline

import (
	"log/slog"
	"sync"

	"github.com/wikipulse/wikipulse/monitor/internal/decode"
	"github.com/wikipulse/wikipulse/monitor/internal/stream"
	"github.com/wikipulse/wikipulse/pkg/types"
)

// AnnotationTracker adds a chart annotation for every event of one kind.
// Events whose timestamp was absent or unparseable cannot be placed on the
// time axis and are skipped.
type AnnotationTracker struct {
	events stream.Stream[decode.Event]
	sink   AnnotationSink
	opts   options

	mu  sync.Mutex
	run *runner
}

// NewAnnotationTracker returns a stopped tracker. The kind defaults to
// decode.KindNewUser.
func NewAnnotationTracker(events stream.Stream[decode.Event], sink AnnotationSink, opts ...Option) *AnnotationTracker {
	return &AnnotationTracker{events: events, sink: sink, opts: buildOptions(decode.KindNewUser, opts)}
}

// Start subscribes to the event stream. Calling Start on a running tracker
// is a no-op.
func (t *AnnotationTracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.run != nil {
		return
	}

	r := &runner{}
	worker, presentation := t.opts.schedulers("annotations", r)

	marks := stream.Map(t.events.DeliverOn(worker).Filter(ofKind(t.opts.kind)),
		func(e decode.Event) (types.Annotation, bool) {
			if !e.HasTimestamp() {
				return types.Annotation{}, false
			}
			return types.Annotation{Kind: e.Kind, At: e.Timestamp}, true
		})
	r.sub = marks.
		DeliverOn(presentation).
		Subscribe(stream.Funcs[types.Annotation]{
			Next:  t.sink.AddAnnotation,
			Error: func(err error) { slog.Warn("pipeline: annotation stream failed", "err", err) },
		})
	t.run = r
}

// Stop unsubscribes. Stop is idempotent.
func (t *AnnotationTracker) Stop() {
	t.mu.Lock()
	r := t.run
	t.run = nil
	t.mu.Unlock()
	r.stop()
}
