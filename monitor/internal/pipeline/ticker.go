package pipeline

import (
	"log/slog"
	"sync"

	"github.com/wikipulse/wikipulse/monitor/internal/decode"
	"github.com/wikipulse/wikipulse/monitor/internal/stream"
)

// ContentTicker sets a LabelSink's text to the content of every event of
// one kind. Events of that kind without content are skipped.
type ContentTicker struct {
	events stream.Stream[decode.Event]
	sink   LabelSink
	opts   options

	mu  sync.Mutex
	run *runner
}

// NewContentTicker returns a stopped ticker. The kind defaults to
// decode.KindUnspecified.
func NewContentTicker(events stream.Stream[decode.Event], sink LabelSink, opts ...Option) *ContentTicker {
	return &ContentTicker{events: events, sink: sink, opts: buildOptions(decode.KindUnspecified, opts)}
}

// Start subscribes to the event stream. Calling Start on a running ticker
// is a no-op.
func (t *ContentTicker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.run != nil {
		return
	}

	r := &runner{}
	worker, presentation := t.opts.schedulers("ticker", r)

	content := stream.Map(t.events.DeliverOn(worker).Filter(ofKind(t.opts.kind)),
		func(e decode.Event) (string, bool) { return e.Content, e.HasContent })
	r.sub = content.
		DeliverOn(presentation).
		Subscribe(stream.Funcs[string]{
			Next:  t.sink.SetDisplayText,
			Error: func(err error) { slog.Warn("pipeline: ticker stream failed", "err", err) },
		})
	t.run = r
}

// Stop unsubscribes. Stop is idempotent.
func (t *ContentTicker) Stop() {
	t.mu.Lock()
	r := t.run
	t.run = nil
	t.mu.Unlock()
	r.stop()
}
