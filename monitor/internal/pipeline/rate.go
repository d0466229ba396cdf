package pipeline

import (
	"log/slog"
	"sync"
	"time"

	"github.com/wikipulse/wikipulse/monitor/internal/decode"
	"github.com/wikipulse/wikipulse/monitor/internal/stream"
	"github.com/wikipulse/wikipulse/pkg/types"
)

// Rate returns n events over window as events per second.
func Rate(n int, window time.Duration) float64 {
	if window <= 0 {
		return 0
	}
	return float64(n) / window.Seconds()
}

// RateAggregator appends one edits-per-second sample to a ChartSink for every
// window, including quiet windows (rate 0).
//
// All exported methods are safe for concurrent use.
type RateAggregator struct {
	events stream.Stream[decode.Event]
	sink   ChartSink
	opts   options

	mu  sync.Mutex
	run *runner
}

// NewRateAggregator returns a stopped aggregator over events.
func NewRateAggregator(events stream.Stream[decode.Event], sink ChartSink, opts ...Option) *RateAggregator {
	return &RateAggregator{events: events, sink: sink, opts: buildOptions("", opts)}
}

// Window returns the configured window length.
func (a *RateAggregator) Window() time.Duration { return a.opts.window }

// Start subscribes to the event stream. Calling Start on a running
// aggregator is a no-op.
func (a *RateAggregator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.run != nil {
		return
	}

	r := &runner{}
	worker, presentation := a.opts.schedulers("rate", r)
	window, clk := a.opts.window, a.opts.clock

	windows := stream.BufferByTime(a.events, window, worker, clk)
	samples := stream.Map(windows, func(w stream.Window[decode.Event]) (types.RateSample, bool) {
		return types.RateSample{Value: Rate(len(w.Items), window), At: w.End}, true
	})
	r.sub = samples.
		Tap(func(s types.RateSample) {
			slog.Debug("pipeline: rate window", "rate", s.Value, "window", window)
		}).
		DeliverOn(presentation).
		Subscribe(stream.Funcs[types.RateSample]{
			Next:      func(s types.RateSample) { a.sink.AppendRateSample(s.Value, s.At) },
			Error:     func(err error) { slog.Warn("pipeline: rate stream failed", "err", err) },
			Completed: func() { slog.Info("pipeline: rate stream completed") },
		})
	a.run = r
}

// Stop unsubscribes. A window already handed to the presentation scheduler
// may still reach the sink. Stop is idempotent.
func (a *RateAggregator) Stop() {
	a.mu.Lock()
	r := a.run
	a.run = nil
	a.mu.Unlock()
	r.stop()
}
