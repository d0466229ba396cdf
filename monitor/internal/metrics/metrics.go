package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "wikipulse"

// Metric family names as exposed.
const (
	MessagesReceived = namespace + "_messages_received_total"
	DecodeFailures   = namespace + "_decode_failures_total"
	EventsEmitted    = namespace + "_events_emitted_total"
	WindowsEmitted   = namespace + "_windows_emitted_total"
	EditRate         = namespace + "_edit_rate"
	WSClients        = namespace + "_ws_clients"
	FeedState        = namespace + "_feed_state"
)

// feedStates are the label values of the feed_state gauge.
var feedStates = []string{"idle", "open", "closed", "failed"}

// Metrics holds the monitor's collectors and their registry.
//
// All methods are safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	received prometheus.Counter
	failures *prometheus.CounterVec
	emitted  prometheus.Counter
	windows  prometheus.Counter
	rate     prometheus.Gauge
	state    *prometheus.GaugeVec
}

// New creates and registers all collectors on a private registry, together
// with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Raw messages received from the feed.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "Messages dropped because they could not be decoded.",
		}, []string{"reason"}),
		emitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Decoded events delivered to subscribers.",
		}),
		windows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_emitted_total",
			Help:      "Rate windows delivered to the display.",
		}),
		rate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "edit_rate",
			Help:      "Edits per second in the most recent window.",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_state",
			Help:      "1 for the feed connection's current state, 0 otherwise.",
		}, []string{"state"}),
	}
	m.registry.MustRegister(
		m.received, m.failures, m.emitted, m.windows, m.rate, m.state,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.StateChanged("idle")
	return m
}

// WatchClients registers the ws_clients gauge, read from fn at scrape time.
func (m *Metrics) WatchClients(fn func() int) error {
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_clients",
		Help:      "Connected WebSocket display clients.",
	}, func() float64 { return float64(fn()) })
	if err := m.registry.Register(g); err != nil {
		return fmt.Errorf("metrics: register ws_clients: %w", err)
	}
	return nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// MessageReceived implements feed.Recorder.
func (m *Metrics) MessageReceived() { m.received.Inc() }

// DecodeFailed implements feed.Recorder.
func (m *Metrics) DecodeFailed(reason string) { m.failures.WithLabelValues(reason).Inc() }

// EventEmitted implements feed.Recorder.
func (m *Metrics) EventEmitted() { m.emitted.Inc() }

// StateChanged implements feed.Recorder.
func (m *Metrics) StateChanged(state string) {
	for _, s := range feedStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(s).Set(v)
	}
}

// AppendRateSample implements pipeline.ChartSink.
func (m *Metrics) AppendRateSample(value float64, _ time.Time) {
	m.windows.Inc()
	m.rate.Set(value)
}

// Counts is a point-in-time read of the feed counters.
type Counts struct {
	MessagesReceived uint64
	EventsEmitted    uint64
	DecodeFailures   uint64
	WindowsEmitted   uint64
	EditRate         float64
	FeedState        string
}

// Snapshot gathers the registry and reads the feed counters back.
func (m *Metrics) Snapshot() (Counts, error) {
	mfs, err := m.registry.Gather()
	if err != nil {
		return Counts{}, fmt.Errorf("metrics: gather: %w", err)
	}
	byName := make(map[string]*dto.MetricFamily, len(mfs))
	for _, mf := range mfs {
		byName[mf.GetName()] = mf
	}
	return Counts{
		MessagesReceived: uint64(sumFamily(byName[MessagesReceived])),
		EventsEmitted:    uint64(sumFamily(byName[EventsEmitted])),
		DecodeFailures:   uint64(sumFamily(byName[DecodeFailures])),
		WindowsEmitted:   uint64(sumFamily(byName[WindowsEmitted])),
		EditRate:         sumFamily(byName[EditRate]),
		FeedState:        activeLabel(byName[FeedState], "state"),
	}, nil
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
// Returns 0 if mf is nil.
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		}
	}
	return total
}

// activeLabel returns the value of label on the first series set to 1.
func activeLabel(mf *dto.MetricFamily, label string) string {
	if mf == nil {
		return ""
	}
	for _, m := range mf.GetMetric() {
		if m.GetGauge().GetValue() != 1 {
			continue
		}
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				return lp.GetValue()
			}
		}
	}
	return ""
}
