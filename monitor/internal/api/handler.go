package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/wikipulse/wikipulse/monitor/internal/alerts"
	"github.com/wikipulse/wikipulse/monitor/internal/security"
	"github.com/wikipulse/wikipulse/monitor/internal/store"
	"github.com/wikipulse/wikipulse/pkg/types"
)

// AlertSource lists alerts for /api/v1/alerts.
type AlertSource interface {
	Active() []alerts.Alert
	Firing() int
}

// Option configures a Handler.
type Option func(*Handler)

// WithFeedState reports the feed connection state on /api/v1/health.
func WithFeedState(fn func() string) Option {
	return func(h *Handler) { h.feedState = fn }
}

// WithStats reports feed counters on /api/v1/health.
func WithStats(fn func() Stats) Option {
	return func(h *Handler) { h.stats = fn }
}

// WithAlerts serves /api/v1/alerts from src.
func WithAlerts(src AlertSource) Option {
	return func(h *Handler) { h.alerts = src }
}

// WithCertStatus reports the feed certificate on /api/v1/health.
func WithCertStatus(fn func() *security.CertStatus) Option {
	return func(h *Handler) { h.certStatus = fn }
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store     *store.Store
	feedState func() string
	stats     func() Stats
	alerts    AlertSource
	mux       *http.ServeMux

	certStatus func() *security.CertStatus
}

// New creates a Handler reading from st and registers all routes.
func New(st *store.Store, opts ...Option) http.Handler {
	h := &Handler{
		store:     st,
		feedState: func() string { return "unknown" },
		stats:     func() Stats { return Stats{} },
		mux:       http.NewServeMux(),
	}
	for _, o := range opts {
		o(h)
	}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/rates", h.rates)
	h.mux.HandleFunc("/api/v1/ticker", h.ticker)
	h.mux.HandleFunc("/api/v1/annotations", h.annotations)
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.HandleFunc("/api/v1/diagnostics", h.diagnostics)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	st := h.stats()
	resp := HealthResponse{
		FeedState:        h.feedState(),
		SampleCount:      len(h.store.Rates()),
		AnnotationCount:  len(h.store.Annotations()),
		MessagesReceived: st.MessagesReceived,
		EventsEmitted:    st.EventsEmitted,
		DecodeFailures:   st.DecodeFailures,
		GeneratedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	if latest, ok := h.store.Latest(); ok {
		v := latest.Value
		resp.Rate = &v
	}
	if h.alerts != nil {
		resp.AlertCount = h.alerts.Firing()
	}
	if h.certStatus != nil {
		resp.FeedTLS = h.certStatus()
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) rates(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, toRatePoints(h.store.Rates()))
}

func (h *Handler) ticker(w http.ResponseWriter, _ *http.Request) {
	tk, ok := h.store.Ticker()
	if !ok {
		jsonErr(w, http.StatusNotFound, "no ticker text yet")
		return
	}
	jsonResp(w, http.StatusOK, toTickerResponse(tk))
}

func (h *Handler) annotations(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, toAnnotationResponses(h.store.Annotations()))
}

func (h *Handler) listAlerts(w http.ResponseWriter, _ *http.Request) {
	resp := AlertsResponse{Alerts: []alerts.Alert{}}
	if h.alerts != nil {
		resp.Alerts = h.alerts.Active()
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) diagnostics(w http.ResponseWriter, _ *http.Request) {
	in := diagnosticInput{
		FeedState:   h.feedState(),
		Stats:       h.stats(),
		SampleCount: len(h.store.Rates()),
	}
	if latest, ok := h.store.Latest(); ok {
		v := latest.Value
		in.Rate = &v
	}
	if h.alerts != nil {
		in.Firing = h.alerts.Firing()
	}
	if h.certStatus != nil {
		in.Cert = h.certStatus()
	}
	jsonResp(w, http.StatusOK, DiagnosticsResponse{
		Hints:       computeDiagnostics(in),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) snapshot(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store))
}

// BuildSnapshot assembles the full display state from st.
func BuildSnapshot(st *store.Store) SnapshotResponse {
	resp := SnapshotResponse{
		Rates:       toRatePoints(st.Rates()),
		Annotations: toAnnotationResponses(st.Annotations()),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if tk, ok := st.Ticker(); ok {
		t := toTickerResponse(tk)
		resp.Ticker = &t
	}
	return resp
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// ToRatePoint maps a sample to its JSON representation.
func ToRatePoint(s types.RateSample) RatePoint {
	return RatePoint{Value: s.Value, At: formatTime(s.At)}
}

// ToAnnotationResponse maps an annotation to its JSON representation.
func ToAnnotationResponse(a types.Annotation) AnnotationResponse {
	return AnnotationResponse{Kind: a.Kind, At: formatTime(a.At)}
}

func toRatePoints(in []types.RateSample) []RatePoint {
	out := make([]RatePoint, 0, len(in))
	for _, s := range in {
		out = append(out, ToRatePoint(s))
	}
	return out
}

func toTickerResponse(tk types.TickerUpdate) TickerResponse {
	return TickerResponse{Text: tk.Text, UpdatedAt: formatTime(tk.UpdatedAt)}
}

func toAnnotationResponses(in []types.Annotation) []AnnotationResponse {
	out := make([]AnnotationResponse, 0, len(in))
	for _, a := range in {
		out = append(out, ToAnnotationResponse(a))
	}
	return out
}
