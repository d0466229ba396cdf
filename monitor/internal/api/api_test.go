package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wikipulse/wikipulse/monitor/internal/alerts"
	"github.com/wikipulse/wikipulse/monitor/internal/api"
	"github.com/wikipulse/wikipulse/monitor/internal/config"
	"github.com/wikipulse/wikipulse/monitor/internal/security"
	"github.com/wikipulse/wikipulse/monitor/internal/store"
	"github.com/wikipulse/wikipulse/pkg/types"
)

// --- test helpers -----------------------------------------------------------

func newStore(rates ...float64) *store.Store {
	st := store.New(10*time.Minute, 10)
	base := time.Now().Add(-time.Duration(len(rates)) * 5 * time.Second)
	for i, v := range rates {
		st.AppendRateSample(v, base.Add(time.Duration(i)*5*time.Second))
	}
	return st
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_EmptyStore(t *testing.T) {
	h := api.New(newStore())
	rr := get(t, h, "/api/v1/health")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp map[string]any
	decode(t, rr, &resp)

	if resp["feed_state"] != "unknown" {
		t.Errorf("feed_state: got %v, want unknown", resp["feed_state"])
	}
	if _, ok := resp["rate"]; ok {
		t.Errorf("rate present before the first sample: %v", resp["rate"])
	}
	if resp["sample_count"].(float64) != 0 {
		t.Errorf("sample_count: got %v, want 0", resp["sample_count"])
	}
}

func TestHealth_WithStateStatsAndAlerts(t *testing.T) {
	eng, err := alerts.New(config.AlertsConfig{Rules: []config.AlertRule{{Name: "storm", Condition: "rate > 1"}}})
	if err != nil {
		t.Fatalf("alerts.New: %v", err)
	}
	eng.Evaluate(4)

	h := api.New(newStore(0.4, 2.0),
		api.WithFeedState(func() string { return "open" }),
		api.WithStats(func() api.Stats {
			return api.Stats{MessagesReceived: 12, EventsEmitted: 11, DecodeFailures: 1}
		}),
		api.WithAlerts(eng),
	)
	var resp api.HealthResponse
	decode(t, get(t, h, "/api/v1/health"), &resp)

	if resp.FeedState != "open" {
		t.Errorf("feed_state: got %q", resp.FeedState)
	}
	if resp.Rate == nil || *resp.Rate != 2.0 {
		t.Errorf("rate: got %v, want 2", resp.Rate)
	}
	if resp.SampleCount != 2 {
		t.Errorf("sample_count: got %d, want 2", resp.SampleCount)
	}
	if resp.MessagesReceived != 12 || resp.EventsEmitted != 11 || resp.DecodeFailures != 1 {
		t.Errorf("counters: got %+v", resp)
	}
	if resp.AlertCount != 1 {
		t.Errorf("alert_count: got %d, want 1", resp.AlertCount)
	}
}

func TestHealth_FeedTLS(t *testing.T) {
	h := api.New(newStore())
	var resp map[string]any
	decode(t, get(t, h, "/api/v1/health"), &resp)
	if _, ok := resp["feed_tls"]; ok {
		t.Errorf("feed_tls present without a cert source: %v", resp["feed_tls"])
	}

	h = api.New(newStore(), api.WithCertStatus(func() *security.CertStatus {
		return &security.CertStatus{Endpoint: "wss://feed.example.org/", Status: "expiring", DaysLeft: 12}
	}))
	var typed api.HealthResponse
	decode(t, get(t, h, "/api/v1/health"), &typed)
	if typed.FeedTLS == nil || typed.FeedTLS.Status != "expiring" || typed.FeedTLS.DaysLeft != 12 {
		t.Errorf("feed_tls: got %+v", typed.FeedTLS)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := api.New(newStore())
	for _, path := range []string{"/api/v1/health", "/api/v1/rates", "/api/v1/snapshot"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: got %d, want 405", path, rr.Code)
		}
	}
}

// --- /api/v1/rates ----------------------------------------------------------

func TestRates_OrderedOldestFirst(t *testing.T) {
	h := api.New(newStore(0, 0.6, 2.0))
	var resp []api.RatePoint
	decode(t, get(t, h, "/api/v1/rates"), &resp)

	if len(resp) != 3 {
		t.Fatalf("rates: got %d, want 3", len(resp))
	}
	for i, want := range []float64{0, 0.6, 2.0} {
		if resp[i].Value != want {
			t.Errorf("rates[%d]: got %v, want %v", i, resp[i].Value, want)
		}
		if _, err := time.Parse(time.RFC3339Nano, resp[i].At); err != nil {
			t.Errorf("rates[%d].at: %v", i, err)
		}
	}
}

func TestRates_EmptyIsArray(t *testing.T) {
	rr := get(t, api.New(newStore()), "/api/v1/rates")
	if body := rr.Body.String(); body != "[]\n" {
		t.Errorf("body: got %q, want []", body)
	}
}

// --- /api/v1/ticker ---------------------------------------------------------

func TestTicker_NotFoundBeforeFirstText(t *testing.T) {
	rr := get(t, api.New(newStore()), "/api/v1/ticker")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}

func TestTicker_Latest(t *testing.T) {
	st := newStore()
	st.SetDisplayText("Main Page")
	st.SetDisplayText("Go (programming language)")

	var resp api.TickerResponse
	decode(t, get(t, api.New(st), "/api/v1/ticker"), &resp)
	if resp.Text != "Go (programming language)" {
		t.Errorf("text: got %q", resp.Text)
	}
}

// --- /api/v1/annotations ----------------------------------------------------

func TestAnnotations(t *testing.T) {
	st := newStore()
	at := time.Date(2014, 6, 25, 10, 15, 30, 0, time.UTC)
	st.AddAnnotation(types.Annotation{Kind: "newuser", At: at})

	var resp []api.AnnotationResponse
	decode(t, get(t, api.New(st), "/api/v1/annotations"), &resp)
	if len(resp) != 1 || resp[0].Kind != "newuser" || resp[0].At != "2014-06-25T10:15:30Z" {
		t.Errorf("annotations: got %+v", resp)
	}
}

// --- /api/v1/alerts ---------------------------------------------------------

func TestAlerts_EmptyWithoutEngine(t *testing.T) {
	var resp api.AlertsResponse
	decode(t, get(t, api.New(newStore()), "/api/v1/alerts"), &resp)
	if resp.Alerts == nil || len(resp.Alerts) != 0 {
		t.Errorf("alerts: got %#v, want empty list", resp.Alerts)
	}
}

// --- /api/v1/snapshot -------------------------------------------------------

func TestSnapshot(t *testing.T) {
	st := newStore(1.2)
	st.SetDisplayText("Sandbox")

	var resp api.SnapshotResponse
	decode(t, get(t, api.New(st), "/api/v1/snapshot"), &resp)

	if len(resp.Rates) != 1 || resp.Rates[0].Value != 1.2 {
		t.Errorf("rates: got %+v", resp.Rates)
	}
	if resp.Ticker == nil || resp.Ticker.Text != "Sandbox" {
		t.Errorf("ticker: got %+v", resp.Ticker)
	}
	if resp.Annotations == nil {
		t.Error("annotations: got null, want []")
	}
	if resp.GeneratedAt == "" {
		t.Error("generated_at: missing")
	}
}

// --- /api/v1/diagnostics ----------------------------------------------------

func TestDiagnostics_Endpoint(t *testing.T) {
	h := api.New(newStore(1.2),
		api.WithFeedState(func() string { return "failed" }),
	)
	var resp api.DiagnosticsResponse
	decode(t, get(t, h, "/api/v1/diagnostics"), &resp)

	if len(resp.Hints) == 0 {
		t.Fatal("hints: got none")
	}
	if resp.Hints[0].Key != "feed_failed" || resp.Hints[0].Level != "critical" {
		t.Errorf("first hint: got %+v", resp.Hints[0])
	}
	if resp.GeneratedAt == "" {
		t.Error("generated_at: missing")
	}
}
