package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Valid(t *testing.T) {
	yaml := `
monitor:
  feed_url: "wss://feed.example.org/stream"
  window: 10s
  ticker_kind: edit
  annotation_kind: signup
  timestamp_policy: drop
  log_level: debug
  http_port: 9090
  retention: 30m
  max_annotations: 50
  alerts:
    rules:
      - name: edit-storm
        condition: "rate > 10"
        severity: critical
        cooldown: 1m
    webhooks:
      - type: slack
        url_env: SLACK_URL
  nats:
    url: "nats://127.0.0.1:4222"
    subject_prefix: wiki
`
	cfg := loadFromString(t, yaml)
	m := cfg.Monitor

	if m.FeedURL != "wss://feed.example.org/stream" {
		t.Errorf("feed_url: got %q", m.FeedURL)
	}
	if m.Window != 10*time.Second {
		t.Errorf("window: got %v", m.Window)
	}
	if m.TickerKind != "edit" || m.AnnotationKind != "signup" {
		t.Errorf("kinds: got %q / %q", m.TickerKind, m.AnnotationKind)
	}
	if m.TimestampPolicy != "drop" {
		t.Errorf("timestamp_policy: got %q", m.TimestampPolicy)
	}
	if m.Level() != slog.LevelDebug {
		t.Errorf("Level(): got %v, want debug", m.Level())
	}
	if m.HTTPPort != 9090 || m.Retention != 30*time.Minute || m.MaxAnnotations != 50 {
		t.Errorf("port/retention/max: got %d / %v / %d", m.HTTPPort, m.Retention, m.MaxAnnotations)
	}
	if len(m.Alerts.Rules) != 1 || m.Alerts.Rules[0].Cooldown != time.Minute {
		t.Fatalf("alerts.rules: got %+v", m.Alerts.Rules)
	}
	if !m.NATS.Enabled() || m.NATS.SubjectPrefix != "wiki" {
		t.Errorf("nats: got %+v", m.NATS)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, "monitor: {}\n")
	m := cfg.Monitor

	if m.FeedURL != DefaultFeedURL {
		t.Errorf("default feed_url: got %q", m.FeedURL)
	}
	if m.Window != DefaultWindow {
		t.Errorf("default window: got %v, want %v", m.Window, DefaultWindow)
	}
	if m.TickerKind != DefaultTickerKind || m.AnnotationKind != DefaultAnnotationKind {
		t.Errorf("default kinds: got %q / %q", m.TickerKind, m.AnnotationKind)
	}
	if m.HTTPPort != DefaultHTTPPort {
		t.Errorf("default http_port: got %d", m.HTTPPort)
	}
	if m.Retention != DefaultRetention || m.MaxAnnotations != DefaultMaxAnnotations {
		t.Errorf("default retention/max: got %v / %d", m.Retention, m.MaxAnnotations)
	}
	if m.NATS.Enabled() {
		t.Error("NATS enabled by default")
	}
	if m.Level() != slog.LevelInfo {
		t.Errorf("default level: got %v", m.Level())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"http feed url", "monitor:\n  feed_url: http://example.org\n", "feed_url"},
		{"zero window", "monitor:\n  window: 0s\n", "window"},
		{"bad policy", "monitor:\n  timestamp_policy: guess\n", "timestamp_policy"},
		{"bad level", "monitor:\n  log_level: loud\n", "log_level"},
		{"bad port", "monitor:\n  http_port: 70000\n", "http_port"},
		{"retention below window", "monitor:\n  window: 1m\n  retention: 30s\n", "retention"},
		{"rule without name", "monitor:\n  alerts:\n    rules:\n      - condition: \"rate > 1\"\n", "name is required"},
		{"rule severity", "monitor:\n  alerts:\n    rules:\n      - name: x\n        condition: \"rate > 1\"\n        severity: page\n", "severity"},
		{"webhook type", "monitor:\n  alerts:\n    webhooks:\n      - type: pager\n", "webhooks"},
		{"auth mode", "monitor:\n  auth:\n    mode: mtls\n", "auth.mode"},
		{"broken yaml", "monitor: [", "parse yaml"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadStringErr(t, tc.yaml)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestAuthConfig_KeyAndHeader(t *testing.T) {
	t.Setenv("WIKIPULSE_KEY", "s3cret")
	a := AuthConfig{Mode: "apikey", KeyEnv: "WIKIPULSE_KEY"}
	if got := a.Key(); got != "s3cret" {
		t.Errorf("Key(): got %q", got)
	}
	if got := a.EffectiveHeader(); got != "x-api-key" {
		t.Errorf("EffectiveHeader(): got %q, want x-api-key", got)
	}
	a.Header = "x-wiki-token"
	if got := a.EffectiveHeader(); got != "x-wiki-token" {
		t.Errorf("EffectiveHeader(): got %q", got)
	}
	if got := (AuthConfig{}).Key(); got != "" {
		t.Errorf("Key() with no KeyEnv: got %q, want empty", got)
	}
}

func TestWebhookConfig_URL(t *testing.T) {
	t.Setenv("TEAMS_URL", "https://teams.example.com/webhook")
	w := WebhookConfig{Type: "teams", URLEnv: "TEAMS_URL"}
	if got := w.URL(); got != "https://teams.example.com/webhook" {
		t.Errorf("URL(): got %q", got)
	}
	if got := (WebhookConfig{Type: "http"}).URL(); got != "" {
		t.Errorf("URL() with no URLEnv: got %q, want empty", got)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "monitor:\n  log_level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 64)
	errc := make(chan error, 1)
	go func() { errc <- Watch(ctx, path, func(c *Config) { got <- c }) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	// The invalid write is logged and skipped; the valid one is delivered.
	writeFile(t, path, "monitor: [")
	writeFile(t, path, "monitor:\n  log_level: debug\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-got:
			if c.Monitor.Level() == slog.LevelDebug {
				cancel()
				if err := <-errc; err != nil {
					t.Errorf("Watch returned %v", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("no reload with log_level debug observed")
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// loadFromString writes yaml to a temp file and calls Load, failing on error.
func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

// loadStringErr writes yaml to a temp file and calls Load, returning any error.
func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, content)
	return Load(path)
}
