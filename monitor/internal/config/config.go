package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultFeedURL        = "ws://wiki-update-sockets.herokuapp.com/"
	DefaultWindow         = 5 * time.Second
	DefaultTickerKind     = "unspecified"
	DefaultAnnotationKind = "newuser"
	DefaultHTTPPort       = 8080
	DefaultRetention      = 10 * time.Minute
	DefaultMaxAnnotations = 200
	DefaultSubjectPrefix  = "wikipulse"
)

// Config is the top-level configuration. Fields map 1:1 to
// config.example.yaml.
type Config struct {
	Monitor MonitorConfig `yaml:"monitor"`
}

// MonitorConfig holds all monitor settings.
type MonitorConfig struct {
	// FeedURL is the ws:// or wss:// address of the edit feed.
	FeedURL string `yaml:"feed_url"`

	// Window is the rate aggregation window.
	Window time.Duration `yaml:"window"`

	// TickerKind selects the event kind whose content the ticker shows.
	TickerKind string `yaml:"ticker_kind"`

	// AnnotationKind selects the event kind marked on the rate chart.
	AnnotationKind string `yaml:"annotation_kind"`

	// TimestampPolicy is keep | drop. See decode.TimestampPolicy.
	TimestampPolicy string `yaml:"timestamp_policy"`

	// LogLevel is debug | info | warn | error. Applied on reload.
	LogLevel string `yaml:"log_level"`

	// HTTPPort is the port the REST API, WebSocket hub and /metrics listen on.
	HTTPPort int `yaml:"http_port"`

	// Retention is how long rate samples are kept for display.
	Retention time.Duration `yaml:"retention"`

	// MaxAnnotations caps the number of chart annotations held.
	MaxAnnotations int `yaml:"max_annotations"`

	// Alerts holds rate alert rules and webhook targets. Rules are applied
	// on reload.
	Alerts AlertsConfig `yaml:"alerts"`

	// NATS configures optional publishing of display updates.
	NATS NATSConfig `yaml:"nats"`

	// Auth guards the REST API and WebSocket hub.
	Auth AuthConfig `yaml:"auth"`

	// FeedTLS controls certificate handling for wss:// feeds.
	FeedTLS FeedTLSConfig `yaml:"feed_tls"`
}

// AuthConfig controls client authentication on the HTTP listener.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected
	// API key. Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from. Defaults to "x-api-key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// FeedTLSConfig configures the feed's TLS client.
type FeedTLSConfig struct {
	// InsecureSkipVerify disables certificate verification. For self-signed
	// test feeds only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// AlertsConfig holds all alerting rules and webhook targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines a threshold on the edit rate.
type AlertRule struct {
	// Name is the human-readable alert identifier.
	Name string `yaml:"name"`

	// Condition is an expression like "rate > 10" or "rate <= 0.5".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// NATSConfig configures the NATS publisher.
type NATSConfig struct {
	// URL is the server address. Empty disables publishing.
	URL string `yaml:"url"`

	// SubjectPrefix is prepended to .rate, .ticker and .annotation.
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Enabled reports whether a NATS URL is configured.
func (n NATSConfig) Enabled() bool { return n.URL != "" }

// Level parses LogLevel. Unknown or empty values mean info.
func (m MonitorConfig) Level() slog.Level {
	switch strings.ToLower(m.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML data, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config pre-populated with default values. It is what
// the monitor runs with when no config file is given.
func Default() *Config {
	return &Config{
		Monitor: MonitorConfig{
			FeedURL:         DefaultFeedURL,
			Window:          DefaultWindow,
			TickerKind:      DefaultTickerKind,
			AnnotationKind:  DefaultAnnotationKind,
			TimestampPolicy: "keep",
			LogLevel:        "info",
			HTTPPort:        DefaultHTTPPort,
			Retention:       DefaultRetention,
			MaxAnnotations:  DefaultMaxAnnotations,
			NATS: NATSConfig{
				SubjectPrefix: DefaultSubjectPrefix,
			},
			Auth: AuthConfig{Mode: "none"},
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	m := cfg.Monitor
	if m.FeedURL == "" {
		return fmt.Errorf("monitor.feed_url is required")
	}
	if !strings.HasPrefix(m.FeedURL, "ws://") && !strings.HasPrefix(m.FeedURL, "wss://") {
		return fmt.Errorf("monitor.feed_url %q: want a ws:// or wss:// URL", m.FeedURL)
	}
	if m.Window <= 0 {
		return fmt.Errorf("monitor.window must be positive")
	}
	switch m.TimestampPolicy {
	case "keep", "drop", "":
	default:
		return fmt.Errorf("monitor.timestamp_policy %q unknown: want keep|drop", m.TimestampPolicy)
	}
	switch strings.ToLower(m.LogLevel) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		return fmt.Errorf("monitor.log_level %q unknown: want debug|info|warn|error", m.LogLevel)
	}
	if m.HTTPPort <= 0 || m.HTTPPort > 65535 {
		return fmt.Errorf("monitor.http_port %d is out of range [1, 65535]", m.HTTPPort)
	}
	if m.Retention < m.Window {
		return fmt.Errorf("monitor.retention %v is shorter than monitor.window %v", m.Retention, m.Window)
	}
	if m.MaxAnnotations <= 0 {
		return fmt.Errorf("monitor.max_annotations must be positive")
	}
	switch m.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("monitor.auth.mode %q unknown: want apikey|none", m.Auth.Mode)
	}
	for i, r := range m.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("alerts.rules[%d]: name is required", i)
		}
		if r.Condition == "" {
			return fmt.Errorf("alerts.rules[%d] %q: condition is required", i, r.Name)
		}
		switch r.Severity {
		case "critical", "warning", "info", "":
		default:
			return fmt.Errorf("alerts.rules[%d] %q: unknown severity %q", i, r.Name, r.Severity)
		}
	}
	for i, w := range m.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d]: unknown type %q", i, w.Type)
		}
	}
	return nil
}
