package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wikipulse/wikipulse/monitor/internal/config"
)

const (
	defaultCooldown = 15 * time.Minute
	maxHistoryLen   = 200
	recentWindow    = time.Hour
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"`
}

type rule struct {
	name     string
	cond     Condition
	severity string
	cooldown time.Duration
}

// Engine evaluates rate rules on every sample and delivers webhook
// notifications when rules fire or resolve. It implements
// pipeline.ChartSink.
//
// Engine is safe for concurrent use.
type Engine struct {
	webhooks []config.WebhookConfig
	client   *http.Client

	mu       sync.Mutex
	rules    []rule
	active   map[string]*Alert    // key: rule name
	lastFire map[string]time.Time // last fire time per rule (for cooldown)
	history  []*Alert             // recently resolved alerts
	now      func() time.Time

	inflight sync.WaitGroup
}

// New creates an Engine from the alert configuration. An Engine with no
// rules is valid; evaluation becomes a no-op.
func New(cfg config.AlertsConfig) (*Engine, error) {
	e := &Engine{
		webhooks: cfg.Webhooks,
		client:   &http.Client{Timeout: 10 * time.Second},
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		now:      time.Now,
	}
	if err := e.SetRules(cfg.Rules); err != nil {
		return nil, err
	}
	return e, nil
}

// SetRules replaces the rule set. If any condition fails to parse the
// current rules are kept and the error returned. Firing alerts whose rule
// no longer exists are dropped without a resolve notification.
func (e *Engine) SetRules(rules []config.AlertRule) error {
	compiled := make([]rule, 0, len(rules))
	for _, r := range rules {
		cond, err := ParseCondition(r.Condition)
		if err != nil {
			return fmt.Errorf("alerts: rule %q: %w", r.Name, err)
		}
		sev := r.Severity
		if sev == "" {
			sev = "warning"
		}
		cooldown := r.Cooldown
		if cooldown <= 0 {
			cooldown = defaultCooldown
		}
		compiled = append(compiled, rule{name: r.Name, cond: cond, severity: sev, cooldown: cooldown})
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = compiled
	keep := make(map[string]bool, len(compiled))
	for _, r := range compiled {
		keep[r.name] = true
	}
	for name := range e.active {
		if !keep[name] {
			delete(e.active, name)
		}
	}
	return nil
}

// AppendRateSample evaluates every rule against value.
func (e *Engine) AppendRateSample(value float64, _ time.Time) {
	e.Evaluate(value)
}

// Evaluate tests all rules against the rate value. Rules that fire outside
// their cooldown are recorded and delivered asynchronously; firing rules
// whose condition no longer holds are resolved.
func (e *Engine) Evaluate(value float64) {
	var notify []Alert

	e.mu.Lock()
	now := e.now()
	for _, r := range e.rules {
		if r.cond.Holds(value) {
			if _, firing := e.active[r.name]; firing {
				continue
			}
			if last, ok := e.lastFire[r.name]; ok && now.Sub(last) <= r.cooldown {
				continue
			}
			a := &Alert{
				ID:       uuid.NewString(),
				RuleName: r.name,
				Severity: r.severity,
				Value:    value,
				Message: fmt.Sprintf("[%s] %s fired: %s (rate = %.2f edits/s)",
					r.severity, r.name, r.cond, value),
				FiredAt: now,
				State:   StateFiring,
			}
			e.active[r.name] = a
			e.lastFire[r.name] = now
			notify = append(notify, *a)
			slog.Warn("alerts: alert fired", "rule", r.name, "value", value, "severity", r.severity)
			continue
		}

		a, firing := e.active[r.name]
		if !firing {
			continue
		}
		resolved := now
		a.State = StateResolved
		a.ResolvedAt = &resolved
		a.Value = value
		delete(e.active, r.name)
		e.history = append(e.history, a)
		if len(e.history) > maxHistoryLen {
			e.history = e.history[len(e.history)-maxHistoryLen:]
		}
		notify = append(notify, *a)
		slog.Info("alerts: alert resolved", "rule", r.name, "value", value)
	}
	e.mu.Unlock()

	for i := range notify {
		a := notify[i]
		e.inflight.Add(1)
		go func() {
			defer e.inflight.Done()
			e.deliver(&a)
		}()
	}
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, newest first.
func (e *Engine) Active() []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindow)
	out := make([]Alert, 0, len(e.active))
	for _, a := range e.active {
		out = append(out, *a)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// Firing returns the number of currently firing alerts.
func (e *Engine) Firing() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// Wait blocks until all in-flight webhook deliveries have finished.
func (e *Engine) Wait() {
	e.inflight.Wait()
}
