package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wikipulse/wikipulse/pkg/types"
)

// DefaultMaxAnnotations is used when New is given a non-positive limit.
const DefaultMaxAnnotations = 200

// Store is a thread-safe in-memory display model. A background goroutine
// (Run) periodically evicts rate samples older than the retention period.
type Store struct {
	mu          sync.RWMutex
	rates       []types.RateSample // ordered by At
	ticker      types.TickerUpdate
	hasTicker   bool
	annotations []types.Annotation // oldest first, at most maxAnn
	retention   time.Duration
	maxAnn      int
	now         func() time.Time // injectable for deterministic tests
}

// New creates a Store that keeps rate samples for retention and at most
// maxAnnotations annotations.
func New(retention time.Duration, maxAnnotations int) *Store {
	if maxAnnotations <= 0 {
		maxAnnotations = DefaultMaxAnnotations
	}
	return &Store{
		retention: retention,
		maxAnn:    maxAnnotations,
		now:       time.Now,
	}
}

// AppendRateSample records one window's rate. Samples are expected in time
// order; one older than the newest held sample is still kept, in order.
func (s *Store) AppendRateSample(value float64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sample := types.RateSample{Value: value, At: at}
	i := len(s.rates)
	for i > 0 && s.rates[i-1].At.After(at) {
		i--
	}
	s.rates = append(s.rates, types.RateSample{})
	copy(s.rates[i+1:], s.rates[i:])
	s.rates[i] = sample
}

// SetDisplayText replaces the ticker text.
func (s *Store) SetDisplayText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticker = types.TickerUpdate{Text: text, UpdatedAt: s.now()}
	s.hasTicker = true
}

// AddAnnotation appends a, dropping the oldest annotation when full.
func (s *Store) AddAnnotation(a types.Annotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.annotations) == s.maxAnn {
		copy(s.annotations, s.annotations[1:])
		s.annotations = s.annotations[:len(s.annotations)-1]
	}
	s.annotations = append(s.annotations, a)
}

// Rates returns the samples within the retention period, oldest first.
// Samples that are stale but not yet evicted are excluded.
func (s *Store) Rates() []types.RateSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.retention)
	out := make([]types.RateSample, 0, len(s.rates))
	for _, r := range s.rates {
		if r.At.After(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

// Latest returns the newest rate sample, if any.
func (s *Store) Latest() (types.RateSample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.rates) == 0 {
		return types.RateSample{}, false
	}
	return s.rates[len(s.rates)-1], true
}

// Ticker returns the current ticker text and whether one was ever set.
func (s *Store) Ticker() (types.TickerUpdate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ticker, s.hasTicker
}

// Annotations returns the held annotations, oldest first.
func (s *Store) Annotations() []types.Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Annotation, len(s.annotations))
	copy(out, s.annotations)
	return out
}

// Count returns the number of rate samples held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rates)
}

// Evict removes rate samples at or before now minus the retention period.
// It returns the number of samples removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.retention)
	n := 0
	for n < len(s.rates) && !s.rates[n].At.After(cutoff) {
		n++
	}
	if n > 0 {
		s.rates = append(s.rates[:0], s.rates[n:]...)
	}
	return n
}

// Run starts the background eviction loop. It ticks at half the retention
// period (minimum 1 second). Run blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.retention / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted stale rate samples", "count", n)
			}
		}
	}
}
