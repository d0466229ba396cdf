package stream

import (
	"sync"
	"time"
)

// Clock is the time source for windowed operators.
type Clock interface {
	Now() time.Time
	// Every calls fn once per elapsed period d until stop is called.
	// fn must return quickly.
	Every(d time.Duration, fn func(time.Time)) (stop func())
}

// SystemClock is the wall clock, ticking with time.Ticker.
var SystemClock Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Every(d time.Duration, fn func(time.Time)) func() {
	t := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-t.C:
				fn(now)
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// ManualClock only moves when Advance is called. Periodic callbacks fire
// synchronously inside Advance, in deadline order.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	period time.Duration
	next   time.Time
	fn     func(time.Time)
}

// NewManualClock returns a ManualClock reading start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the clock's current reading.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Every registers fn to fire every d, first at Now()+d.
func (c *ManualClock) Every(d time.Duration, fn func(time.Time)) func() {
	c.mu.Lock()
	t := &manualTimer{period: d, next: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, other := range c.timers {
				if other == t {
					c.timers = append(c.timers[:i], c.timers[i+1:]...)
					break
				}
			}
		})
	}
}

// Advance moves the clock forward by d, firing every deadline it passes.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due *manualTimer
		for _, t := range c.timers {
			if t.next.After(target) {
				continue
			}
			if due == nil || t.next.Before(due.next) {
				due = t
			}
		}
		if due == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		at := due.next
		c.now = at
		due.next = at.Add(due.period)
		fn := due.fn
		c.mu.Unlock()

		fn(at)
	}
}
