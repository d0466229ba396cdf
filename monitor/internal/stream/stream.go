package stream

import (
	"sync"
	"sync/atomic"
)

// Observer receives the notifications of one subscription.
type Observer[T any] interface {
	OnNext(v T)
	OnError(err error)
	OnCompleted()
}

// Funcs adapts callbacks to an Observer. Nil fields are ignored.
type Funcs[T any] struct {
	Next      func(T)
	Error     func(error)
	Completed func()
}

func (f Funcs[T]) OnNext(v T) {
	if f.Next != nil {
		f.Next(v)
	}
}

func (f Funcs[T]) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

func (f Funcs[T]) OnCompleted() {
	if f.Completed != nil {
		f.Completed()
	}
}

// Stream is a typed sequence of values terminated by at most one error or
// completion. The zero Stream never emits.
type Stream[T any] struct {
	subscribe func(Observer[T]) *Subscription
}

// Create builds a Stream from a subscribe function. fn receives an observer
// that is already guarded: it ignores everything after a terminal signal or
// after the subscription is cancelled. fn may return a teardown that runs
// once when the subscription ends.
func Create[T any](fn func(Observer[T]) (teardown func())) Stream[T] {
	return Stream[T]{subscribe: func(o Observer[T]) *Subscription {
		sub := newSubscription()
		g := &guarded[T]{sub: sub, obs: o}
		if td := fn(g); td != nil {
			sub.add(td)
		}
		return sub
	}}
}

// Subscribe attaches o and returns its Subscription.
func (s Stream[T]) Subscribe(o Observer[T]) *Subscription {
	if s.subscribe == nil {
		return newSubscription()
	}
	return s.subscribe(o)
}

// SubscribeNext subscribes with a value callback only.
func (s Stream[T]) SubscribeNext(next func(T)) *Subscription {
	return s.Subscribe(Funcs[T]{Next: next})
}

// Subscription is one consumer's attachment to a Stream.
type Subscription struct {
	once sync.Once
	done chan struct{}

	mu        sync.Mutex
	closed    bool
	teardowns []func()
}

func newSubscription() *Subscription {
	return &Subscription{done: make(chan struct{})}
}

// Unsubscribe stops further delivery and releases upstream resources. It is
// safe to call more than once and from any goroutine.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		tds := s.teardowns
		s.teardowns = nil
		s.mu.Unlock()
		close(s.done)

		for i := len(tds) - 1; i >= 0; i-- {
			tds[i]()
		}
	})
}

// Done is closed when the subscription ends, either through Unsubscribe or
// after a terminal signal was delivered.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Closed reports whether the subscription has ended.
func (s *Subscription) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Subscription) add(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fn()
		return
	}
	s.teardowns = append(s.teardowns, fn)
	s.mu.Unlock()
}

// guarded enforces the delivery contract on a downstream observer.
type guarded[T any] struct {
	sub     *Subscription
	obs     Observer[T]
	stopped atomic.Bool
}

func (g *guarded[T]) OnNext(v T) {
	if g.stopped.Load() || g.sub.Closed() {
		return
	}
	g.obs.OnNext(v)
}

func (g *guarded[T]) OnError(err error) {
	if g.sub.Closed() || !g.stopped.CompareAndSwap(false, true) {
		return
	}
	g.obs.OnError(err)
	g.sub.Unsubscribe()
}

func (g *guarded[T]) OnCompleted() {
	if g.sub.Closed() || !g.stopped.CompareAndSwap(false, true) {
		return
	}
	g.obs.OnCompleted()
	g.sub.Unsubscribe()
}
