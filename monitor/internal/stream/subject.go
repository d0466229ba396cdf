package stream

import "sync"

// Subject is a hot, replay-free multicast source. Values pushed with Next go
// to every subscription registered at that moment, in registration order.
// Once Error or Complete is called the subject is terminated for good:
// current subscribers receive the terminal signal once, and any later
// subscriber receives only that terminal signal.
//
// Next, Error and Complete are expected to be called from a single
// producer goroutine.
type Subject[T any] struct {
	mu         sync.Mutex
	entries    []*subjectEntry[T]
	terminated bool
	err        error
}

type subjectEntry[T any] struct {
	obs Observer[T]
}

// NewSubject returns an empty Subject.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{}
}

// Stream exposes the subject for subscription.
func (s *Subject[T]) Stream() Stream[T] {
	return Create(func(o Observer[T]) func() {
		s.mu.Lock()
		if s.terminated {
			err := s.err
			s.mu.Unlock()
			if err != nil {
				o.OnError(err)
			} else {
				o.OnCompleted()
			}
			return nil
		}
		e := &subjectEntry[T]{obs: o}
		s.entries = append(s.entries, e)
		s.mu.Unlock()
		return func() { s.remove(e) }
	})
}

// Next delivers v to all current subscribers. It is a no-op after
// termination.
func (s *Subject[T]) Next(v T) {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	entries := make([]*subjectEntry[T], len(s.entries))
	copy(entries, s.entries)
	s.mu.Unlock()

	for _, e := range entries {
		e.obs.OnNext(v)
	}
}

// Error terminates the subject with err. It reports whether this call was
// the one that terminated it.
func (s *Subject[T]) Error(err error) bool { return s.terminate(err) }

// Complete terminates the subject normally. It reports whether this call was
// the one that terminated it.
func (s *Subject[T]) Complete() bool { return s.terminate(nil) }

// Terminated reports whether Error or Complete has been called.
func (s *Subject[T]) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

// Len returns the number of live subscriptions.
func (s *Subject[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Subject[T]) terminate(err error) bool {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return false
	}
	s.terminated = true
	s.err = err
	entries := s.entries
	s.entries = nil
	s.mu.Unlock()

	for _, e := range entries {
		if err != nil {
			e.obs.OnError(err)
		} else {
			e.obs.OnCompleted()
		}
	}
	return true
}

func (s *Subject[T]) remove(e *subjectEntry[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, other := range s.entries {
		if other == e {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return
		}
	}
}
