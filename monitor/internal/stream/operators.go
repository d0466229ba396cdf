package stream

// Filter passes through only the values for which pred returns true.
func (s Stream[T]) Filter(pred func(T) bool) Stream[T] {
	return Create(func(o Observer[T]) func() {
		return s.Subscribe(Funcs[T]{
			Next: func(v T) {
				if pred(v) {
					o.OnNext(v)
				}
			},
			Error:     o.OnError,
			Completed: o.OnCompleted,
		}).Unsubscribe
	})
}

// Tap calls fn for every value before passing it on unchanged.
func (s Stream[T]) Tap(fn func(T)) Stream[T] {
	return Create(func(o Observer[T]) func() {
		return s.Subscribe(Funcs[T]{
			Next: func(v T) {
				fn(v)
				o.OnNext(v)
			},
			Error:     o.OnError,
			Completed: o.OnCompleted,
		}).Unsubscribe
	})
}

// DeliverOn re-dispatches every notification onto sched, preserving order.
// Values still queued on sched when the subscription is cancelled are
// discarded.
func (s Stream[T]) DeliverOn(sched Scheduler) Stream[T] {
	return Create(func(o Observer[T]) func() {
		return s.Subscribe(Funcs[T]{
			Next: func(v T) {
				sched.Schedule(func() { o.OnNext(v) })
			},
			Error: func(err error) {
				sched.Schedule(func() { o.OnError(err) })
			},
			Completed: func() {
				sched.Schedule(o.OnCompleted)
			},
		}).Unsubscribe
	})
}

// Map converts each value with fn. When fn reports false the value is
// dropped; no error is raised.
func Map[T, U any](s Stream[T], fn func(T) (U, bool)) Stream[U] {
	return Create(func(o Observer[U]) func() {
		return s.Subscribe(Funcs[T]{
			Next: func(v T) {
				if out, ok := fn(v); ok {
					o.OnNext(out)
				}
			},
			Error:     o.OnError,
			Completed: o.OnCompleted,
		}).Unsubscribe
	})
}
