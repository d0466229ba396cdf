package stream

import (
	"sync"
	"time"
)

// Window is one closed buffer window. End is the clock reading at the
// boundary that closed it, or at upstream completion for the final window.
type Window[T any] struct {
	Items []T
	End   time.Time
}

// windowEntry is one pending notification, in cut order.
type windowEntry[T any] struct {
	win   Window[T]
	final bool  // completion follows the window
	err   error // error replaces the window
}

// BufferByTime groups upstream values into contiguous, non-overlapping
// windows of length window, timed by clk. At every window boundary the values
// collected since the previous boundary are emitted on sched as one Window,
// in arrival order. A window with no values has an empty, non-nil Items.
//
// Appending never waits on the downstream. When the upstream completes, the
// partial window is emitted before completion; when it fails, the partial
// window is discarded and the error forwarded. Windows reach sched in the
// order they were cut, even when a boundary and completion race.
func BufferByTime[T any](s Stream[T], window time.Duration, sched Scheduler, clk Clock) Stream[Window[T]] {
	return Create(func(o Observer[Window[T]]) func() {
		var (
			mu     sync.Mutex
			buf    = make([]T, 0)
			done   bool
			outbox []windowEntry[T]
		)

		// drain delivers the oldest pending entry. Each enqueue is paired
		// with exactly one scheduled drain, so delivery follows cut order
		// whatever order the Schedule calls land in.
		drain := func() {
			mu.Lock()
			if len(outbox) == 0 {
				mu.Unlock()
				return
			}
			e := outbox[0]
			outbox = outbox[1:]
			mu.Unlock()

			switch {
			case e.err != nil:
				o.OnError(e.err)
			case e.final:
				o.OnNext(e.win)
				o.OnCompleted()
			default:
				o.OnNext(e.win)
			}
		}

		// cutLocked closes the current window and opens the next one.
		cutLocked := func(end time.Time) Window[T] {
			out := buf
			buf = make([]T, 0, len(out))
			return Window[T]{Items: out, End: end}
		}

		stop := clk.Every(window, func(at time.Time) {
			mu.Lock()
			if done {
				mu.Unlock()
				return
			}
			outbox = append(outbox, windowEntry[T]{win: cutLocked(at)})
			mu.Unlock()
			sched.Schedule(drain)
		})

		sub := s.Subscribe(Funcs[T]{
			Next: func(v T) {
				mu.Lock()
				if !done {
					buf = append(buf, v)
				}
				mu.Unlock()
			},
			Error: func(err error) {
				mu.Lock()
				if done {
					mu.Unlock()
					return
				}
				done = true
				buf = nil
				outbox = append(outbox, windowEntry[T]{err: err})
				mu.Unlock()
				stop()
				sched.Schedule(drain)
			},
			Completed: func() {
				mu.Lock()
				if done {
					mu.Unlock()
					return
				}
				done = true
				outbox = append(outbox, windowEntry[T]{win: cutLocked(clk.Now()), final: true})
				mu.Unlock()
				stop()
				sched.Schedule(drain)
			},
		})

		return func() {
			stop()
			sub.Unsubscribe()
		}
	})
}
