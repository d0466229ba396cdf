package stream

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recorder is an Observer that records everything it receives.
type recorder[T any] struct {
	mu        sync.Mutex
	values    []T
	errs      []error
	completed int
}

func (r *recorder[T]) OnNext(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *recorder[T]) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder[T]) OnCompleted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
}

func (r *recorder[T]) snapshot() ([]T, []error, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vals := append([]T(nil), r.values...)
	errs := append([]error(nil), r.errs...)
	return vals, errs, r.completed
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --- Subject ---

func TestSubject_FanOut(t *testing.T) {
	subj := NewSubject[int]()
	a, b := &recorder[int]{}, &recorder[int]{}
	subj.Stream().Subscribe(a)
	subj.Stream().Subscribe(b)

	for i := 1; i <= 3; i++ {
		subj.Next(i)
	}
	subj.Complete()

	for name, r := range map[string]*recorder[int]{"a": a, "b": b} {
		vals, errs, completed := r.snapshot()
		if !equalInts(vals, []int{1, 2, 3}) {
			t.Errorf("%s values: got %v, want [1 2 3]", name, vals)
		}
		if len(errs) != 0 || completed != 1 {
			t.Errorf("%s terminal: errs=%v completed=%d", name, errs, completed)
		}
	}
}

func TestSubject_UnsubscribeDoesNotAffectOthers(t *testing.T) {
	subj := NewSubject[int]()
	quitter, stayer := &recorder[int]{}, &recorder[int]{}
	qs := subj.Stream().Subscribe(quitter)
	subj.Stream().Subscribe(stayer)

	subj.Next(1)
	subj.Next(2)
	qs.Unsubscribe()
	subj.Next(3)
	subj.Next(4)
	subj.Complete()

	qv, _, qc := quitter.snapshot()
	if !equalInts(qv, []int{1, 2}) {
		t.Errorf("quitter values: got %v, want [1 2]", qv)
	}
	if qc != 0 {
		t.Errorf("quitter completed %d times after unsubscribing", qc)
	}

	sv, _, sc := stayer.snapshot()
	if !equalInts(sv, []int{1, 2, 3, 4}) {
		t.Errorf("stayer values: got %v, want [1 2 3 4]", sv)
	}
	if sc != 1 {
		t.Errorf("stayer completed: got %d, want 1", sc)
	}
	if n := subj.Len(); n != 0 {
		t.Errorf("Len after termination: got %d, want 0", n)
	}
}

func TestSubject_LateSubscriberGetsCompletionOnly(t *testing.T) {
	subj := NewSubject[int]()
	subj.Next(1)
	subj.Complete()
	subj.Next(2)

	late := &recorder[int]{}
	sub := subj.Stream().Subscribe(late)

	vals, errs, completed := late.snapshot()
	if len(vals) != 0 {
		t.Errorf("late subscriber got values %v", vals)
	}
	if len(errs) != 0 || completed != 1 {
		t.Errorf("late subscriber terminal: errs=%v completed=%d, want 0 errs and 1 completion", errs, completed)
	}
	if !sub.Closed() {
		t.Error("subscription should be closed after terminal signal")
	}
}

func TestSubject_LateSubscriberGetsError(t *testing.T) {
	boom := errors.New("boom")
	subj := NewSubject[int]()
	subj.Error(boom)

	late := &recorder[int]{}
	subj.Stream().Subscribe(late)

	_, errs, completed := late.snapshot()
	if len(errs) != 1 || !errors.Is(errs[0], boom) {
		t.Errorf("errs: got %v, want [boom]", errs)
	}
	if completed != 0 {
		t.Errorf("completed: got %d, want 0", completed)
	}
}

func TestSubject_TerminatesOnce(t *testing.T) {
	subj := NewSubject[int]()
	r := &recorder[int]{}
	subj.Stream().Subscribe(r)

	if !subj.Complete() {
		t.Fatal("first Complete should report true")
	}
	if subj.Complete() {
		t.Error("second Complete should report false")
	}
	if subj.Error(errors.New("late")) {
		t.Error("Error after Complete should report false")
	}

	_, errs, completed := r.snapshot()
	if completed != 1 || len(errs) != 0 {
		t.Errorf("got completed=%d errs=%v, want exactly one completion", completed, errs)
	}
}

func TestSubject_ConcurrentSubscribeDuringTermination(t *testing.T) {
	subj := NewSubject[int]()
	const n = 200

	var counts [n]atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			subj.Stream().Subscribe(Funcs[int]{Completed: func() { counts[i].Add(1) }})
		}(i)
	}
	close(start)
	subj.Complete()
	wg.Wait()

	for i := range counts {
		if got := counts[i].Load(); got != 1 {
			t.Fatalf("subscriber %d received %d completions, want 1", i, got)
		}
	}
}

// --- operators ---

func TestFilter(t *testing.T) {
	subj := NewSubject[int]()
	r := &recorder[int]{}
	subj.Stream().Filter(func(v int) bool { return v%2 == 0 }).Subscribe(r)

	for i := 1; i <= 6; i++ {
		subj.Next(i)
	}
	vals, _, _ := r.snapshot()
	if !equalInts(vals, []int{2, 4, 6}) {
		t.Errorf("got %v, want [2 4 6]", vals)
	}
}

func TestMap_DropsRejectedValues(t *testing.T) {
	subj := NewSubject[string]()
	r := &recorder[int]{}
	Map(subj.Stream(), func(s string) (int, bool) {
		if s == "" {
			return 0, false
		}
		return len(s), true
	}).Subscribe(r)

	subj.Next("a")
	subj.Next("")
	subj.Next("abc")
	subj.Complete()

	vals, errs, completed := r.snapshot()
	if !equalInts(vals, []int{1, 3}) {
		t.Errorf("got %v, want [1 3]", vals)
	}
	if len(errs) != 0 || completed != 1 {
		t.Errorf("terminal: errs=%v completed=%d", errs, completed)
	}
}

func TestTap_SeesEveryValue(t *testing.T) {
	subj := NewSubject[int]()
	var seen []int
	r := &recorder[int]{}
	subj.Stream().Tap(func(v int) { seen = append(seen, v) }).Subscribe(r)

	subj.Next(7)
	subj.Next(8)

	vals, _, _ := r.snapshot()
	if !equalInts(seen, []int{7, 8}) || !equalInts(vals, []int{7, 8}) {
		t.Errorf("seen=%v delivered=%v, want [7 8] for both", seen, vals)
	}
}

func TestUnsubscribe_PropagatesUpstream(t *testing.T) {
	subj := NewSubject[int]()
	sub := Map(subj.Stream().Filter(func(int) bool { return true }), func(v int) (int, bool) { return v, true }).
		SubscribeNext(func(int) {})
	if n := subj.Len(); n != 1 {
		t.Fatalf("Len: got %d, want 1", n)
	}
	sub.Unsubscribe()
	sub.Unsubscribe()
	if n := subj.Len(); n != 0 {
		t.Errorf("Len after Unsubscribe: got %d, want 0", n)
	}
}

func TestDeliverOn_PreservesOrderOnScheduler(t *testing.T) {
	q := NewSerialQueue("test")
	defer q.Close()

	subj := NewSubject[int]()
	done := make(chan struct{})
	var got []int
	subj.Stream().DeliverOn(q).Subscribe(Funcs[int]{
		Next:      func(v int) { got = append(got, v) },
		Completed: func() { close(done) },
	})

	for i := 0; i < 100; i++ {
		subj.Next(i)
	}
	subj.Complete()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d", i, v, i)
		}
	}
	if len(got) != 100 {
		t.Errorf("got %d values, want 100", len(got))
	}
}

func TestDeliverOn_DropsQueuedAfterUnsubscribe(t *testing.T) {
	var queued []func()
	sched := SchedulerFunc(func(fn func()) { queued = append(queued, fn) })

	subj := NewSubject[int]()
	r := &recorder[int]{}
	sub := subj.Stream().DeliverOn(sched).Subscribe(r)

	subj.Next(1)
	subj.Next(2)
	queued[0]()
	sub.Unsubscribe()
	for _, fn := range queued[1:] {
		fn()
	}

	vals, _, _ := r.snapshot()
	if !equalInts(vals, []int{1}) {
		t.Errorf("got %v, want [1]", vals)
	}
}

// --- BufferByTime ---

var epoch = time.Date(2014, 6, 25, 10, 0, 0, 0, time.UTC)

func TestBufferByTime_SingleWindowEmitsAllInOrder(t *testing.T) {
	clk := NewManualClock(epoch)
	subj := NewSubject[int]()
	r := &recorder[Window[int]]{}
	BufferByTime(subj.Stream(), 5*time.Second, Immediate, clk).Subscribe(r)

	for i := 0; i < 12; i++ {
		clk.Advance(300 * time.Millisecond)
		subj.Next(i)
	}
	if vals, _, _ := r.snapshot(); len(vals) != 0 {
		t.Fatalf("emitted before the window closed: %v", vals)
	}

	clk.Advance(5*time.Second - 12*300*time.Millisecond)

	vals, _, _ := r.snapshot()
	if len(vals) != 1 {
		t.Fatalf("windows emitted: got %d, want 1", len(vals))
	}
	want := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	if !equalInts(vals[0].Items, want) {
		t.Errorf("window contents: got %v, want %v", vals[0].Items, want)
	}
	if !vals[0].End.Equal(epoch.Add(5 * time.Second)) {
		t.Errorf("window end: got %v, want %v", vals[0].End, epoch.Add(5*time.Second))
	}
}

func TestBufferByTime_EmptyWindowEmitsEmptySlice(t *testing.T) {
	clk := NewManualClock(epoch)
	subj := NewSubject[int]()
	r := &recorder[Window[int]]{}
	BufferByTime(subj.Stream(), 5*time.Second, Immediate, clk).Subscribe(r)

	clk.Advance(15 * time.Second)

	vals, _, _ := r.snapshot()
	if len(vals) != 3 {
		t.Fatalf("windows emitted: got %d, want 3", len(vals))
	}
	for i, w := range vals {
		if w.Items == nil || len(w.Items) != 0 {
			t.Errorf("window %d: got %#v, want empty non-nil slice", i, w.Items)
		}
	}
}

func TestBufferByTime_RatesPerWindow(t *testing.T) {
	clk := NewManualClock(epoch)
	subj := NewSubject[int]()
	r := &recorder[float64]{}
	window := 5 * time.Second
	rates := Map(BufferByTime(subj.Stream(), window, Immediate, clk), func(w Window[int]) (float64, bool) {
		return float64(len(w.Items)) / window.Seconds(), true
	})
	rates.Subscribe(r)

	for _, n := range []int{0, 3, 10} {
		for i := 0; i < n; i++ {
			subj.Next(i)
		}
		clk.Advance(window)
	}

	vals, _, _ := r.snapshot()
	want := []float64{0.0, 0.6, 2.0}
	if len(vals) != len(want) {
		t.Fatalf("got %v, want %v", vals, want)
	}
	for i := range want {
		if vals[i] != want[i] {
			t.Errorf("rate[%d]: got %v, want %v", i, vals[i], want[i])
		}
	}
}

func TestBufferByTime_CompletionFlushesPartialWindow(t *testing.T) {
	clk := NewManualClock(epoch)
	subj := NewSubject[int]()
	r := &recorder[Window[int]]{}
	BufferByTime(subj.Stream(), 5*time.Second, Immediate, clk).Subscribe(r)

	subj.Next(1)
	subj.Next(2)
	subj.Complete()
	clk.Advance(10 * time.Second)

	vals, _, completed := r.snapshot()
	if len(vals) != 1 || !equalInts(vals[0].Items, []int{1, 2}) {
		t.Errorf("got %v, want one window [1 2]", vals)
	}
	if completed != 1 {
		t.Errorf("completed: got %d, want 1", completed)
	}
}

func TestBufferByTime_ErrorDiscardsPartialWindow(t *testing.T) {
	clk := NewManualClock(epoch)
	subj := NewSubject[int]()
	r := &recorder[Window[int]]{}
	BufferByTime(subj.Stream(), 5*time.Second, Immediate, clk).Subscribe(r)

	subj.Next(1)
	subj.Error(errors.New("feed failed"))
	clk.Advance(10 * time.Second)

	vals, errs, _ := r.snapshot()
	if len(vals) != 0 {
		t.Errorf("got windows %v after error, want none", vals)
	}
	if len(errs) != 1 {
		t.Errorf("errs: got %d, want 1", len(errs))
	}
}

func TestBufferByTime_UnsubscribeStopsWindows(t *testing.T) {
	clk := NewManualClock(epoch)
	subj := NewSubject[int]()
	r := &recorder[Window[int]]{}
	sub := BufferByTime(subj.Stream(), 5*time.Second, Immediate, clk).Subscribe(r)

	clk.Advance(5 * time.Second)
	sub.Unsubscribe()
	clk.Advance(20 * time.Second)

	vals, _, _ := r.snapshot()
	if len(vals) != 1 {
		t.Errorf("windows: got %d, want 1", len(vals))
	}
	if n := subj.Len(); n != 0 {
		t.Errorf("subject still has %d subscribers", n)
	}
}

// queueScheduler holds tasks until flush.
type queueScheduler struct {
	mu    sync.Mutex
	tasks []func()
}

func (q *queueScheduler) Schedule(fn func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()
}

func (q *queueScheduler) flush() {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		fn := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()
		fn()
	}
}

func TestBufferByTime_CompletionRacingBoundaryKeepsValues(t *testing.T) {
	clk := NewManualClock(epoch)
	subj := NewSubject[int]()
	r := &recorder[Window[int]]{}

	// The upstream completes after the boundary cut its window but before
	// that window's delivery is scheduled.
	var calls atomic.Int32
	sched := SchedulerFunc(func(fn func()) {
		if calls.Add(1) == 1 {
			subj.Complete()
		}
		fn()
	})
	BufferByTime(subj.Stream(), 5*time.Second, sched, clk).Subscribe(r)

	subj.Next(1)
	subj.Next(2)
	subj.Next(3)
	clk.Advance(5 * time.Second)

	vals, _, completed := r.snapshot()
	if completed != 1 {
		t.Fatalf("completed: got %d, want 1", completed)
	}
	if len(vals) != 2 {
		t.Fatalf("windows: got %v, want [1 2 3] then an empty final window", vals)
	}
	if !equalInts(vals[0].Items, []int{1, 2, 3}) || len(vals[1].Items) != 0 {
		t.Errorf("windows: got %v / %v", vals[0].Items, vals[1].Items)
	}
}

func TestBufferByTime_EndIsBoundaryNotDeliveryTime(t *testing.T) {
	clk := NewManualClock(epoch)
	subj := NewSubject[int]()
	r := &recorder[Window[int]]{}
	worker := &queueScheduler{}
	BufferByTime(subj.Stream(), 5*time.Second, worker, clk).Subscribe(r)

	subj.Next(1)
	clk.Advance(5 * time.Second)
	clk.Advance(5 * time.Second)
	worker.flush()

	vals, _, _ := r.snapshot()
	if len(vals) != 2 {
		t.Fatalf("windows: got %d, want 2", len(vals))
	}
	for i, want := range []time.Time{epoch.Add(5 * time.Second), epoch.Add(10 * time.Second)} {
		if !vals[i].End.Equal(want) {
			t.Errorf("window %d end: got %v, want %v", i, vals[i].End, want)
		}
	}
	if !equalInts(vals[0].Items, []int{1}) {
		t.Errorf("window 0: got %v, want [1]", vals[0].Items)
	}
}
