// Package stream provides the typed, multicast stream abstraction the
// monitor's pipelines are built from.
//
// A Stream[T] is a recipe: nothing happens until Subscribe is called, and
// every operator (Filter, Map, Tap, BufferByTime, DeliverOn) returns a new
// Stream without touching its upstream. Subject[T] is the hot, replay-free
// source that fans one producer out to any number of subscriptions.
//
// Notifications on one subscription are serialized: at most one OnNext is in
// progress at a time, and OnError/OnCompleted arrive at most once, after
// which nothing else is delivered. Work moves between execution contexts
// only through a Scheduler; SerialQueue is the unbounded FIFO used for both
// the worker and the presentation context.
//
// Clock abstracts window timing so BufferByTime can be driven by
// ManualClock in tests.
package stream
