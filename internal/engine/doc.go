// Package engine hosts the automation message pipeline.
//
// The Host owns a bounded FIFO and exactly one consumer goroutine.
// Every posted message is enriched with the current sunrise/sunset and
// an event time, then fanned out to every registered Backend in
// registration order. This gives automation state a sequential
// consistency guarantee: all backends see every message, one message at
// a time, in enqueue order - at the cost of the soft one-second latency
// budget being shared across all machines and all backends.
//
// Backends are pluggable specification interpreters. The host never
// inspects specifications; it only routes enable/disable/process calls.
// A backend that panics during processing is isolated: the panic is
// logged and the remaining backends still receive the message.
//
// Actions emitted during background processing are dropped by the host.
// Backends hand their actions to the dispatch package directly; only the
// dispatcher's re-injected responses travel back through Post, closing
// the engine -> action -> response -> engine loop.
package engine
