package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hearth-home/hearth-core/internal/engine"
)

// Logger defines the logging interface used by the Dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Dispatcher decouples slow or blocking side effects from the engine's
// message loop. Actions arrive as JSON-RPC-shaped requests (single
// objects or arbitrarily nested arrays of them), are flattened eagerly,
// and execute independently on a bounded worker pool.
//
// For id-carrying requests exactly one response is re-posted to the
// engine - the handler's result, or a synthesized error when lookup or
// the handler itself failed - so specifications get deterministic
// feedback even on failure. Fire-and-forget failures are logged only.
//
// Post drops work when the task queue is full. This is deliberate
// backpressure: automations must tolerate dropped fire-and-forget
// actions.
type Dispatcher struct {
	handlers  map[string]Handler
	handlerMu sync.RWMutex

	tasks chan Request
	wg    sync.WaitGroup

	stateMu sync.Mutex
	running bool

	workers int
	timeout time.Duration

	poster  Poster
	metrics ActionRecorder
	logger  Logger
}

// Options configures a Dispatcher.
type Options struct {
	// Workers is the pool size. Defaults to 4.
	Workers int

	// QueueSize bounds the pending task queue. Defaults to 64.
	QueueSize int

	// ActionTimeout caps a single handler invocation. Defaults to 30s.
	ActionTimeout time.Duration
}

// NewDispatcher creates a dispatcher that re-posts responses through the
// given poster.
func NewDispatcher(poster Poster, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 30 * time.Second
	}

	return &Dispatcher{
		handlers: make(map[string]Handler),
		tasks:    make(chan Request, opts.QueueSize),
		workers:  opts.Workers,
		timeout:  opts.ActionTimeout,
		poster:   poster,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// SetActionRecorder sets the optional metrics sink.
func (d *Dispatcher) SetActionRecorder(metrics ActionRecorder) {
	d.metrics = metrics
}

// RegisterHandler binds a handler to a method name. One handler per
// method; the last registration wins.
func (d *Dispatcher) RegisterHandler(method string, handler Handler) {
	d.handlerMu.Lock()
	defer d.handlerMu.Unlock()
	d.handlers[method] = handler
}

// Start spawns the worker pool.
func (d *Dispatcher) Start() error {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if d.running {
		return ErrAlreadyRunning
	}
	d.running = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	d.logger.Info("action dispatcher started", "workers", d.workers)
	return nil
}

// Stop closes the task queue and waits for in-flight actions to finish.
// Queued actions still execute; new posts are dropped.
func (d *Dispatcher) Stop() error {
	d.stateMu.Lock()
	if !d.running {
		d.stateMu.Unlock()
		return ErrNotRunning
	}
	d.running = false
	close(d.tasks)
	d.stateMu.Unlock()

	d.wg.Wait()
	d.logger.Info("action dispatcher stopped")
	return nil
}

// Post accepts a single JSON-RPC request object or a (possibly nested)
// JSON array of them. Arrays are flattened eagerly, before any leaf
// executes; each leaf object is validated and submitted independently.
// Invalid leaves are dropped with a logged error.
func (d *Dispatcher) Post(raw json.RawMessage) {
	d.flatten(raw)
}

// flatten recursively decomposes arrays and submits leaf objects.
// Order is preserved within each nesting level, but execution order
// across the batch is up to the worker pool.
func (d *Dispatcher) flatten(raw json.RawMessage) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			d.logger.Error("invalid action array dropped", "error", err)
			return
		}
		for _, item := range items {
			d.flatten(item)
		}
		return
	}

	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		d.logger.Error("invalid action dropped", "error", err)
		return
	}
	if err := req.Validate(); err != nil {
		d.logger.Error("invalid action dropped", "error", err)
		return
	}

	d.submit(req)
}

// submit places a request on the task queue, dropping under overload.
// The state lock is held across the send: Stop closes the queue under
// the same lock, so the send can never race the close. The send itself
// is non-blocking, so the lock is never held for long.
func (d *Dispatcher) submit(req Request) {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()

	if !d.running {
		d.logger.Warn("action dropped, dispatcher not running", "method", req.Method)
		return
	}

	select {
	case d.tasks <- req:
	default:
		d.logger.Warn("action dropped, task queue full", "method", req.Method)
	}
}

// worker executes requests until the task queue closes.
func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for req := range d.tasks {
		d.execute(req)
	}
}

// execute runs one request end-to-end: handler lookup, invocation with
// a per-action timeout, and response re-injection for id'd requests.
func (d *Dispatcher) execute(req Request) {
	start := time.Now()

	d.handlerMu.RLock()
	handler, found := d.handlers[req.Method]
	d.handlerMu.RUnlock()

	if !found {
		d.logger.Warn("no handler for action", "method", req.Method)
		if req.HasID() {
			d.respond(errorResponse(req.ID, noHandlerMessage))
		}
		d.record(req.Method, start, false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	result, err := handler(ctx, req.Params)
	cancel()

	switch {
	case err != nil:
		d.logger.Warn("action failed", "method", req.Method, "error", err)
		if req.HasID() {
			d.respond(errorResponse(req.ID, err.Error()))
		}
		d.record(req.Method, start, false)

	case req.HasID():
		if result == nil {
			// An id'd request must always get feedback; a handler that
			// returned nothing is reported as a failure.
			d.respond(errorResponse(req.ID, "handler returned no result"))
			d.record(req.Method, start, false)
			return
		}
		d.respond(successResponse(req.ID, result))
		d.record(req.Method, start, true)

	default:
		d.record(req.Method, start, true)
	}
}

// respond re-injects a response message into the engine host. A false
// return means the host is stopping; the response is dropped.
func (d *Dispatcher) respond(msg engine.Message) {
	if !d.poster.Post(msg) {
		d.logger.Debug("response dropped, engine not accepting")
	}
}

// record reports the action outcome to the metrics sink, if any.
func (d *Dispatcher) record(method string, start time.Time, success bool) {
	if d.metrics == nil {
		return
	}
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	d.metrics.WriteActionResult(method, elapsed, success)
}
