package engine

import (
	"sync"
	"time"
)

// Logger defines the logging interface used by the Host.
// This allows different logging implementations to be used.
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

// Message fields injected by Post before enqueue.
const (
	fieldSunrise   = "_sunrise"
	fieldSunset    = "_sunset"
	fieldEventTime = "eventTime"
)

// Host serializes all automation state transitions behind one message
// pipeline. Every queued message is fanned out to every registered
// backend, in registration order, by a single consumer goroutine -
// backends therefore see a strict FIFO message stream with no
// interleaving, regardless of how many machines exist.
//
// Posting is non-blocking and best-effort: when the queue is full or the
// host is not running, Post drops the message and returns false. The
// soft latency budget (SlowWarn) is advisory; exceeding it logs a
// warning but never aborts processing.
type Host struct {
	queue chan Message
	stop  chan struct{}
	done  chan struct{}

	// backendMu guards the backend list and serializes Enable/Disable/
	// State against the consumer's Process fan-out.
	backendMu sync.Mutex
	backends  []Backend

	// stateMu guards running and the queue lifecycle.
	stateMu sync.Mutex
	running bool

	sun      SunSource
	activity ActivityRecorder
	sink     ActionSink
	metrics  LatencyRecorder
	logger   Logger

	slowWarn time.Duration
}

// Options configures a Host.
type Options struct {
	// QueueSize bounds the message FIFO. Defaults to 256.
	QueueSize int

	// SlowWarn is the soft per-message latency budget. Defaults to 1s.
	SlowWarn time.Duration
}

// NewHost creates an engine host. Backends are added with Register
// before Start.
func NewHost(opts Options) *Host {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.SlowWarn <= 0 {
		opts.SlowWarn = time.Second
	}

	return &Host{
		queue:    make(chan Message, opts.QueueSize),
		logger:   noopLogger{},
		slowWarn: opts.SlowWarn,
	}
}

// SetLogger sets the logger for the host.
func (h *Host) SetLogger(logger Logger) {
	h.logger = logger
}

// SetSunSource sets the sunrise/sunset source used for message enrichment.
func (h *Host) SetSunSource(sun SunSource) {
	h.sun = sun
}

// SetActivityRecorder sets the per-machine bookkeeping sink.
func (h *Host) SetActivityRecorder(activity ActivityRecorder) {
	h.activity = activity
}

// SetActionSink sets the destination for actions machines emit.
func (h *Host) SetActionSink(sink ActionSink) {
	h.sink = sink
}

// SetLatencyRecorder sets the optional metrics sink.
func (h *Host) SetLatencyRecorder(metrics LatencyRecorder) {
	h.metrics = metrics
}

// Register adds a backend. Backends cannot be added while the host is
// running; hot registration is not supported.
func (h *Host) Register(backend Backend) error {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	if h.running {
		return ErrRunning
	}

	h.backendMu.Lock()
	h.backends = append(h.backends, backend)
	h.backendMu.Unlock()

	h.logger.Info("engine backend registered", "name", backend.Name())
	return nil
}

// Post enriches and enqueues a message. Non-blocking: returns false
// when the host is not running or the queue is full. Callers must treat
// delivery as best effort.
func (h *Host) Post(msg Message) bool {
	h.stateMu.Lock()
	running := h.running
	h.stateMu.Unlock()
	if !running {
		return false
	}

	enriched := copyMessage(msg)
	if enriched == nil {
		enriched = make(Message, 3)
	}

	if h.sun != nil {
		sunrise, sunset := h.sun.Sun()
		enriched[fieldSunrise] = sunrise
		enriched[fieldSunset] = sunset
	}
	if _, ok := enriched[fieldEventTime]; !ok {
		enriched[fieldEventTime] = time.Now().UnixMilli()
	}

	select {
	case h.queue <- enriched:
		return true
	default:
		h.logger.Warn("engine queue full, message dropped")
		return false
	}
}

// Enable fans the spec out to every backend in registration order.
// Returns true if any backend accepted it; each backend independently
// validates the dialect.
func (h *Host) Enable(id, spec string) bool {
	h.backendMu.Lock()
	defer h.backendMu.Unlock()

	accepted := false
	for _, b := range h.backends {
		if h.safeEnable(b, id, spec) {
			accepted = true
		}
	}
	return accepted
}

// Disable removes the machine from every backend.
func (h *Host) Disable(id string) {
	h.backendMu.Lock()
	defer h.backendMu.Unlock()

	for _, b := range h.backends {
		h.safeDisable(b, id)
	}
}

// State returns the first non-nil state any backend reports for the id.
func (h *Host) State(id string) any {
	h.backendMu.Lock()
	defer h.backendMu.Unlock()

	for _, b := range h.backends {
		if state := b.State(id); state != nil {
			return state
		}
	}
	return nil
}

// Start spawns the single consumer goroutine.
func (h *Host) Start() error {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	if h.running {
		return ErrAlreadyRunning
	}

	h.stop = make(chan struct{})
	h.done = make(chan struct{})
	h.running = true

	go h.consume()

	h.logger.Info("engine host started", "queue_size", cap(h.queue))
	return nil
}

// Stop disables the queue (pending and future posts fail fast), signals
// the consumer, and blocks until the in-flight message has finished.
// Messages still queued at stop time are discarded.
func (h *Host) Stop() error {
	h.stateMu.Lock()
	if !h.running {
		h.stateMu.Unlock()
		return ErrNotRunning
	}
	h.running = false
	close(h.stop)
	done := h.done
	h.stateMu.Unlock()

	<-done

	h.backendMu.Lock()
	for _, b := range h.backends {
		b.Destroy()
	}
	h.backendMu.Unlock()

	h.logger.Info("engine host stopped")
	return nil
}

// consume is the single message-processing goroutine.
func (h *Host) consume() {
	defer close(h.done)

	for {
		select {
		case <-h.stop:
			return
		case msg := <-h.queue:
			h.process(msg)
		}
	}
}

// process fans one message out to every backend in registration order.
func (h *Host) process(msg Message) {
	start := time.Now()

	h.backendMu.Lock()
	backendCount := len(h.backends)
	var dropped int
	for _, b := range h.backends {
		results := h.safeProcess(b, msg)
		for _, res := range results {
			if h.activity != nil {
				h.activity.RecordActivity(res.MachineID, 1, len(res.Actions))
			}
			for _, action := range res.Actions {
				if h.sink == nil {
					dropped++
					continue
				}
				h.sink.Post(action)
			}
		}
	}
	h.backendMu.Unlock()

	elapsed := time.Since(start)
	if elapsed > h.slowWarn {
		h.logger.Warn("slow message processing",
			"elapsed_ms", elapsed.Milliseconds(),
			"budget_ms", h.slowWarn.Milliseconds(),
			"backends", backendCount)
	}
	if dropped > 0 {
		h.logger.Debug("emitted actions discarded by host", "count", dropped)
	}
	if h.metrics != nil {
		h.metrics.WriteEngineLatency(backendCount, float64(elapsed.Microseconds())/1000.0)
	}
}

// safeProcess isolates a panicking backend: the failure is logged and
// the remaining backends still see the message.
func (h *Host) safeProcess(b Backend, msg Message) (results []Result) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("engine backend panic in Process",
				"backend", b.Name(), "panic", r)
			results = nil
		}
	}()
	return b.Process(msg)
}

func (h *Host) safeEnable(b Backend, id, spec string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("engine backend panic in Enable",
				"backend", b.Name(), "panic", r)
			ok = false
		}
	}()
	return b.Enable(id, spec)
}

func (h *Host) safeDisable(b Backend, id string) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("engine backend panic in Disable",
				"backend", b.Name(), "panic", r)
		}
	}()
	b.Disable(id)
}
