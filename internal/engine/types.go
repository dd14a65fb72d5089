package engine

import "encoding/json"

// Message is an arbitrary JSON object fed through the engine: an external
// event, a timer tick, or an action-handler response being re-injected.
// Messages are immutable once queued; Post copies them before enqueue.
type Message map[string]any

// Result reports one machine's activity for a processed message: the
// machine consumed the message and emitted zero or more actions.
type Result struct {
	MachineID string
	Actions   []json.RawMessage
}

// Backend is a pluggable state-machine interpreter. Each backend owns
// enabling, disabling and stepping its own machines for one specification
// dialect. A given machine id is owned by exactly one backend: the one
// whose Enable accepted the spec.
//
// Process is only ever called from the host's single consumer goroutine,
// so implementations need no internal locking against concurrent Process
// calls. Enable/Disable/State may be called from other goroutines and
// are serialized by the host.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// Enable registers a machine spec. Returns false when this backend
	// does not understand the specification dialect.
	Enable(id, spec string) bool

	// Disable removes a machine. Unknown ids are ignored.
	Disable(id string)

	// Process steps every enabled machine against the message and
	// reports per-machine activity.
	Process(msg Message) []Result

	// State returns an opaque snapshot of one machine's interpreter
	// state, or nil when the id is unknown to this backend.
	State(id string) any

	// Destroy releases all interpreter state. Called once at shutdown.
	Destroy()
}

// SunSource provides the latest computed sunrise/sunset pair used to
// enrich messages before they are queued.
type SunSource interface {
	// Sun returns sunrise and sunset as epoch milliseconds.
	Sun() (sunriseMS, sunsetMS int64)
}

// ActivityRecorder receives per-machine bookkeeping from message
// processing. Implemented by the machine registry.
type ActivityRecorder interface {
	RecordActivity(id string, consumed, emitted int)
}

// ActionSink receives the actions machines emit during processing.
// Implemented by the action dispatcher; without a sink, emitted actions
// are discarded.
type ActionSink interface {
	Post(raw json.RawMessage)
}

// LatencyRecorder receives per-message processing latency. Implemented
// by the metrics client; optional.
type LatencyRecorder interface {
	WriteEngineLatency(backends int, latencyMS float64)
}

// copyMessage creates a deep copy of a message. Nested maps and slices
// are recursively copied so the caller's object can be mutated freely
// after Post returns.
func copyMessage(msg Message) Message {
	if msg == nil {
		return nil
	}
	cpy := make(Message, len(msg)+3)
	for k, v := range msg {
		cpy[k] = copyValue(v)
	}
	return cpy
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		cpy := make(map[string]any, len(val))
		for k, elem := range val {
			cpy[k] = copyValue(elem)
		}
		return cpy
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = copyValue(elem)
		}
		return cpy
	default:
		return v // Primitives are immutable
	}
}
