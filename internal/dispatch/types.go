package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hearth-home/hearth-core/internal/engine"
)

// Request is the JSON-RPC-shaped action emitted by engine backends.
//
// Presence of an id distinguishes request/response actions from
// fire-and-forget ones: only id-carrying requests produce a response
// message back into the engine. The id may be any JSON scalar and is
// echoed verbatim.
type Request struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// HasID reports whether the request expects a response.
func (r *Request) HasID() bool {
	return len(r.ID) > 0 && string(r.ID) != "null"
}

// Validate checks the minimal request shape.
func (r *Request) Validate() error {
	if r.Method == "" {
		return fmt.Errorf("%w: missing method", ErrInvalidRequest)
	}
	return nil
}

// Handler executes one action. The returned raw JSON becomes the
// response result for id-carrying requests; a returned error becomes a
// JSON-RPC error response instead. Handlers run on pool workers and
// must honour ctx cancellation on blocking work.
type Handler func(ctx context.Context, params json.RawMessage) (json.RawMessage, error)

// Poster re-injects response messages into the engine host.
// Satisfied by *engine.Host.
type Poster interface {
	Post(msg engine.Message) bool
}

// ActionRecorder receives per-action outcome metrics. Optional.
type ActionRecorder interface {
	WriteActionResult(method string, durationMS float64, success bool)
}

// successResponse builds the {id, result} message for the engine.
func successResponse(id, result json.RawMessage) engine.Message {
	return engine.Message{
		"id":     rawToAny(id),
		"result": rawToAny(result),
	}
}

// errorResponse builds the {id, error:{message}} message for the engine.
// The original request id is always carried for correlation.
func errorResponse(id json.RawMessage, message string) engine.Message {
	return engine.Message{
		"id":    rawToAny(id),
		"error": map[string]any{"message": message},
	}
}

// rawToAny decodes raw JSON into plain Go values for the message map.
// Invalid or empty raw JSON decodes to nil.
func rawToAny(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
