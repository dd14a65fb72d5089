package actions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hearth-home/hearth-core/internal/infrastructure/mqtt"
)

// ipcParams is the params shape for ipc.forward.
type ipcParams struct {
	Target  string          `json:"target"`
	Payload json.RawMessage `json:"payload"`
}

// IPCHandler serves ipc.forward: a generic escape hatch publishing a
// payload verbatim to another service's command topic, for service
// integrations no dedicated handler covers yet.
type IPCHandler struct {
	bus    Bus
	qos    byte
	logger Logger
}

// NewIPCHandler creates an IPC passthrough handler on the given bus.
func NewIPCHandler(bus Bus) *IPCHandler {
	return &IPCHandler{bus: bus, qos: 1, logger: noopLogger{}}
}

// SetLogger sets the logger for the handler.
func (h *IPCHandler) SetLogger(logger Logger) {
	h.logger = logger
}

// Forward publishes the payload verbatim to the target service's
// command topic. Params: {target, payload}.
func (h *IPCHandler) Forward(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
	var p ipcParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if p.Target == "" {
		return nil, fmt.Errorf("%w: missing target", ErrInvalidParams)
	}
	if len(p.Payload) == 0 {
		return nil, fmt.Errorf("%w: missing payload", ErrInvalidParams)
	}

	topic := mqtt.Topics{}.ServiceCommand(p.Target, "forward")
	if err := h.bus.Publish(topic, p.Payload, h.qos, false); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	h.logger.Debug("ipc payload forwarded", "target", p.Target, "bytes", len(p.Payload))

	return json.Marshal(map[string]any{"forwarded": true, "topic": topic})
}
