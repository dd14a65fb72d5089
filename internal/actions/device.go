package actions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/hearth-home/hearth-core/internal/infrastructure/mqtt"
)

const deviceService = "device"

// deviceParams is the common params shape for device actions.
//
// URI addresses a device resource (e.g. "zigbee/light-living/brightness").
// Value carries the payload for writes, Args for executes; both are
// forwarded verbatim.
type deviceParams struct {
	URI   string          `json:"uri"`
	Value json.RawMessage `json:"value,omitempty"`
	Args  json.RawMessage `json:"args,omitempty"`
}

// DeviceHandler serves device.read, device.write and device.execute via
// request/response RPC with the device service over the broker.
//
// Each call publishes to the request topic with a fresh correlation id
// and subscribes to the matching response topic; the dispatcher's
// per-action context bounds the wait.
type DeviceHandler struct {
	bus    Bus
	qos    byte
	logger Logger
}

// NewDeviceHandler creates a device action handler on the given bus.
func NewDeviceHandler(bus Bus) *DeviceHandler {
	return &DeviceHandler{bus: bus, qos: 1, logger: noopLogger{}}
}

// SetLogger sets the logger for the handler.
func (h *DeviceHandler) SetLogger(logger Logger) {
	h.logger = logger
}

// Read reads a device resource. Params: {uri}.
func (h *DeviceHandler) Read(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	return h.call(ctx, "read", params)
}

// Write writes a device resource. Params: {uri, value}.
func (h *DeviceHandler) Write(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	return h.call(ctx, "write", params)
}

// Execute invokes a device resource command. Params: {uri, args}.
func (h *DeviceHandler) Execute(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	return h.call(ctx, "execute", params)
}

// call runs one request/response round trip with the device service.
func (h *DeviceHandler) call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	var p deviceParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if p.URI == "" {
		return nil, fmt.Errorf("%w: missing uri", ErrInvalidParams)
	}

	requestID := uuid.NewString()
	topics := mqtt.Topics{}
	responseTopic := topics.ServiceResponse(deviceService, requestID)

	responses := make(chan []byte, 1)
	err := h.bus.Subscribe(responseTopic, h.qos, func(_ string, payload []byte) error {
		select {
		case responses <- payload:
		default: // duplicate response, first one wins
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	defer func() {
		if err := h.bus.Unsubscribe(responseTopic); err != nil {
			h.logger.Warn("device response unsubscribe failed", "topic", responseTopic, "error", err)
		}
	}()

	request, err := json.Marshal(map[string]any{
		"method": method,
		"uri":    p.URI,
		"value":  rawOrNil(p.Value),
		"args":   rawOrNil(p.Args),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	if err := h.bus.Publish(topics.ServiceRequest(deviceService, requestID), request, h.qos, false); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	select {
	case payload := <-responses:
		return json.RawMessage(payload), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: device.%s %s", ErrRequestTimeout, method, p.URI)
	}
}

// rawOrNil decodes raw JSON for embedding in an outbound request map.
func rawOrNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
