package actions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/hearth-home/hearth-core/internal/infrastructure/mqtt"
)

const cameraService = "camera"

// cameraParams is the params shape for camera capture actions.
type cameraParams struct {
	CameraID string `json:"cameraId"`
	RuleID   string `json:"ruleId,omitempty"`

	// DurationSeconds applies to clips only.
	DurationSeconds int `json:"durationSeconds,omitempty"`
}

// CameraHandler serves camera.snapshot and camera.clip by publishing a
// capture-upload request to the camera service. The capture itself is
// asynchronous: the service uploads the artifact and announces it on
// the media-uploaded event feed, where the notification handler's
// wait list can pick it up by the event id returned here.
type CameraHandler struct {
	bus    Bus
	qos    byte
	logger Logger

	// newEventID is swappable for tests.
	newEventID func() string
}

// NewCameraHandler creates a camera action handler on the given bus.
func NewCameraHandler(bus Bus) *CameraHandler {
	return &CameraHandler{
		bus:        bus,
		qos:        1,
		logger:     noopLogger{},
		newEventID: uuid.NewString,
	}
}

// SetLogger sets the logger for the handler.
func (h *CameraHandler) SetLogger(logger Logger) {
	h.logger = logger
}

// Snapshot requests a still capture. Params: {cameraId, ruleId?}.
func (h *CameraHandler) Snapshot(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	return h.capture(ctx, "snapshot", params)
}

// Clip requests a video capture. Params: {cameraId, ruleId?, durationSeconds?}.
func (h *CameraHandler) Clip(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	return h.capture(ctx, "clip", params)
}

// capture publishes one capture-upload request and acknowledges it with
// the correlation event id.
func (h *CameraHandler) capture(_ context.Context, action string, params json.RawMessage) (json.RawMessage, error) {
	var p cameraParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if p.CameraID == "" {
		return nil, fmt.Errorf("%w: missing cameraId", ErrInvalidParams)
	}

	eventID := h.newEventID()

	request := map[string]any{
		"action":  action,
		"eventId": eventID,
	}
	if p.RuleID != "" {
		request["ruleId"] = p.RuleID
	}
	if action == "clip" && p.DurationSeconds > 0 {
		request["durationSeconds"] = p.DurationSeconds
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	topic := mqtt.Topics{}.ServiceCommand(cameraService, p.CameraID)
	if err := h.bus.Publish(topic, payload, h.qos, false); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	h.logger.Debug("camera capture requested",
		"camera", p.CameraID, "action", action, "event_id", eventID)

	return json.Marshal(map[string]any{
		"requested": true,
		"cameraId":  p.CameraID,
		"eventId":   eventID,
	})
}
