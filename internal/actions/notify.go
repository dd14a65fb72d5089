package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hearth-home/hearth-core/internal/infrastructure/mqtt"
)

const notificationService = "notification"

// notifyParams is the params shape for notify.send.
type notifyParams struct {
	Message     string   `json:"message"`
	Title       string   `json:"title,omitempty"`
	Subscribers []string `json:"subscribers,omitempty"`

	// Media, when present, makes the send wait for a matching upload.
	Media *notifyMedia `json:"media,omitempty"`
}

// notifyMedia identifies the upload the notification wants attached.
type notifyMedia struct {
	Type        string `json:"type"`
	RuleID      string `json:"ruleId"`
	EventID     string `json:"eventId"`
	WaitSeconds int    `json:"waitSeconds,omitempty"`
}

// NotifyHandler serves notify.send: it publishes a subscriber
// notification command, optionally after rendezvousing with the
// media-upload feed so a just-captured snapshot or clip rides along.
//
// A media wait that times out is a normal outcome: the notification
// still goes out, without the attachment, and the result reports the
// timeout so the automation can react.
type NotifyHandler struct {
	bus    Bus
	media  *MediaWaitList
	qos    byte
	logger Logger

	// defaultWait bounds the media rendezvous when the action does not
	// name its own waitSeconds.
	defaultWait time.Duration
}

// NewNotifyHandler creates a notification handler on the given bus and
// wait list.
func NewNotifyHandler(bus Bus, media *MediaWaitList) *NotifyHandler {
	return &NotifyHandler{
		bus:         bus,
		media:       media,
		qos:         1,
		logger:      noopLogger{},
		defaultWait: 15 * time.Second,
	}
}

// SetLogger sets the logger for the handler.
func (h *NotifyHandler) SetLogger(logger Logger) {
	h.logger = logger
}

// Send publishes one notification.
// Params: {message, title?, subscribers?, media?: {type, ruleId, eventId, waitSeconds?}}.
func (h *NotifyHandler) Send(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var p notifyParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if p.Message == "" {
		return nil, fmt.Errorf("%w: missing message", ErrInvalidParams)
	}

	outbound := map[string]any{"message": p.Message}
	if p.Title != "" {
		outbound["title"] = p.Title
	}
	if len(p.Subscribers) > 0 {
		outbound["subscribers"] = p.Subscribers
	}

	mediaAttached := false
	mediaTimedOut := false
	if p.Media != nil {
		if p.Media.Type != MediaPicture && p.Media.Type != MediaVideo {
			return nil, fmt.Errorf("%w: unknown media type %q", ErrInvalidParams, p.Media.Type)
		}

		upload, ok := h.media.WaitFor(p.Media.Type, p.Media.RuleID, p.Media.EventID, h.waitTimeout(ctx, p.Media))
		if ok {
			mediaAttached = true
			outbound["media"] = map[string]any{
				"type":            upload.MediaType,
				"uploadedEventId": upload.UploadedEventID,
				"ruleId":          upload.RuleID,
			}
		} else {
			mediaTimedOut = true
			h.logger.Info("notification media wait timed out, sending without attachment",
				"media_type", p.Media.Type, "rule_id", p.Media.RuleID, "event_id", p.Media.EventID)
		}
	}

	payload, err := json.Marshal(outbound)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	topic := mqtt.Topics{}.ServiceCommand(notificationService, "send")
	if err := h.bus.Publish(topic, payload, h.qos, false); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	result := map[string]any{
		"sent":          true,
		"mediaAttached": mediaAttached,
	}
	if mediaTimedOut {
		result["mediaTimedOut"] = true
	}
	return json.Marshal(result)
}

// waitTimeout resolves the media rendezvous bound: the action's own
// waitSeconds, capped by the dispatcher's per-action deadline.
func (h *NotifyHandler) waitTimeout(ctx context.Context, media *notifyMedia) time.Duration {
	timeout := h.defaultWait
	if media.WaitSeconds > 0 {
		timeout = time.Duration(media.WaitSeconds) * time.Second
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	return timeout
}
