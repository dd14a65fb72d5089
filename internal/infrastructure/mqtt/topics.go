package mqtt

// Topics provides builders for Hearth's MQTT topic structure.
//
// Topic layout:
//
//	hearth/system/status               - hub online/offline (retained, LWT)
//	hearth/system/time                 - periodic time broadcast
//	hearth/core/event/{type}           - lifecycle and domain events
//	hearth/state/{device}              - device state reports (retained)
//	hearth/request/{service}/{reqID}   - request to an attached service
//	hearth/response/{service}/{reqID}  - response from an attached service
//	hearth/command/{service}/{target}  - fire-and-forget command to a service
//
// Services are the external processes the hub talks to over the broker:
// device adapters, camera recorders, notification relays and peer hubs.
// Request/response pairs are correlated by the request ID segment.
type Topics struct{}

const topicPrefix = "hearth"

// SystemStatus returns the hub status topic. Published retained with
// "online"/"offline" payloads; the LWT publishes "offline" here.
func (t Topics) SystemStatus() string {
	return topicPrefix + "/system/status"
}

// SystemTime returns the topic for periodic time broadcasts.
func (t Topics) SystemTime() string {
	return topicPrefix + "/system/time"
}

// CoreEvent returns the topic for a hub lifecycle or domain event.
// Event types include automation_created, automation_deleted,
// automation_modified and media_uploaded.
func (t Topics) CoreEvent(eventType string) string {
	return topicPrefix + "/core/event/" + eventType
}

// DeviceState returns the retained state topic for a device.
func (t Topics) DeviceState(deviceID string) string {
	return topicPrefix + "/state/" + deviceID
}

// ServiceRequest returns the request topic for an attached service.
// The request ID segment correlates the response.
func (t Topics) ServiceRequest(service, requestID string) string {
	return topicPrefix + "/request/" + service + "/" + requestID
}

// ServiceResponse returns the response topic for a request.
func (t Topics) ServiceResponse(service, requestID string) string {
	return topicPrefix + "/response/" + service + "/" + requestID
}

// ServiceCommand returns the fire-and-forget command topic for a service.
func (t Topics) ServiceCommand(service, target string) string {
	return topicPrefix + "/command/" + service + "/" + target
}

// Wildcard subscription patterns.

// AllCoreEvents matches every hub event.
func (t Topics) AllCoreEvents() string {
	return topicPrefix + "/core/event/+"
}

// AllDeviceStates matches every device state report.
func (t Topics) AllDeviceStates() string {
	return topicPrefix + "/state/+"
}

// AllServiceResponses matches every response from one service.
func (t Topics) AllServiceResponses(service string) string {
	return topicPrefix + "/response/" + service + "/+"
}

// AllTopics matches everything under the hearth prefix. Debug use only.
func (t Topics) AllTopics() string {
	return topicPrefix + "/#"
}
