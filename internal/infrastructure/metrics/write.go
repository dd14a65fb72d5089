package metrics

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names. Tags stay low-cardinality: method names and
// machine ids, never request ids or payloads.
const (
	measurementEngineLatency   = "engine_latency"
	measurementActionResults   = "action_results"
	measurementMachineActivity = "machine_activity"
)

func (c *Client) emit(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writes.WritePoint(p)
}

// WriteEngineLatency records one message's trip through the engine,
// from dequeue to the last backend returning.
func (c *Client) WriteEngineLatency(backends int, latencyMS float64) {
	c.emit(write.NewPoint(measurementEngineLatency,
		nil,
		map[string]interface{}{
			"latency_ms": latencyMS,
			"backends":   backends,
		},
		time.Now()))
}

// WriteActionResult records the outcome and duration of one dispatched
// action, tagged by method (device.write, notify.send, ...).
func (c *Client) WriteActionResult(method string, durationMS float64, success bool) {
	c.emit(write.NewPoint(measurementActionResults,
		map[string]string{"method": method},
		map[string]interface{}{
			"duration_ms": durationMS,
			"success":     success,
		},
		time.Now()))
}

// WriteMachineActivity records a machine's cumulative consumed/emitted
// counters. Emitted on counter flushes, not per message.
func (c *Client) WriteMachineActivity(machineID string, consumed, emitted int64) {
	c.emit(write.NewPoint(measurementMachineActivity,
		map[string]string{"machine_id": machineID},
		map[string]interface{}{
			"consumed": consumed,
			"emitted":  emitted,
		},
		time.Now()))
}
