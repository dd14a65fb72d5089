// Package metrics records Hearth runtime telemetry in InfluxDB.
//
// It wraps the InfluxDB v2 Go client with non-blocking batched writes:
// points are buffered in memory and flushed on a timer, so recording a
// metric never blocks the engine or dispatcher hot paths.
//
// Measurements:
//   - engine_latency: per-message delivery latency through the engine
//   - action_results: outcome and duration of dispatched actions
//   - machine_activity: consumed/emitted counters per automation
//
// Metrics are optional. When disabled in config, Connect returns
// ErrDisabled and callers run without a client; all write helpers are
// no-ops on a disconnected client.
//
//	client, err := metrics.Connect(cfg.InfluxDB)
//	if err != nil && !errors.Is(err, metrics.ErrDisabled) {
//	    return err
//	}
//	if client != nil {
//	    defer client.Close()
//	    client.WriteEngineLatency(3, 12.5)
//	}
package metrics
