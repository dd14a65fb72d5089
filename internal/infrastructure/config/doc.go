// Package config loads, defaults and validates the Hearth Core
// configuration.
//
// A single YAML file describes the whole hub: site identity and
// coordinates, the SQLite path, the MQTT broker, the operator API,
// metrics, logging, and the tuning knobs for the engine, dispatcher
// and sun monitor. Values merge in three layers: built-in defaults,
// then the file, then HEARTH_* environment variables. Credentials
// belong in the environment layer.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//
// Loading happens once at startup; the resulting Config is read-only
// afterwards.
package config
