// Package logging configures the structured logger shared by every
// Hearth Core component.
//
// It is a thin wrapper over log/slog: New picks the handler (json or
// text), the destination and the minimum level from configuration,
// then stamps service and version onto every record. Levels, formats
// and outputs come from the logging block of config.yaml:
//
//	logging:
//	  level: "info"
//	  format: "json"
//	  output: "stdout"
//
// Secrets never belong in log fields. When a credential must be
// referenced, log a short prefix only.
package logging
