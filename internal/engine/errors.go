package engine

import "errors"

// Domain errors for the engine package.
var (
	// ErrAlreadyRunning is returned when Start is called on a running host.
	ErrAlreadyRunning = errors.New("engine: already running")

	// ErrNotRunning is returned when Stop is called on a stopped host.
	ErrNotRunning = errors.New("engine: not running")

	// ErrRunning is returned when Register is called after Start.
	// Backends are not removable or addable at runtime.
	ErrRunning = errors.New("engine: cannot register while running")
)
