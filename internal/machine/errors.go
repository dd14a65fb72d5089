package machine

import "errors"

// Domain errors for the machine package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, machine.ErrMachineNotFound) {
//	    // handle not found case
//	}
var (
	// ErrInvalidArgument is returned when an id or specification is empty.
	ErrInvalidArgument = errors.New("machine: invalid argument")

	// ErrMachineExists is returned when adding a machine with an id that
	// already exists. Add never implicitly updates.
	ErrMachineExists = errors.New("machine: already exists")

	// ErrMachineNotFound is returned when a machine id does not exist.
	ErrMachineNotFound = errors.New("machine: not found")

	// ErrTranscodeFailed is returned when a specification cannot be
	// converted to canonical form. Fatal to the one call, never to the runtime.
	ErrTranscodeFailed = errors.New("machine: transcode failed")

	// ErrPersistenceFailed is returned when a storage read/write fails.
	ErrPersistenceFailed = errors.New("machine: persistence failed")
)
