package dispatch

import "errors"

// Domain errors for the dispatch package.
var (
	// ErrInvalidRequest is returned when an action lacks a method name
	// or is not a JSON object.
	ErrInvalidRequest = errors.New("dispatch: invalid request")

	// ErrAlreadyRunning is returned when Start is called twice.
	ErrAlreadyRunning = errors.New("dispatch: already running")

	// ErrNotRunning is returned when Stop is called on a stopped dispatcher.
	ErrNotRunning = errors.New("dispatch: not running")
)

// noHandlerMessage is the synthesized error text when no handler is
// registered for a request's method. Carried verbatim in the error
// response so specifications can branch on it.
const noHandlerMessage = "no handler registered for target"
