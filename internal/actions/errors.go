package actions

import "errors"

// Sentinel errors for action handlers.
var (
	// ErrInvalidParams indicates the action's params were missing a
	// required field or could not be decoded.
	ErrInvalidParams = errors.New("actions: invalid parameters")

	// ErrRequestTimeout indicates a service did not respond to an RPC
	// before the action's context expired.
	ErrRequestTimeout = errors.New("actions: request timed out")

	// ErrPublishFailed indicates the outbound message could not be
	// handed to the broker.
	ErrPublishFailed = errors.New("actions: publish failed")
)
