package machine

import (
	"fmt"
	"strings"
)

// Transcoder converts an incoming automation specification of unknown or
// legacy shape into the canonical shape a registered engine backend
// understands. The version tags every transcoded machine; on load, machines
// with a stale version are re-transcoded from their original text.
type Transcoder interface {
	// Version identifies the transcoder revision. Persisted per machine.
	Version() int

	// Transcode converts spec text to canonical form. An error means the
	// text cannot be expressed in the canonical dialect.
	Transcode(spec string) (string, error)
}

// PassthroughTranscoder is the identity transcoder: specifications are
// already in the canonical dialect and pass through untouched, apart from
// whitespace trimming. Used when no legacy formats are in circulation.
type PassthroughTranscoder struct {
	version int
}

// NewPassthroughTranscoder creates a passthrough transcoder tagged with the
// given version.
func NewPassthroughTranscoder(version int) *PassthroughTranscoder {
	return &PassthroughTranscoder{version: version}
}

// Version returns the configured version tag.
func (t *PassthroughTranscoder) Version() int {
	return t.version
}

// Transcode trims and returns the specification unchanged.
func (t *PassthroughTranscoder) Transcode(spec string) (string, error) {
	trimmed := strings.TrimSpace(spec)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty specification", ErrTranscodeFailed)
	}
	return trimmed, nil
}
