package machine

import "time"

// Machine is one automation instance: a caller-assigned id, the canonical
// specification consumed by an engine backend, and lifecycle bookkeeping.
//
// The canonical specification is the post-transcode text. When the original
// submission differed from the canonical form, the original is retained so
// the machine can be re-transcoded when the transcoder version changes.
type Machine struct {
	// Identity
	ID string `json:"id"`

	// Canonical (post-transcode) specification text.
	Specification string `json:"specification"`

	// Pre-transcode text, retained for future re-transcoding (optional).
	OriginalSpecification *string `json:"original_specification,omitempty"`

	// Version of the transcoder that produced Specification.
	TranscoderVersion int `json:"transcoder_version"`

	// Only enabled machines are registered with engine backends.
	Enabled bool `json:"enabled"`

	// Bookkeeping, exposed read-only.
	DateCreated      time.Time `json:"date_created"`
	MessagesConsumed int64     `json:"messages_consumed"`
	MessagesEmitted  int64     `json:"messages_emitted"`
}

// Summary is the read-only listing shape for a machine.
type Summary struct {
	ID               string    `json:"id"`
	Enabled          bool      `json:"enabled"`
	DateCreated      time.Time `json:"date_created"`
	MessagesConsumed int64     `json:"messages_consumed"`
	MessagesEmitted  int64     `json:"messages_emitted"`
}

// DeepCopy creates a complete independent copy of the Machine.
// Pointer fields are cloned so modifications to the copy do not
// affect the original. This is essential for cache isolation.
func (m *Machine) DeepCopy() *Machine {
	if m == nil {
		return nil
	}

	cpy := *m // Shallow copy of value fields
	cpy.OriginalSpecification = cloneStringPtr(m.OriginalSpecification)
	return &cpy
}

// Summary returns the listing shape for this machine.
func (m *Machine) Summary() Summary {
	return Summary{
		ID:               m.ID,
		Enabled:          m.Enabled,
		DateCreated:      m.DateCreated,
		MessagesConsumed: m.MessagesConsumed,
		MessagesEmitted:  m.MessagesEmitted,
	}
}

// cloneStringPtr creates an independent copy of a *string.
func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
