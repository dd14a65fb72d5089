// Package ticker posts synthetic clock messages into the engine host.
//
// One dedicated goroutine sleeps until the next minute boundary and
// posts {"event":"clock.tick","period":"minute"} on each expiry, never
// on cancellation. Automations use these ticks for time-based triggers.
package ticker

import (
	"time"

	"github.com/hearth-home/hearth-core/internal/engine"
)

// Logger defines the logging interface used by the ticker.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Poster receives tick messages. Satisfied by *engine.Host.
type Poster interface {
	Post(msg engine.Message) bool
}

// Minute posts a tick message at every minute boundary.
type Minute struct {
	poster Poster
	logger Logger

	stop chan struct{}
	done chan struct{}

	// now and interval are swappable for tests.
	now      func() time.Time
	interval time.Duration
}

// NewMinute creates a minute ticker posting into the given poster.
func NewMinute(poster Poster) *Minute {
	return &Minute{
		poster:   poster,
		logger:   noopLogger{},
		now:      time.Now,
		interval: time.Minute,
	}
}

// SetLogger sets the logger for the ticker.
func (m *Minute) SetLogger(logger Logger) {
	m.logger = logger
}

// Start spawns the tick goroutine.
func (m *Minute) Start() {
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.run()
}

// Stop signals the goroutine and waits for it to exit. No tick is
// posted on cancellation.
func (m *Minute) Stop() {
	if m.stop == nil {
		return
	}
	close(m.stop)
	<-m.done
	m.stop = nil
}

// run sleeps until each period boundary and posts the tick.
func (m *Minute) run() {
	defer close(m.done)

	for {
		wait := m.untilNextBoundary()

		timer := time.NewTimer(wait)
		select {
		case <-m.stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		if !m.poster.Post(engine.Message{"event": "clock.tick", "period": "minute"}) {
			m.logger.Warn("clock tick dropped, engine not accepting")
		}
	}
}

// untilNextBoundary returns the remaining time in the current period.
func (m *Minute) untilNextBoundary() time.Duration {
	now := m.now()
	next := now.Truncate(m.interval).Add(m.interval)
	return next.Sub(now)
}
