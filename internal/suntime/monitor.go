package suntime

import (
	"math/rand"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Monitor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Fallback sun times when no computation has ever succeeded.
const (
	defaultSunriseHour = 7
	defaultSunsetHour  = 19
)

// Options configures a Monitor.
type Options struct {
	Latitude  float64
	Longitude float64

	// Location resolves "local midnight" for rescheduling and the
	// fallback times. Defaults to time.Local.
	Location *time.Location

	// InitialDelay before the first computation. Defaults to 5s.
	InitialDelay time.Duration

	// RetryDelay after a failed computation (one minute is added).
	// Defaults to 30s.
	RetryDelay time.Duration

	// Entropy bounds the random minute after local midnight at which
	// the daily recomputation runs, spreading the load across a fleet
	// of hubs. Defaults to 20 minutes.
	Entropy time.Duration
}

// Monitor periodically recomputes sunrise/sunset and exposes the latest
// pair to the engine's message-enrichment step.
//
// On a failed computation the monitor falls back to the previous day's
// hour and minute recomputed for today, or to fixed 07:00/19:00 local
// defaults when no value has ever been computed. The next daily run is
// scheduled at a random minute after local midnight, bounded by the
// entropy option; after a failure it retries sooner.
type Monitor struct {
	provider Provider
	opts     Options

	// rng supplies the rescheduling jitter. Injected so tests can seed
	// it deterministically.
	rng   *rand.Rand
	rngMu sync.Mutex

	mu        sync.RWMutex
	sunriseAt time.Time
	sunsetAt  time.Time
	computed  bool

	stop chan struct{}
	done chan struct{}

	logger Logger
}

// NewMonitor creates a sun-time monitor. The rng drives rescheduling
// jitter; pass a seeded source in tests for determinism.
func NewMonitor(provider Provider, rng *rand.Rand, opts Options) *Monitor {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 5 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 30 * time.Second
	}
	if opts.Entropy <= 0 {
		opts.Entropy = 20 * time.Minute
	}

	return &Monitor{
		provider: provider,
		opts:     opts,
		rng:      rng,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the monitor.
func (m *Monitor) SetLogger(logger Logger) {
	m.logger = logger
}

// Sun returns the latest sunrise/sunset pair as epoch milliseconds.
// Satisfies the engine host's SunSource. Before the first computation
// it returns the fixed defaults for today.
func (m *Monitor) Sun() (int64, int64) {
	rise, set := m.SunTimes()
	return rise.UnixMilli(), set.UnixMilli()
}

// SunTimes returns the latest sunrise/sunset pair.
func (m *Monitor) SunTimes() (time.Time, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.computed {
		now := time.Now().In(m.opts.Location)
		return defaultTimes(now, m.opts.Location)
	}
	return m.sunriseAt, m.sunsetAt
}

// Start spawns the recomputation goroutine.
func (m *Monitor) Start() {
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.run()
}

// Stop signals the goroutine and waits for it to exit.
func (m *Monitor) Stop() {
	if m.stop == nil {
		return
	}
	close(m.stop)
	<-m.done
	m.stop = nil
}

// run is the recomputation loop: initial delay, then refresh and
// reschedule until stopped.
func (m *Monitor) run() {
	defer close(m.done)

	wait := m.opts.InitialDelay
	for {
		select {
		case <-m.stop:
			return
		case <-time.After(wait):
		}

		ok := m.Refresh()
		wait = m.nextDelay(time.Now().In(m.opts.Location), ok)
		m.logger.Debug("sun recomputation scheduled", "in", wait.String(), "success", ok)
	}
}

// Refresh recomputes sunrise/sunset once, applying the fallback rules on
// failure. Returns whether the provider call succeeded.
func (m *Monitor) Refresh() bool {
	now := time.Now().In(m.opts.Location)

	rise, set, err := m.provider.SunTimes(now, m.opts.Latitude, m.opts.Longitude)
	if err != nil {
		rise, set = m.fallbackTimes(now)
		m.logger.Warn("sun computation failed, using fallback",
			"error", err, "sunrise", rise.Format(time.RFC3339), "sunset", set.Format(time.RFC3339))
	}

	m.mu.Lock()
	m.sunriseAt = rise
	m.sunsetAt = set
	m.computed = true
	m.mu.Unlock()

	if err == nil {
		m.logger.Info("sun times updated",
			"sunrise", rise.Format(time.RFC3339), "sunset", set.Format(time.RFC3339))
	}
	return err == nil
}

// fallbackTimes reuses the previous computation's hour/minute for today,
// or the fixed defaults when nothing was ever computed.
func (m *Monitor) fallbackTimes(now time.Time) (time.Time, time.Time) {
	m.mu.RLock()
	prevRise, prevSet, computed := m.sunriseAt, m.sunsetAt, m.computed
	m.mu.RUnlock()

	if !computed {
		return defaultTimes(now, m.opts.Location)
	}

	loc := m.opts.Location
	pr := prevRise.In(loc)
	ps := prevSet.In(loc)
	rise := time.Date(now.Year(), now.Month(), now.Day(), pr.Hour(), pr.Minute(), 0, 0, loc)
	set := time.Date(now.Year(), now.Month(), now.Day(), ps.Hour(), ps.Minute(), 0, 0, loc)
	return rise, set
}

// defaultTimes returns 07:00/19:00 local for the given day.
func defaultTimes(now time.Time, loc *time.Location) (time.Time, time.Time) {
	rise := time.Date(now.Year(), now.Month(), now.Day(), defaultSunriseHour, 0, 0, 0, loc)
	set := time.Date(now.Year(), now.Month(), now.Day(), defaultSunsetHour, 0, 0, 0, loc)
	return rise, set
}

// nextDelay computes the wait until the next recomputation: a random
// minute after the coming local midnight on success, a short fixed
// retry (plus one minute) on failure.
func (m *Monitor) nextDelay(now time.Time, success bool) time.Duration {
	if !success {
		return m.opts.RetryDelay + time.Minute
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, m.opts.Location).AddDate(0, 0, 1)

	entropyMinutes := int(m.opts.Entropy / time.Minute)
	var jitter time.Duration
	if entropyMinutes > 0 {
		m.rngMu.Lock()
		jitter = time.Duration(m.rng.Intn(entropyMinutes)) * time.Minute
		m.rngMu.Unlock()
	}

	return midnight.Sub(now) + jitter
}
