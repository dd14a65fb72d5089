package machine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
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

// EngineControl is the slice of the engine host the registry drives.
// Registry mutations always happen-before the enable/disable call they
// trigger; the engine never reaches back into the registry map.
type EngineControl interface {
	// Enable registers a machine spec with the engine backends.
	// Returns true if any backend accepted the specification.
	Enable(id, spec string) bool

	// Disable removes a machine from all backends.
	Disable(id string)
}

// EventPublisher broadcasts machine lifecycle events to interested
// services (automation_created, automation_deleted, automation_modified).
type EventPublisher interface {
	PublishEvent(eventType string, payload map[string]any)
}

// noopPublisher discards events. Used until a bus is attached.
type noopPublisher struct{}

func (noopPublisher) PublishEvent(string, map[string]any) {}

// ActivityMetrics receives counter snapshots when they are flushed.
// Implemented by the metrics client; optional.
type ActivityMetrics interface {
	WriteMachineActivity(machineID string, consumed, emitted int64)
}

// Lifecycle event types broadcast by the registry.
const (
	EventCreated  = "automation_created"
	EventDeleted  = "automation_deleted"
	EventModified = "automation_modified"
)

// Registry provides machine management with durable persistence,
// spec transcoding/versioning, and engine enable/disable lifecycle.
//
// The persisted records are the single source of truth after restart;
// the in-memory map is reconstructed from them via LoadAll and kept in
// sync by the CRUD operations. Exactly one in-memory representation
// exists per id; ownership is exclusive to the Registry.
//
// Persistence failures on mutations are logged but do not roll back the
// in-memory or engine state: the registry favours availability and
// accepts eventual inconsistency after a crash.
//
// All public methods are thread-safe.
type Registry struct {
	repo       Repository
	transcoder Transcoder
	engine     EngineControl

	machines map[string]*Machine
	mu       sync.RWMutex

	events  EventPublisher
	metrics ActivityMetrics
	logger  Logger
}

// NewRegistry creates a new machine registry.
// The repository persists records; the transcoder canonicalises incoming
// specifications; the engine receives enable/disable calls.
func NewRegistry(repo Repository, transcoder Transcoder, engine EngineControl) *Registry {
	return &Registry{
		repo:       repo,
		transcoder: transcoder,
		engine:     engine,
		machines:   make(map[string]*Machine),
		events:     noopPublisher{},
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetEventPublisher sets the lifecycle event publisher.
func (r *Registry) SetEventPublisher(events EventPublisher) {
	r.events = events
}

// SetActivityMetrics sets the optional counter metrics sink.
func (r *Registry) SetActivityMetrics(metrics ActivityMetrics) {
	r.metrics = metrics
}

// AddMachine transcodes, persists and (optionally) enables a new machine.
//
// The specification is run through the transcoder first; a transcode
// failure aborts the whole operation with no partial state. Adding an id
// that already exists fails - there is no implicit update.
func (r *Registry) AddMachine(ctx context.Context, id, spec string, enabled bool) error {
	if id == "" || strings.TrimSpace(spec) == "" {
		return fmt.Errorf("%w: empty id or specification", ErrInvalidArgument)
	}

	canonical, err := r.transcoder.Transcode(spec)
	if err != nil {
		if errors.Is(err, ErrTranscodeFailed) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrTranscodeFailed, err)
	}

	m := &Machine{
		ID:                id,
		Specification:     canonical,
		TranscoderVersion: r.transcoder.Version(),
		Enabled:           enabled,
		DateCreated:       time.Now().UTC(),
	}
	if canonical != spec {
		orig := spec
		m.OriginalSpecification = &orig
	}

	r.mu.Lock()
	if _, exists := r.machines[id]; exists {
		r.mu.Unlock()
		return ErrMachineExists
	}
	r.machines[id] = m
	r.mu.Unlock()

	if err := r.repo.Create(ctx, m); err != nil {
		if errors.Is(err, ErrMachineExists) {
			// Persisted record exists but was not cached; undo the cache
			// entry and report the conflict.
			r.mu.Lock()
			delete(r.machines, id)
			r.mu.Unlock()
			return ErrMachineExists
		}
		r.logger.Error("machine persist failed", "id", id, "error", err)
	}

	if enabled {
		if !r.engine.Enable(id, canonical) {
			r.logger.Warn("no backend accepted machine spec", "id", id)
		}
	}

	r.events.PublishEvent(EventCreated, map[string]any{"id": id})
	r.logger.Info("machine added", "id", id, "enabled", enabled)
	return nil
}

// RemoveMachine deletes a machine from the registry, persistence and all
// engine backends. Returns ErrMachineNotFound for an unknown id; no
// lifecycle event is broadcast in that case.
func (r *Registry) RemoveMachine(ctx context.Context, id string) error {
	r.mu.Lock()
	_, exists := r.machines[id]
	if !exists {
		r.mu.Unlock()
		return ErrMachineNotFound
	}
	delete(r.machines, id)
	r.mu.Unlock()

	if err := r.repo.Delete(ctx, id); err != nil && !errors.Is(err, ErrMachineNotFound) {
		r.logger.Error("machine delete failed", "id", id, "error", err)
	}

	r.engine.Disable(id)

	r.events.PublishEvent(EventDeleted, map[string]any{"id": id})
	r.logger.Info("machine removed", "id", id)
	return nil
}

// SetEnabled flips the enabled flag. A no-op (still reporting success,
// with zero engine calls) when the requested state already holds.
func (r *Registry) SetEnabled(ctx context.Context, id string, enabled bool) error {
	r.mu.Lock()
	m, exists := r.machines[id]
	if !exists {
		r.mu.Unlock()
		return ErrMachineNotFound
	}
	if m.Enabled == enabled {
		r.mu.Unlock()
		return nil
	}
	m.Enabled = enabled
	cpy := m.DeepCopy()
	r.mu.Unlock()

	if err := r.repo.Update(ctx, cpy); err != nil {
		r.logger.Error("machine persist failed", "id", id, "error", err)
	}

	if enabled {
		if !r.engine.Enable(id, cpy.Specification) {
			r.logger.Warn("no backend accepted machine spec", "id", id)
		}
	} else {
		r.engine.Disable(id)
	}

	r.events.PublishEvent(EventModified, map[string]any{"id": id, "enabled": enabled})
	r.logger.Info("machine enabled state changed", "id", id, "enabled", enabled)
	return nil
}

// SetSpecification replaces a machine's specification.
//
// The new text is transcoded first; a failure leaves the machine
// untouched. If the machine is currently enabled it is disabled before
// the spec fields are swapped and re-enabled afterwards, so a backend
// never holds two specs for the same id.
func (r *Registry) SetSpecification(ctx context.Context, id, spec string) error {
	if strings.TrimSpace(spec) == "" {
		return fmt.Errorf("%w: empty specification", ErrInvalidArgument)
	}

	canonical, err := r.transcoder.Transcode(spec)
	if err != nil {
		if errors.Is(err, ErrTranscodeFailed) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrTranscodeFailed, err)
	}

	r.mu.Lock()
	m, exists := r.machines[id]
	if !exists {
		r.mu.Unlock()
		return ErrMachineNotFound
	}
	wasEnabled := m.Enabled
	r.mu.Unlock()

	if wasEnabled {
		r.engine.Disable(id)
	}

	r.mu.Lock()
	m.Specification = canonical
	m.OriginalSpecification = nil
	if canonical != spec {
		orig := spec
		m.OriginalSpecification = &orig
	}
	m.TranscoderVersion = r.transcoder.Version()
	cpy := m.DeepCopy()
	r.mu.Unlock()

	if err := r.repo.Update(ctx, cpy); err != nil {
		r.logger.Error("machine persist failed", "id", id, "error", err)
	}

	if wasEnabled {
		if !r.engine.Enable(id, canonical) {
			r.logger.Warn("no backend accepted machine spec", "id", id)
		}
	}

	r.events.PublishEvent(EventModified, map[string]any{"id": id})
	r.logger.Info("machine specification updated", "id", id)
	return nil
}

// LoadAll reconstructs the in-memory map from persisted records and
// enables every enabled machine. Called once at startup and again after
// an external restore replaces the persisted store.
//
// A reload replaces the whole set: every machine enabled under the old
// map is disabled in the engine first, so backends never keep a spec the
// store no longer contains and surviving machines see a disable/enable
// pair instead of a stacked second enable.
//
// Records whose transcoder version is stale are re-transcoded from their
// original specification (falling back to the canonical text) and
// re-persisted before enabling. This lets the spec format evolve without
// per-machine manual migration.
func (r *Registry) LoadAll(ctx context.Context) error {
	records, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}

	current := r.transcoder.Version()

	r.mu.Lock()
	previous := r.machines
	r.machines = make(map[string]*Machine, len(records))
	r.mu.Unlock()

	for id, m := range previous {
		if m.Enabled {
			r.engine.Disable(id)
		}
	}

	for i := range records {
		m := records[i].DeepCopy()

		if m.TranscoderVersion != current {
			source := m.Specification
			if m.OriginalSpecification != nil {
				source = *m.OriginalSpecification
			}

			canonical, tErr := r.transcoder.Transcode(source)
			if tErr != nil {
				r.logger.Error("machine re-transcode failed, keeping stored spec",
					"id", m.ID, "stored_version", m.TranscoderVersion, "error", tErr)
			} else {
				m.Specification = canonical
				m.TranscoderVersion = current
				if uErr := r.repo.Update(ctx, m); uErr != nil {
					r.logger.Error("machine persist failed", "id", m.ID, "error", uErr)
				}
				r.logger.Info("machine re-transcoded",
					"id", m.ID, "version", current)
			}
		}

		r.mu.Lock()
		r.machines[m.ID] = m
		r.mu.Unlock()

		if m.Enabled {
			if !r.engine.Enable(m.ID, m.Specification) {
				r.logger.Warn("no backend accepted machine spec", "id", m.ID)
			}
		}
	}

	r.logger.Info("machines loaded", "count", len(records))
	return nil
}

// List returns read-only summaries of all machines, ordered by id.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]Summary, 0, len(r.machines))
	for _, m := range r.machines {
		summaries = append(summaries, m.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ID < summaries[j].ID
	})
	return summaries
}

// Get returns a deep copy of one machine.
func (r *Registry) Get(id string) (*Machine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.machines[id]
	if !exists {
		return nil, ErrMachineNotFound
	}
	return m.DeepCopy(), nil
}

// IsKnown reports whether a machine id exists, compared case-insensitively.
func (r *Registry) IsKnown(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for existing := range r.machines {
		if strings.EqualFold(existing, id) {
			return true
		}
	}
	return false
}

// Count returns the number of registered machines.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.machines)
}

// RecordActivity updates the in-memory bookkeeping counters for one
// machine: consumed messages and emitted actions. Counters are persisted
// by FlushCounters, not per message, to keep this off the hot path.
func (r *Registry) RecordActivity(id string, consumed, emitted int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.machines[id]
	if !exists {
		return
	}
	m.MessagesConsumed += int64(consumed)
	m.MessagesEmitted += int64(emitted)
}

// FlushCounters persists the bookkeeping counters of every machine.
// Called periodically and on shutdown.
func (r *Registry) FlushCounters(ctx context.Context) error {
	r.mu.RLock()
	type counters struct {
		id                string
		consumed, emitted int64
	}
	pending := make([]counters, 0, len(r.machines))
	for _, m := range r.machines {
		pending = append(pending, counters{m.ID, m.MessagesConsumed, m.MessagesEmitted})
	}
	r.mu.RUnlock()

	var firstErr error
	for _, c := range pending {
		if r.metrics != nil {
			r.metrics.WriteMachineActivity(c.id, c.consumed, c.emitted)
		}
		if err := r.repo.UpdateCounters(ctx, c.id, c.consumed, c.emitted); err != nil {
			r.logger.Error("counter persist failed", "id", c.id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
