package engine

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockBackend records calls and can be configured to reject specs,
// panic, or report emitted actions.
type mockBackend struct {
	name   string
	accept bool

	mu        sync.Mutex
	processed []Message
	enabled   map[string]string
	disabled  []string
	destroyed bool

	panicOnProcess bool
	results        []Result

	// processedCh signals each Process call for test synchronisation.
	processedCh chan Message
}

func newMockBackend(name string) *mockBackend {
	return &mockBackend{
		name:        name,
		accept:      true,
		enabled:     make(map[string]string),
		processedCh: make(chan Message, 64),
	}
}

func (b *mockBackend) Name() string { return b.name }

func (b *mockBackend) Enable(id, spec string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.accept {
		return false
	}
	b.enabled[id] = spec
	return true
}

func (b *mockBackend) Disable(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.enabled, id)
	b.disabled = append(b.disabled, id)
}

func (b *mockBackend) Process(msg Message) []Result {
	if b.panicOnProcess {
		panic("backend exploded")
	}
	b.mu.Lock()
	b.processed = append(b.processed, msg)
	results := b.results
	b.mu.Unlock()
	b.processedCh <- msg
	return results
}

func (b *mockBackend) State(id string) any {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.enabled[id]; ok {
		return map[string]any{"id": id}
	}
	return nil
}

func (b *mockBackend) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.destroyed = true
}

func (b *mockBackend) processedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.processed)
}

// stubSun is a fixed sunrise/sunset source.
type stubSun struct {
	sunrise, sunset int64
}

func (s stubSun) Sun() (int64, int64) { return s.sunrise, s.sunset }

// mockActivity records RecordActivity calls.
type mockActivity struct {
	mu      sync.Mutex
	entries []string
}

func (a *mockActivity) RecordActivity(id string, consumed, emitted int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, id)
}

// waitForMessage receives from a backend's process channel with a timeout.
func waitForMessage(t *testing.T, b *mockBackend) Message {
	t.Helper()
	select {
	case msg := <-b.processedCh:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for backend to process message")
		return nil
	}
}

// startHost starts the host and registers cleanup.
func startHost(t *testing.T, h *Host) {
	t.Helper()
	if err := h.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = h.Stop() })
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestPost_NotRunning(t *testing.T) {
	h := NewHost(Options{})

	if h.Post(Message{"event": "test"}) {
		t.Error("Post() = true before Start(), want false")
	}
}

func TestStart_Twice(t *testing.T) {
	h := NewHost(Options{})
	startHost(t, h)

	if err := h.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestStop_NotRunning(t *testing.T) {
	h := NewHost(Options{})

	if err := h.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop() error = %v, want ErrNotRunning", err)
	}
}

func TestStop_DisablesPosting(t *testing.T) {
	h := NewHost(Options{})
	backend := newMockBackend("test")
	if err := h.Register(backend); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := h.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := h.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if h.Post(Message{"event": "late"}) {
		t.Error("Post() = true after Stop(), want false")
	}
	if !backend.destroyed {
		t.Error("backend not destroyed on Stop()")
	}
}

func TestRegister_WhileRunning(t *testing.T) {
	h := NewHost(Options{})
	startHost(t, h)

	err := h.Register(newMockBackend("late"))
	if !errors.Is(err, ErrRunning) {
		t.Errorf("Register() while running error = %v, want ErrRunning", err)
	}
}

// =============================================================================
// Message Processing Tests
// =============================================================================

func TestPost_EnrichesMessage(t *testing.T) {
	h := NewHost(Options{})
	h.SetSunSource(stubSun{sunrise: 1700000000000, sunset: 1700040000000})

	backend := newMockBackend("test")
	if err := h.Register(backend); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	startHost(t, h)

	if !h.Post(Message{"eventCode": 499}) {
		t.Fatal("Post() = false, want true")
	}

	msg := waitForMessage(t, backend)

	if msg["eventCode"] != 499 {
		t.Errorf("eventCode = %v, want 499", msg["eventCode"])
	}
	if msg["_sunrise"] != int64(1700000000000) {
		t.Errorf("_sunrise = %v, want 1700000000000", msg["_sunrise"])
	}
	if msg["_sunset"] != int64(1700040000000) {
		t.Errorf("_sunset = %v, want 1700040000000", msg["_sunset"])
	}
	if _, ok := msg["eventTime"]; !ok {
		t.Error("eventTime not injected")
	}
}

func TestPost_PreservesExistingEventTime(t *testing.T) {
	h := NewHost(Options{})
	backend := newMockBackend("test")
	if err := h.Register(backend); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	startHost(t, h)

	if !h.Post(Message{"eventTime": int64(12345)}) {
		t.Fatal("Post() = false, want true")
	}

	msg := waitForMessage(t, backend)
	if msg["eventTime"] != int64(12345) {
		t.Errorf("eventTime = %v, want caller-supplied 12345", msg["eventTime"])
	}
}

func TestPost_CopiesMessage(t *testing.T) {
	h := NewHost(Options{})
	backend := newMockBackend("test")
	if err := h.Register(backend); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	startHost(t, h)

	original := Message{"nested": map[string]any{"value": 1}}
	if !h.Post(original) {
		t.Fatal("Post() = false, want true")
	}

	// Mutating the caller's object after Post must not affect the
	// queued copy.
	original["nested"].(map[string]any)["value"] = 99

	msg := waitForMessage(t, backend)
	nested := msg["nested"].(map[string]any)
	if nested["value"] != 1 {
		t.Errorf("queued message saw caller mutation: value = %v", nested["value"])
	}
}

func TestProcess_FIFOOrder(t *testing.T) {
	h := NewHost(Options{})
	backend := newMockBackend("test")
	if err := h.Register(backend); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	startHost(t, h)

	const count = 20
	for i := 0; i < count; i++ {
		if !h.Post(Message{"seq": i}) {
			t.Fatalf("Post(%d) = false", i)
		}
	}

	for i := 0; i < count; i++ {
		msg := waitForMessage(t, backend)
		if msg["seq"] != i {
			t.Fatalf("message %d has seq = %v, FIFO order violated", i, msg["seq"])
		}
	}
}

func TestProcess_AllBackendsSeeEveryMessage(t *testing.T) {
	h := NewHost(Options{})
	first := newMockBackend("first")
	second := newMockBackend("second")
	for _, b := range []*mockBackend{first, second} {
		if err := h.Register(b); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}
	startHost(t, h)

	if !h.Post(Message{"event": "shared"}) {
		t.Fatal("Post() = false, want true")
	}

	waitForMessage(t, first)
	waitForMessage(t, second)

	if first.processedCount() != 1 || second.processedCount() != 1 {
		t.Errorf("processed counts = %d/%d, want 1/1",
			first.processedCount(), second.processedCount())
	}
}

func TestProcess_PanicIsolation(t *testing.T) {
	h := NewHost(Options{})
	bomb := newMockBackend("bomb")
	bomb.panicOnProcess = true
	survivor := newMockBackend("survivor")

	if err := h.Register(bomb); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := h.Register(survivor); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	startHost(t, h)

	// The panicking backend must not take down the consumer or starve
	// the second backend.
	if !h.Post(Message{"event": "first"}) {
		t.Fatal("Post() = false, want true")
	}
	waitForMessage(t, survivor)

	if !h.Post(Message{"event": "second"}) {
		t.Fatal("Post() after panic = false, want true")
	}
	waitForMessage(t, survivor)

	if survivor.processedCount() != 2 {
		t.Errorf("survivor processed %d messages, want 2", survivor.processedCount())
	}
}

func TestProcess_RecordsActivity(t *testing.T) {
	h := NewHost(Options{})
	activity := &mockActivity{}
	h.SetActivityRecorder(activity)

	backend := newMockBackend("test")
	backend.results = []Result{
		{MachineID: "m1", Actions: []json.RawMessage{json.RawMessage(`{}`)}},
		{MachineID: "m2"},
	}
	if err := h.Register(backend); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	startHost(t, h)

	if !h.Post(Message{"event": "x"}) {
		t.Fatal("Post() = false, want true")
	}
	waitForMessage(t, backend)

	// Activity recording happens inside the same processing pass, so it
	// is complete once the next message has been seen.
	if !h.Post(Message{"event": "y"}) {
		t.Fatal("Post() = false, want true")
	}
	waitForMessage(t, backend)

	activity.mu.Lock()
	defer activity.mu.Unlock()
	if len(activity.entries) < 2 {
		t.Fatalf("activity entries = %v, want at least m1 and m2", activity.entries)
	}
	if activity.entries[0] != "m1" || activity.entries[1] != "m2" {
		t.Errorf("activity entries = %v, want [m1 m2 ...]", activity.entries)
	}
}

// mockSink records actions forwarded by the host.
type mockSink struct {
	mu      sync.Mutex
	actions []json.RawMessage
}

func (s *mockSink) Post(raw json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, raw)
}

func (s *mockSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actions)
}

func TestProcess_ForwardsActionsToSink(t *testing.T) {
	h := NewHost(Options{})
	sink := &mockSink{}
	h.SetActionSink(sink)

	backend := newMockBackend("test")
	backend.results = []Result{
		{MachineID: "m1", Actions: []json.RawMessage{
			json.RawMessage(`{"method":"device.write"}`),
			json.RawMessage(`{"method":"notify.send"}`),
		}},
	}
	if err := h.Register(backend); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	startHost(t, h)

	if !h.Post(Message{"event": "x"}) {
		t.Fatal("Post() = false, want true")
	}
	waitForMessage(t, backend)

	// Forwarding happens inside the processing pass; the next message
	// guarantees the previous pass has completed.
	if !h.Post(Message{"event": "y"}) {
		t.Fatal("Post() = false, want true")
	}
	waitForMessage(t, backend)

	if sink.count() < 2 {
		t.Fatalf("forwarded actions = %d, want at least 2", sink.count())
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if string(sink.actions[0]) != `{"method":"device.write"}` {
		t.Errorf("first action = %s, want device.write request", sink.actions[0])
	}
}

// =============================================================================
// Fan-out Control Tests
// =============================================================================

func TestEnable_AnyBackendAccepts(t *testing.T) {
	h := NewHost(Options{})
	rejecting := newMockBackend("rejecting")
	rejecting.accept = false
	accepting := newMockBackend("accepting")

	if err := h.Register(rejecting); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := h.Register(accepting); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if !h.Enable("m1", "spec") {
		t.Error("Enable() = false, want true when any backend accepts")
	}

	rejecting.accept = false
	accepting.accept = false
	if h.Enable("m2", "spec") {
		t.Error("Enable() = true, want false when no backend accepts")
	}
}

func TestDisable_FansOut(t *testing.T) {
	h := NewHost(Options{})
	first := newMockBackend("first")
	second := newMockBackend("second")
	for _, b := range []*mockBackend{first, second} {
		if err := h.Register(b); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}

	h.Disable("m1")

	for _, b := range []*mockBackend{first, second} {
		b.mu.Lock()
		got := len(b.disabled)
		b.mu.Unlock()
		if got != 1 {
			t.Errorf("backend %s saw %d disable calls, want 1", b.name, got)
		}
	}
}

func TestState_FirstNonNil(t *testing.T) {
	h := NewHost(Options{})
	first := newMockBackend("first")
	second := newMockBackend("second")
	for _, b := range []*mockBackend{first, second} {
		if err := h.Register(b); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}

	// Only the second backend knows m1.
	second.Enable("m1", "spec")

	state := h.State("m1")
	if state == nil {
		t.Fatal("State() = nil, want second backend's state")
	}
	if h.State("unknown") != nil {
		t.Error("State(unknown) != nil, want nil")
	}
}

// =============================================================================
// Overload Tests
// =============================================================================

func TestPost_QueueFull(t *testing.T) {
	// A backend that blocks keeps the consumer busy while the queue fills.
	h := NewHost(Options{QueueSize: 1})

	release := make(chan struct{})
	blocking := &blockingBackend{release: release, started: make(chan struct{})}
	if err := h.Register(blocking); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	startHost(t, h)

	// First message occupies the consumer, second fills the queue.
	if !h.Post(Message{"seq": 0}) {
		t.Fatal("Post(0) = false")
	}
	<-blocking.started
	if !h.Post(Message{"seq": 1}) {
		t.Fatal("Post(1) = false")
	}

	// Queue is now full.
	if h.Post(Message{"seq": 2}) {
		t.Error("Post() = true with full queue, want false")
	}

	close(release)
}

// blockingBackend blocks Process until released.
type blockingBackend struct {
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func (b *blockingBackend) Name() string { return "blocking" }

func (b *blockingBackend) Enable(string, string) bool { return true }
func (b *blockingBackend) Disable(string)             {}
func (b *blockingBackend) State(string) any           { return nil }
func (b *blockingBackend) Destroy()                   {}

func (b *blockingBackend) Process(Message) []Result {
	b.once.Do(func() {
		if b.started != nil {
			close(b.started)
		}
	})
	<-b.release
	return nil
}
