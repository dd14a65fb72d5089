package ticker

import (
	"sync"
	"testing"
	"time"

	"github.com/hearth-home/hearth-core/internal/engine"
)

// mockPoster records posted tick messages.
type mockPoster struct {
	mu       sync.Mutex
	messages []engine.Message
	signal   chan engine.Message
}

func newMockPoster() *mockPoster {
	return &mockPoster{signal: make(chan engine.Message, 16)}
}

func (p *mockPoster) Post(msg engine.Message) bool {
	p.mu.Lock()
	p.messages = append(p.messages, msg)
	p.mu.Unlock()
	p.signal <- msg
	return true
}

func (p *mockPoster) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func TestMinute_PostsTickOnBoundary(t *testing.T) {
	poster := newMockPoster()
	m := NewMinute(poster)
	m.interval = 50 * time.Millisecond // shrink the period for testing

	m.Start()
	defer m.Stop()

	select {
	case msg := <-poster.signal:
		if msg["event"] != "clock.tick" {
			t.Errorf("event = %v, want clock.tick", msg["event"])
		}
		if msg["period"] != "minute" {
			t.Errorf("period = %v, want minute", msg["period"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tick posted")
	}
}

func TestMinute_TicksRepeat(t *testing.T) {
	poster := newMockPoster()
	m := NewMinute(poster)
	m.interval = 30 * time.Millisecond

	m.Start()
	defer m.Stop()

	for i := 0; i < 3; i++ {
		select {
		case <-poster.signal:
		case <-time.After(2 * time.Second):
			t.Fatalf("tick %d never arrived", i)
		}
	}
}

func TestMinute_StopDoesNotTick(t *testing.T) {
	poster := newMockPoster()
	m := NewMinute(poster)
	// Long interval: the timer will not fire during the test, so any
	// posted message would have come from cancellation.
	m.interval = time.Hour

	m.Start()
	time.Sleep(20 * time.Millisecond)
	m.Stop()

	if got := poster.count(); got != 0 {
		t.Errorf("ticks posted on cancellation = %d, want 0", got)
	}
}

func TestMinute_StopIdempotent(t *testing.T) {
	m := NewMinute(newMockPoster())
	m.interval = time.Hour

	m.Start()
	m.Stop()
	m.Stop() // second call is a no-op
}

func TestUntilNextBoundary(t *testing.T) {
	m := NewMinute(newMockPoster())
	m.now = func() time.Time {
		return time.Date(2026, 8, 24, 10, 30, 45, 0, time.UTC)
	}

	if got := m.untilNextBoundary(); got != 15*time.Second {
		t.Errorf("untilNextBoundary() = %v, want 15s", got)
	}
}
