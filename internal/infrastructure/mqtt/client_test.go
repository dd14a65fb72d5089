package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hearth-home/hearth-core/internal/infrastructure/config"
)

func brokerConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// connectTestClient dials the local broker, skipping the test when no
// broker is listening (mosquitto on 127.0.0.1:1883).
func connectTestClient(t *testing.T, clientID string) *Client {
	t.Helper()

	client, err := Connect(brokerConfig(clientID))
	if err != nil {
		t.Skipf("broker unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

// === validation (no broker needed) ===

func TestPublish_Validation(t *testing.T) {
	c := &Client{subs: make(map[string]subscription)}

	if err := c.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("t", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 3 error = %v, want ErrInvalidQoS", err)
	}
	big := make([]byte, maxPayloadSize+1)
	if err := c.Publish("t", big, 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("oversized payload error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := &Client{subs: make(map[string]subscription)}

	if err := c.Subscribe("", 1, func(string, []byte) error { return nil }); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("t", 3, func(string, []byte) error { return nil }); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 3 error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("t", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v, want ErrSubscribeFailed", err)
	}
}

func TestUnsubscribe_EmptyTopic(t *testing.T) {
	c := &Client{subs: make(map[string]subscription)}

	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("error = %v, want ErrInvalidTopic", err)
	}
}

func TestClose_ZeroClient(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
	if c.IsConnected() {
		t.Error("zero client reports connected")
	}
}

func TestStatusPayload(t *testing.T) {
	var doc struct {
		Status    string `json:"status"`
		ClientID  string `json:"client_id"`
		Reason    string `json:"reason"`
		Timestamp string `json:"timestamp"`
	}

	if err := json.Unmarshal(statusPayload("offline", "hearth-core", "graceful_shutdown"), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Status != "offline" || doc.ClientID != "hearth-core" || doc.Reason != "graceful_shutdown" {
		t.Errorf("payload = %+v", doc)
	}
	if _, err := time.Parse(time.RFC3339, doc.Timestamp); err != nil {
		t.Errorf("timestamp %q not RFC3339: %v", doc.Timestamp, err)
	}

	// Online status omits the reason key entirely.
	raw := map[string]any{}
	if err := json.Unmarshal(statusPayload("online", "hearth-core", ""), &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, present := raw["reason"]; present {
		t.Error("online payload carries a reason field")
	}
}

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"SystemStatus", Topics{}.SystemStatus(), "hearth/system/status"},
		{"SystemTime", Topics{}.SystemTime(), "hearth/system/time"},
		{"CoreEvent", Topics{}.CoreEvent("automation_created"), "hearth/core/event/automation_created"},
		{"DeviceState", Topics{}.DeviceState("light-living"), "hearth/state/light-living"},
		{"ServiceRequest", Topics{}.ServiceRequest("device", "req-123"), "hearth/request/device/req-123"},
		{"ServiceResponse", Topics{}.ServiceResponse("device", "req-123"), "hearth/response/device/req-123"},
		{"ServiceCommand", Topics{}.ServiceCommand("camera", "front-door"), "hearth/command/camera/front-door"},
		{"AllCoreEvents", Topics{}.AllCoreEvents(), "hearth/core/event/+"},
		{"AllDeviceStates", Topics{}.AllDeviceStates(), "hearth/state/+"},
		{"AllServiceResponses", Topics{}.AllServiceResponses("notification"), "hearth/response/notification/+"},
		{"AllTopics", Topics{}.AllTopics(), "hearth/#"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

// === broker-backed tests (skipped without a local mosquitto) ===

func TestConnectAndHealthCheck(t *testing.T) {
	client := connectTestClient(t, "hearth-test-conn")

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() with cancelled context should fail")
	}
}

func TestConnect_BrokerRefused(t *testing.T) {
	cfg := brokerConfig("hearth-test-refused")
	cfg.Broker.Port = 19999

	if _, err := Connect(cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestOperationsAfterClose(t *testing.T) {
	client := connectTestClient(t, "hearth-test-closed")
	client.Close() //nolint:errcheck // Closing twice via cleanup is fine

	if err := client.Publish("hearth/test/x", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
	if err := client.Subscribe("hearth/test/x", 1, func(string, []byte) error { return nil }); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestSubscriptionTracking(t *testing.T) {
	client := connectTestClient(t, "hearth-test-tracking")

	topics := []string{"hearth/test/a", "hearth/test/b", "hearth/test/c"}
	for _, topic := range topics {
		if err := client.Subscribe(topic, 1, func(string, []byte) error { return nil }); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}
	if client.SubscriptionCount() != len(topics) {
		t.Errorf("SubscriptionCount() = %d, want %d", client.SubscriptionCount(), len(topics))
	}

	if err := client.Unsubscribe(topics[0]); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription(topics[0]) {
		t.Error("unsubscribed topic still tracked")
	}
	if !client.HasSubscription(topics[1]) {
		t.Error("remaining topic lost from tracking")
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	pub := connectTestClient(t, "hearth-test-rt-pub")
	sub := connectTestClient(t, "hearth-test-rt-sub")

	received := make(chan string, 1)
	if err := sub.Subscribe("hearth/test/roundtrip", 1, func(_ string, payload []byte) error {
		received <- string(payload)
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := pub.Publish("hearth/test/roundtrip", []byte(`{"n":1}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case payload := <-received:
		if payload != `{"n":1}` {
			t.Errorf("payload = %q, want %q", payload, `{"n":1}`)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for message")
	}
}

func TestWildcardSubscription(t *testing.T) {
	pub := connectTestClient(t, "hearth-test-wild-pub")
	sub := connectTestClient(t, "hearth-test-wild-sub")

	var mu sync.Mutex
	seen := make(map[string]bool)
	if err := sub.Subscribe("hearth/test/+/state", 1, func(topic string, _ []byte) error {
		mu.Lock()
		seen[topic] = true
		mu.Unlock()
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	topics := []string{"hearth/test/one/state", "hearth/test/two/state"}
	for _, topic := range topics {
		if err := pub.Publish(topic, []byte(`{}`), 1, false); err != nil {
			t.Fatalf("Publish(%s) error = %v", topic, err)
		}
	}

	deadline := time.After(5 * time.Second)
	for {
		mu.Lock()
		done := len(seen) == len(topics)
		mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("received %d topics, want %d", len(seen), len(topics))
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	pub := connectTestClient(t, "hearth-test-panic-pub")
	sub := connectTestClient(t, "hearth-test-panic-sub")

	calls := make(chan struct{}, 2)
	if err := sub.Subscribe("hearth/test/panic", 1, func(string, []byte) error {
		calls <- struct{}{}
		panic("handler blew up")
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// Two messages: a panicking handler must not take the router down.
	for i := 0; i < 2; i++ {
		if err := pub.Publish("hearth/test/panic", []byte(`{}`), 1, false); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(5 * time.Second):
			t.Fatalf("handler call %d never arrived", i+1)
		}
	}
}
