// Package mqtt provides MQTT client connectivity for the Hearth hub.
//
// This package wraps the Eclipse Paho MQTT client with:
//   - Automatic reconnection with exponential backoff
//   - Subscription restoration after reconnect
//   - Last Will and Testament (hub status on unexpected disconnect)
//   - Thread-safe publish and subscribe operations
//   - Structured topic builders for the hearth/ namespace
//
// Hearth uses MQTT as its message bus: device adapters, camera recorders,
// notification relays and peer hubs all attach to the broker (Mosquitto)
// running on the same host.
//
//	Hearth hub ↔ MQTT Broker ↔ Attached services
//
// # Usage
//
//	cfg := config.MQTTConfig{...}
//	client, err := mqtt.Connect(cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	// Subscribe to device state reports
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceStates(), 1,
//	    func(topic string, payload []byte) error {
//	        // handle state report
//	        return nil
//	    })
//
//	// Publish a command
//	topic := mqtt.Topics{}.ServiceCommand("device", "light-living")
//	err = client.Publish(topic, payload, 1, false)
//
// # Connection Lifecycle
//
// Connect() blocks until the initial connection succeeds or fails. After
// that, the paho library handles reconnection automatically; tracked
// subscriptions are restored on each reconnect. The LWT marks the hub
// offline on hearth/system/status if the connection drops ungracefully.
package mqtt
