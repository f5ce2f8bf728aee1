package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/specimen-imaging/labelstation/internal/logger"
)

// MQTTObserver forwards station events as JSON to a broker topic
type MQTTObserver struct {
	client mqtt.Client
	topic  string

	mu        sync.Mutex
	published uint64
	errors    uint64
}

// NewMQTTObserver wraps an already connected client
func NewMQTTObserver(client mqtt.Client, topic string) *MQTTObserver {
	return &MQTTObserver{client: client, topic: strings.TrimSuffix(topic, "/")}
}

// ConnectMQTT dials the broker with auto reconnect enabled
func ConnectMQTT(broker, clientID string) (mqtt.Client, error) {
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		logger.WithError(err).WithField("broker", broker).Warn("MQTT connection lost, reconnecting")
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	return client, nil
}

func (o *MQTTObserver) OnEvent(ctx context.Context, event StationEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		o.fail(err)
		return
	}

	topic := o.topic + "/" + string(event.EventType)
	token := o.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		o.fail(fmt.Errorf("publish timeout"))
		return
	}
	if err := token.Error(); err != nil {
		o.fail(err)
		return
	}

	o.mu.Lock()
	o.published++
	o.mu.Unlock()
}

func (o *MQTTObserver) fail(err error) {
	o.mu.Lock()
	o.errors++
	o.mu.Unlock()
	logger.WithError(err).WithField("topic", o.topic).Warn("Failed to publish station event")
}

func (o *MQTTObserver) GetObserverName() string {
	return "mqtt_observer"
}

// Stats returns published and failed message counts
func (o *MQTTObserver) Stats() (published, failed uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.published, o.errors
}

// Close disconnects from the broker
func (o *MQTTObserver) Close() {
	o.client.Disconnect(250)
}
