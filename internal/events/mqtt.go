package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// MQTTPublisher publishes every event as JSON to <topic>/<kind>.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
}

// NewMQTTPublisher connects to broker (e.g. tcp://localhost:1883).
func NewMQTTPublisher(broker, clientID, topic string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Println("⚠️  MQTT connection lost:", err)
		}).
		SetOnConnectHandler(func(_ mqtt.Client) {
			log.Println("✓ MQTT connected to", broker)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}

	return &MQTTPublisher{client: client, topic: strings.TrimRight(topic, "/")}, nil
}

// Name identifies the sink in logs.
func (p *MQTTPublisher) Name() string {
	return "mqtt"
}

// Topic returns the topic an event is published to.
func (p *MQTTPublisher) Topic(kind Kind) string {
	return p.topic + "/" + string(kind)
}

// Publish sends ev with QoS 1 and waits for the broker to acknowledge it.
func (p *MQTTPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	token := p.client.Publish(p.Topic(ev.Kind), 1, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects, giving in-flight messages a moment to finish.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
