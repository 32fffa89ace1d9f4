// Package notify publishes newly marked attendance records to an MQTT broker.
package notify

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

// publisher is the subset of mqtt.Client used by the notifier.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
}

// MQTT publishes ledger records as JSON. It implements ledger.Notifier.
type MQTT struct {
	client publisher
	topic  string
	done   func()
}

// Connect connects to broker and returns a notifier publishing to topic.
func Connect(broker, topic string) (*MQTT, error) {
	clientID := "face-attendance-" + uuid.New().String()
	log.Printf("Connecting to MQTT broker %s with client ID %s", broker, clientID)

	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Printf("MQTT connection lost: %v", err)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	return &MQTT{
		client: client,
		topic:  topic,
		done:   func() { client.Disconnect(constants.MQTTDisconnectQuiesceMs) },
	}, nil
}

// Payload encodes record the way it is published.
func Payload(record ledger.Record) ([]byte, error) {
	return json.Marshal(record)
}

// Notify publishes record in the background. Failures are logged.
func (m *MQTT) Notify(record ledger.Record) {
	payload, err := Payload(record)
	if err != nil {
		log.Printf("Failed to encode attendance record: %v", err)
		return
	}

	token := m.client.Publish(m.topic, 1, false, payload)
	go func() {
		if !token.WaitTimeout(constants.MQTTPublishTimeoutMs * time.Millisecond) {
			log.Printf("Timed out publishing attendance of %s", record.Name)
			return
		}
		if err := token.Error(); err != nil {
			log.Printf("Failed to publish attendance of %s: %v", record.Name, err)
		}
	}()
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	if m.done != nil {
		m.done()
	}
}
