package rabbitmq

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/bloomwatch/pkg/logger"
)

// IPublisher is what services depend on for publishing messages.
type IPublisher interface {
	PublishMessage(message string) error
	PublishMessageQos(qos byte, retained bool, message string) error
	PublishToQos(topic string, qos byte, retained bool, message string) error
	Close()
}

// Publisher binds the shared MQTT client to a default topic.
type Publisher struct {
	client mqtt.Client
	topic  string
}

// NewPublisher creates a Publisher using the shared MQTT client. topic is
// the default destination; PublishToQos can override it per message.
func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{
		client: client,
		topic:  topic,
	}
}

// PublishMessage publishes to the default topic with the QoS the topic
// class calls for.
func (p *Publisher) PublishMessage(message string) error {
	return p.PublishToQos(p.topic, qosFor(p.topic), false, message)
}

// PublishMessageQos publishes to the default topic with an explicit QoS.
func (p *Publisher) PublishMessageQos(qos byte, retained bool, message string) error {
	return p.PublishToQos(p.topic, qos, retained, message)
}

// PublishToQos publishes to an arbitrary topic. Used for per-region
// destinations built at runtime.
func (p *Publisher) PublishToQos(topic string, qos byte, retained bool, message string) error {
	token := p.client.Publish(topic, qos, retained, message)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}
	logger.WithComponent("rabbitmq").Debug().Str("topic", topic).Int("bytes", len(message)).Msg("published")
	return nil
}

// Close disconnects the underlying MQTT client.
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
