package rabbitmq

import (
	"context"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/bloomwatch/pkg/logger"
)

// IConsumer defines the ConsumeMessage method; T tags the message type the
// handler is expected to decode.
type IConsumer[T any] interface {
	ConsumeMessage(ctx context.Context)
	SetHandler(handler func(topic string, message mqtt.Message) error)
}

// Consumer subscribes the shared client to one topic filter.
type Consumer struct {
	client  mqtt.Client
	handler func(topic string, message mqtt.Message) error
	topic   string
}

// NewConsumer creates a Consumer; the handler may be injected later with
// SetHandler (services wire themselves in after construction).
func NewConsumer(client mqtt.Client, topic string, handler func(topic string, message mqtt.Message) error) *Consumer {
	return &Consumer{
		client:  client,
		topic:   topic,
		handler: handler,
	}
}

func (c *Consumer) SetHandler(handler func(topic string, message mqtt.Message) error) {
	c.handler = handler
}

// qosFor maps topic classes to QoS levels: composites and event streams
// must survive broker restarts, raw scene samples may be dropped.
func qosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "ndvi/composite") ||
		strings.HasPrefix(t, "event/bloomDetected") ||
		strings.HasPrefix(t, "event/forecastReady") ||
		strings.HasPrefix(t, "event/notifyResult") {
		return 1
	}
	return 0
}

// ConsumeMessage subscribes to the topic and processes messages using the
// handler. It blocks until the context is cancelled.
func (c *Consumer) ConsumeMessage(ctx context.Context) {
	log := logger.WithComponent("rabbitmq")
	token := c.client.Subscribe(
		c.topic,
		qosFor(c.topic),
		func(client mqtt.Client, message mqtt.Message) {
			if c.handler == nil {
				log.Warn().Str("topic", c.topic).Msg("no handler set for topic")
				return
			}
			if err := c.handler(c.topic, message); err != nil {
				log.Error().Err(err).Str("topic", message.Topic()).Msg("handler failed")
			}
		},
	)

	if token.Wait() && token.Error() != nil {
		log.Error().Err(token.Error()).Str("topic", c.topic).Msg("subscribe failed")
		return
	}

	log.Info().Str("topic", c.topic).Msg("subscribed")

	<-ctx.Done()

	unsubToken := c.client.Unsubscribe(c.topic)
	unsubToken.Wait()
}

// MultiConsumer subscribes one handler to several topic filters.
type MultiConsumer struct {
	client  mqtt.Client
	topics  []string
	handler func(topic string, message mqtt.Message) error
}

func NewMultiConsumer(client mqtt.Client, topics []string, handler func(topic string, message mqtt.Message) error) *MultiConsumer {
	return &MultiConsumer{
		client:  client,
		topics:  topics,
		handler: handler,
	}
}

func (m *MultiConsumer) SetHandler(handler func(topic string, message mqtt.Message) error) {
	m.handler = handler
}

func (m *MultiConsumer) ConsumeMessage(ctx context.Context) {
	log := logger.WithComponent("rabbitmq")
	for _, topic := range m.topics {
		token := m.client.Subscribe(
			topic,
			qosFor(topic),
			func(client mqtt.Client, msg mqtt.Message) {
				if m.handler == nil {
					log.Warn().Str("topic", topic).Msg("no handler set for topic")
					return
				}
				if err := m.handler(topic, msg); err != nil {
					log.Error().Err(err).Str("topic", msg.Topic()).Msg("handler failed")
				}
			},
		)
		token.Wait()
		if token.Error() != nil {
			log.Error().Err(token.Error()).Str("topic", topic).Msg("subscribe failed")
		} else {
			log.Info().Str("topic", topic).Msg("subscribed")
		}
	}

	<-ctx.Done()

	for _, topic := range m.topics {
		m.client.Unsubscribe(topic)
	}
}
