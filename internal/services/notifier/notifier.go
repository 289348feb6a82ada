package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/bloomwatch/internal/model/entities"
	"github.com/LeonardoBeccarini/bloomwatch/internal/model/messages"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/dedup"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/logger"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/metrics"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/rabbitmq"
)

const (
	// 1 initial attempt + 2 retries
	defaultRetryMax      = 2
	defaultRetryInterval = 500 * time.Millisecond
	defaultBreakerFails  = 3
	defaultBreakerOpen   = 30 * time.Second
)

// deliveryResult is one webhook delivery outcome.
type deliveryResult struct {
	status   string // "OK" | "FAIL"
	attempts int
	reason   string // "delivered" | "rejected" | "timeout"
}

// NotifierService fans bloom events out to subscriber webhooks. Each
// endpoint gets its own circuit breaker so one dead subscriber cannot
// slow down the rest.
type NotifierService struct {
	consumer  rabbitmq.IConsumer[messages.BloomDetectedEvent]
	publisher rabbitmq.IPublisher
	subs      entities.SubscriberSet
	client    *http.Client
	deduper   *dedup.Deduper
	log       zerolog.Logger

	retryMax      uint64
	retryInterval time.Duration

	breakerMu sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker
}

func NewNotifierService(consumer rabbitmq.IConsumer[messages.BloomDetectedEvent], publisher rabbitmq.IPublisher, subs entities.SubscriberSet) *NotifierService {
	return &NotifierService{
		consumer:      consumer,
		publisher:     publisher,
		subs:          subs,
		client:        &http.Client{Timeout: 10 * time.Second},
		deduper:       dedup.New(10*time.Minute, 20000),
		log:           logger.WithComponent("notifier"),
		retryMax:      defaultRetryMax,
		retryInterval: defaultRetryInterval,
		breakers:      make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (n *NotifierService) Start(ctx context.Context) {
	n.consumer.SetHandler(n.messageHandler)
	defer n.publisher.Close()
	n.consumer.ConsumeMessage(ctx)
}

func (n *NotifierService) messageHandler(_ string, message mqtt.Message) error {
	if !n.deduper.ShouldProcess(dedup.PayloadKey(message.Topic(), message.Payload())) {
		metrics.IncDuplicateMessage("bloom")
		return nil
	}

	var evt messages.BloomDetectedEvent
	if err := json.Unmarshal(message.Payload(), &evt); err != nil {
		n.log.Warn().Err(err).Msg("bad bloom payload, skipping")
		return nil
	}
	if evt.RegionID == "" || evt.EventID == "" {
		n.log.Warn().Msg("bloom without region or id, skipping")
		return nil
	}

	// filter uses the same rules as the config file: region list + rank
	filter := &entities.BloomEvent{
		RegionID:  evt.RegionID,
		Intensity: entities.BloomIntensity(evt.Intensity),
	}
	for _, sub := range n.subs.For(filter) {
		res := n.deliver(context.Background(), sub, message.Payload())
		metrics.IncWebhookDelivery(sub.Name, res.reason)
		n.publishResult(evt, sub, res)
	}
	return nil
}

// deliver POSTs the bloom JSON to one subscriber, retrying transient
// failures with exponential backoff behind the endpoint's breaker.
func (n *NotifierService) deliver(ctx context.Context, sub entities.Subscriber, payload []byte) deliveryResult {
	attempts := 0
	reason := "timeout"

	op := func() error {
		attempts++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Delivery-Id", uuid.NewString())

		resp, err := n.client.Do(req)
		if err != nil {
			reason = "timeout"
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			reason = "delivered"
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			// the endpoint answered and said no; retrying will not help
			reason = "rejected"
			return backoff.Permanent(fmt.Errorf("endpoint returned %s", resp.Status))
		default:
			reason = "rejected"
			return fmt.Errorf("endpoint returned %s", resp.Status)
		}
	}

	_, err := n.breakerFor(sub.Name).Execute(func() (any, error) {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = n.retryInterval
		return nil, backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, n.retryMax), ctx))
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// never reached the endpoint
			return deliveryResult{status: "FAIL", attempts: 0, reason: "timeout"}
		}
		return deliveryResult{status: "FAIL", attempts: attempts, reason: reason}
	}
	return deliveryResult{status: "OK", attempts: attempts, reason: "delivered"}
}

func (n *NotifierService) publishResult(evt messages.BloomDetectedEvent, sub entities.Subscriber, res deliveryResult) {
	out := messages.NotifyResultEvent{
		RegionID:  evt.RegionID,
		EventID:   evt.EventID,
		Endpoint:  sub.URL,
		Status:    res.status,
		Attempts:  res.attempts,
		Reason:    res.reason,
		Timestamp: time.Now().UTC(),
	}
	b, _ := json.Marshal(out)
	topic := "event/notifyResult/" + evt.RegionID
	if err := n.publisher.PublishToQos(topic, 1, false, string(b)); err != nil {
		n.log.Error().Err(err).Str("subscriber", sub.Name).Msg("notify result publish failed")
		return
	}
	n.log.Info().Str("subscriber", sub.Name).Str("event", evt.EventID).
		Str("status", res.status).Int("attempts", res.attempts).Str("reason", res.reason).
		Msg("delivery result")
}

func (n *NotifierService) breakerFor(name string) *gobreaker.CircuitBreaker {
	n.breakerMu.Lock()
	defer n.breakerMu.Unlock()
	if cb, ok := n.breakers[name]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: defaultBreakerOpen,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= defaultBreakerFails
		},
	})
	n.breakers[name] = cb
	return cb
}
