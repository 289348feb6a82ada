package notifier

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/bloomwatch/internal/model/entities"
	"github.com/LeonardoBeccarini/bloomwatch/internal/model/messages"
)

type capturePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads []string
	qos      []byte
}

func (p *capturePublisher) PublishMessage(message string) error {
	return p.PublishToQos("", 0, false, message)
}
func (p *capturePublisher) PublishMessageQos(qos byte, retained bool, message string) error {
	return p.PublishToQos("", qos, retained, message)
}
func (p *capturePublisher) PublishToQos(topic string, qos byte, retained bool, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, message)
	p.qos = append(p.qos, qos)
	return nil
}
func (p *capturePublisher) Close() {}

func (p *capturePublisher) results(t *testing.T) []messages.NotifyResultEvent {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]messages.NotifyResultEvent, 0, len(p.payloads))
	for _, raw := range p.payloads {
		var r messages.NotifyResultEvent
		require.NoError(t, json.Unmarshal([]byte(raw), &r))
		out = append(out, r)
	}
	return out
}

type fakeMessage struct {
	mqttMessageEmbed
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

type mqttMessageEmbed struct{}

func (mqttMessageEmbed) Duplicate() bool   { return false }
func (mqttMessageEmbed) Qos() byte         { return 1 }
func (mqttMessageEmbed) Retained() bool    { return false }
func (mqttMessageEmbed) MessageID() uint16 { return 0 }
func (mqttMessageEmbed) Ack()              {}

func bloomMsg(t *testing.T, evt messages.BloomDetectedEvent) fakeMessage {
	t.Helper()
	b, err := json.Marshal(evt)
	require.NoError(t, err)
	return fakeMessage{topic: "event/bloomDetected/" + evt.RegionID, payload: b}
}

func newTestNotifier(subs ...entities.Subscriber) (*NotifierService, *capturePublisher) {
	pub := &capturePublisher{}
	svc := NewNotifierService(nil, pub, entities.SubscriberSet{Subscribers: subs})
	svc.retryInterval = time.Millisecond
	return svc, pub
}

func testBloom(id, region, intensity string) messages.BloomDetectedEvent {
	return messages.BloomDetectedEvent{
		EventID:    id,
		RegionID:   region,
		Date:       time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		NDVI:       0.78,
		NDVISmooth: 0.74,
		Intensity:  intensity,
		Timestamp:  time.Now().UTC(),
	}
}

func TestDeliverySuccess(t *testing.T) {
	var gotBody []byte
	var gotDeliveryID string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotDeliveryID = r.Header.Get("X-Delivery-Id")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	svc, pub := newTestNotifier(entities.Subscriber{Name: "hook", URL: ts.URL})
	msg := bloomMsg(t, testBloom("ev1", "bhopal", "moderate"))
	require.NoError(t, svc.messageHandler(msg.topic, msg))

	assert.JSONEq(t, string(msg.payload), string(gotBody), "webhook gets the bloom JSON verbatim")
	assert.NotEmpty(t, gotDeliveryID)

	results := pub.results(t)
	require.Len(t, results, 1)
	assert.Equal(t, "event/notifyResult/bhopal", pub.topics[0])
	assert.Equal(t, byte(1), pub.qos[0])
	assert.Equal(t, "OK", results[0].Status)
	assert.Equal(t, "delivered", results[0].Reason)
	assert.Equal(t, 1, results[0].Attempts)
	assert.Equal(t, "ev1", results[0].EventID)
	assert.Equal(t, ts.URL, results[0].Endpoint)
}

func TestDeliveryRejectedNoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	svc, pub := newTestNotifier(entities.Subscriber{Name: "hook", URL: ts.URL})
	msg := bloomMsg(t, testBloom("ev1", "bhopal", "moderate"))
	require.NoError(t, svc.messageHandler(msg.topic, msg))

	assert.Equal(t, int32(1), calls.Load(), "4xx is permanent, no retries")
	results := pub.results(t)
	require.Len(t, results, 1)
	assert.Equal(t, "FAIL", results[0].Status)
	assert.Equal(t, "rejected", results[0].Reason)
	assert.Equal(t, 1, results[0].Attempts)
}

func TestDeliveryRetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	svc, pub := newTestNotifier(entities.Subscriber{Name: "hook", URL: ts.URL})
	msg := bloomMsg(t, testBloom("ev1", "bhopal", "moderate"))
	require.NoError(t, svc.messageHandler(msg.topic, msg))

	assert.Equal(t, int32(3), calls.Load(), "initial attempt plus two retries")
	results := pub.results(t)
	require.Len(t, results, 1)
	assert.Equal(t, "FAIL", results[0].Status)
	assert.Equal(t, "rejected", results[0].Reason)
	assert.Equal(t, 3, results[0].Attempts)
}

func TestDeliveryTimeoutOnDeadEndpoint(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := ts.URL
	ts.Close() // nothing is listening anymore

	svc, pub := newTestNotifier(entities.Subscriber{Name: "hook", URL: url})
	msg := bloomMsg(t, testBloom("ev1", "bhopal", "moderate"))
	require.NoError(t, svc.messageHandler(msg.topic, msg))

	results := pub.results(t)
	require.Len(t, results, 1)
	assert.Equal(t, "FAIL", results[0].Status)
	assert.Equal(t, "timeout", results[0].Reason)
	assert.Equal(t, 3, results[0].Attempts)
}

func TestSubscriberFilters(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer ts.Close()

	svc, pub := newTestNotifier(
		entities.Subscriber{Name: "strong-only", URL: ts.URL, MinIntensity: entities.IntensityStrong},
		entities.Subscriber{Name: "indore-only", URL: ts.URL, Regions: []string{"indore"}},
	)

	// weak bloom in bhopal matches neither subscriber
	msg := bloomMsg(t, testBloom("ev1", "bhopal", "weak"))
	require.NoError(t, svc.messageHandler(msg.topic, msg))
	assert.Equal(t, int32(0), calls.Load())
	assert.Empty(t, pub.results(t))

	// an exceptional bloom in indore matches both
	msg = bloomMsg(t, testBloom("ev2", "indore", "exceptional"))
	require.NoError(t, svc.messageHandler(msg.topic, msg))
	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, pub.results(t), 2)
}

func TestDuplicateBloomDeliveredOnce(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer ts.Close()

	svc, _ := newTestNotifier(entities.Subscriber{Name: "hook", URL: ts.URL})
	msg := bloomMsg(t, testBloom("ev1", "bhopal", "moderate"))

	require.NoError(t, svc.messageHandler(msg.topic, msg))
	require.NoError(t, svc.messageHandler(msg.topic, msg)) // QoS 1 redelivery
	assert.Equal(t, int32(1), calls.Load())
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound) // permanent, one attempt per event
	}))
	defer ts.Close()

	svc, pub := newTestNotifier(entities.Subscriber{Name: "hook", URL: ts.URL})

	for i, id := range []string{"ev1", "ev2", "ev3", "ev4"} {
		msg := bloomMsg(t, testBloom(id, "bhopal", "moderate"))
		require.NoError(t, svc.messageHandler(msg.topic, msg), "event %d", i)
	}

	assert.Equal(t, int32(3), calls.Load(), "breaker opens after the third failure")

	results := pub.results(t)
	require.Len(t, results, 4)
	last := results[3]
	assert.Equal(t, "FAIL", last.Status)
	assert.Equal(t, 0, last.Attempts, "open breaker short-circuits before any attempt")
	assert.Equal(t, "timeout", last.Reason)
}
