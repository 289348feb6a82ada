package event

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/bloomwatch/internal/model/messages"
)

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

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestDecodeBloomFromPayload(t *testing.T) {
	ts := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	peak := time.Date(2025, 2, 26, 0, 0, 0, 0, time.UTC)
	payload := mustJSON(t, messages.BloomDetectedEvent{
		EventID:    "abc123",
		RegionID:   "bhopal",
		Date:       peak,
		NDVI:       0.88,
		NDVISmooth: 0.81,
		Intensity:  "strong",
		Timestamp:  ts,
	})

	evt, err := decodeBloom("event/bloomDetected/bhopal", payload)
	require.NoError(t, err)

	assert.Equal(t, "bloom.detected", evt.EventType)
	assert.Equal(t, "detector-service", evt.SourceService)
	assert.Equal(t, "bhopal", evt.RegionID)
	assert.Equal(t, "notice", evt.Severity)
	assert.Equal(t, ts, evt.Timestamp)
	assert.Equal(t, "abc123", evt.Fields["event_id"])
	assert.InDelta(t, 0.81, evt.Fields["ndvi_smooth"].(float64), 1e-9)
	assert.Equal(t, peak.Format(time.RFC3339), evt.Fields["peak_date"])
}

func TestDecodeBloomRegionFromTopic(t *testing.T) {
	payload := mustJSON(t, messages.BloomDetectedEvent{Intensity: "weak"})

	evt, err := decodeBloom("event/bloomDetected/ujjain", payload)
	require.NoError(t, err)
	assert.Equal(t, "ujjain", evt.RegionID)

	_, err = decodeBloom("event/bloomDetected/", payload)
	assert.Error(t, err, "no region anywhere must fail")
}

func TestSeverityFor(t *testing.T) {
	cases := map[string]string{
		"weak":        "info",
		"moderate":    "info",
		"strong":      "notice",
		"exceptional": "warning",
		" Strong ":    "notice",
		"":            "info",
		"garbage":     "info",
	}
	for intensity, want := range cases {
		assert.Equal(t, want, severityFor(intensity), "intensity %q", intensity)
	}
}

func TestDecodeNotifyResultSeverity(t *testing.T) {
	fail := mustJSON(t, messages.NotifyResultEvent{
		RegionID: "indore", EventID: "ev1", Endpoint: "http://hook",
		Status: "FAIL", Attempts: 3, Reason: "timeout",
	})
	evt, err := decodeNotifyResult("event/notifyResult/indore", fail)
	require.NoError(t, err)
	assert.Equal(t, "warning", evt.Severity)
	assert.Equal(t, int64(3), evt.Fields["attempts"])
	assert.Equal(t, "timeout", evt.Fields["reason"])

	ok := mustJSON(t, messages.NotifyResultEvent{
		RegionID: "indore", Status: "OK", Attempts: 1, Reason: "delivered",
	})
	evt, err = decodeNotifyResult("event/notifyResult/indore", ok)
	require.NoError(t, err)
	assert.Equal(t, "info", evt.Severity)
}

func TestDecodeForecastFields(t *testing.T) {
	next := time.Date(2025, 9, 27, 0, 0, 0, 0, time.UTC)
	payload := mustJSON(t, messages.ForecastReadyEvent{
		RegionID:    "sagar",
		HorizonDays: 192,
		TrainedOn:   69,
		Peaks: []messages.PredictedPeak{
			{EventID: "p1", Date: next, NDVI: 0.74, Intensity: "moderate"},
		},
		GeneratedAt: time.Now().UTC(),
	})

	evt, err := decodeForecast("event/forecastReady/sagar", payload)
	require.NoError(t, err)
	assert.Equal(t, "forecast.ready", evt.EventType)
	assert.Equal(t, int64(192), evt.Fields["horizon_days"])
	assert.Equal(t, int64(1), evt.Fields["peak_count"])
	assert.Equal(t, next.Format(time.RFC3339), evt.Fields["next_peak_date"])
}

func TestHandlerRoutesAndIgnores(t *testing.T) {
	var got []CommonEvent
	h := NewMQTTHandler(func(e CommonEvent) { got = append(got, e) })

	bloom := fakeMessage{
		topic:   "event/bloomDetected/rewa",
		payload: mustJSON(t, messages.BloomDetectedEvent{RegionID: "rewa", Intensity: "weak"}),
	}
	require.NoError(t, h.Handle("", bloom))
	require.Len(t, got, 1)

	other := fakeMessage{topic: "ndvi/sample/rewa", payload: []byte(`{}`)}
	require.NoError(t, h.Handle("", other))
	assert.Len(t, got, 1, "non-event topics are ignored")

	bad := fakeMessage{topic: "event/bloomDetected/rewa", payload: []byte(`{broken`)}
	assert.Error(t, h.Handle("", bad))
}

func TestEventToPoint(t *testing.T) {
	evt := CommonEvent{
		EventType:     "bloom.detected",
		SourceService: "detector-service",
		RegionID:      "satna",
		Severity:      "warning",
		Fields:        map[string]interface{}{"ndvi_smooth": 0.91},
		Timestamp:     time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	}

	p := EventToPoint(evt)
	assert.Equal(t, "system_event", p.Name())
	assert.Equal(t, evt.Timestamp, p.Time())

	tags := map[string]string{}
	for _, tg := range p.TagList() {
		tags[tg.Key] = tg.Value
	}
	assert.Equal(t, "satna", tags["region_id"])
	assert.Equal(t, "warning", tags["severity"])

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.InDelta(t, 0.91, fields["ndvi_smooth"].(float64), 1e-9)
	assert.Equal(t, int64(1), fields["count"], "count guard keeps the point writable")
}

func TestParseBloomParamsClamps(t *testing.T) {
	r := httptest.NewRequest("GET", "/events/blooms/latest?minutes=0&limit=9999&timeout_ms=1", nil)
	p := parseBloomParams(r, 1440, 20, 2000)
	assert.Equal(t, 1, p.Minutes)
	assert.Equal(t, 500, p.Limit)
	assert.Equal(t, 200, p.TimeoutMS)

	r = httptest.NewRequest("GET", "/events/blooms/latest", nil)
	p = parseBloomParams(r, 1440, 20, 2000)
	assert.Equal(t, 1440, p.Minutes)
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, 2000, p.TimeoutMS)
}
