package event

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	msg "github.com/LeonardoBeccarini/bloomwatch/internal/model/messages"
)

type CommonEvent struct {
	EventType     string // bloom.detected | forecast.ready | notify.result
	SourceService string // detector-service | notifier-service | ...
	RegionID      string
	Severity      string // info|notice|warning
	Fields        map[string]interface{}
	Timestamp     time.Time
}

// MQTTHandler turns MQTT messages into CommonEvents and hands them to
// sink (Influx).
type MQTTHandler struct{ sink func(CommonEvent) }

func NewMQTTHandler(sink func(CommonEvent)) *MQTTHandler { return &MQTTHandler{sink: sink} }

func (h *MQTTHandler) Handle(_ string, m mqtt.Message) error {
	topic := m.Topic()
	payload := m.Payload()

	var (
		evt CommonEvent
		err error
	)
	switch {
	case strings.HasPrefix(topic, "event/bloomDetected/"):
		evt, err = decodeBloom(topic, payload)
	case strings.HasPrefix(topic, "event/forecastReady/"):
		evt, err = decodeForecast(topic, payload)
	case strings.HasPrefix(topic, "event/notifyResult/"):
		evt, err = decodeNotifyResult(topic, payload)
	default:
		return nil // ignore other topics
	}
	if err != nil {
		return err
	}
	if h.sink != nil {
		h.sink(evt)
	}
	return nil
}

// severityFor grades a bloom by intensity: strong blooms are worth a
// notice, exceptional ones a warning.
func severityFor(intensity string) string {
	switch strings.ToLower(strings.TrimSpace(intensity)) {
	case "exceptional":
		return "warning"
	case "strong":
		return "notice"
	default:
		return "info"
	}
}

func decodeBloom(topic string, payload []byte) (CommonEvent, error) {
	var b msg.BloomDetectedEvent
	if err := json.Unmarshal(payload, &b); err != nil {
		return CommonEvent{}, err
	}
	regionID := pickRegion(topic, b.RegionID, "event/bloomDetected/")
	if regionID == "" {
		return CommonEvent{}, errors.New("bloom: missing region")
	}
	return CommonEvent{
		EventType:     "bloom.detected",
		SourceService: "detector-service",
		RegionID:      regionID,
		Severity:      severityFor(b.Intensity),
		Fields: map[string]interface{}{
			"event_id":    b.EventID,
			"ndvi":        b.NDVI,
			"ndvi_smooth": b.NDVISmooth,
			"intensity":   b.Intensity,
			"peak_date":   b.Date.UTC().Format(time.RFC3339),
		},
		Timestamp: b.Timestamp,
	}, nil
}

func decodeForecast(topic string, payload []byte) (CommonEvent, error) {
	var f msg.ForecastReadyEvent
	if err := json.Unmarshal(payload, &f); err != nil {
		return CommonEvent{}, err
	}
	regionID := pickRegion(topic, f.RegionID, "event/forecastReady/")
	if regionID == "" {
		return CommonEvent{}, errors.New("forecast: missing region")
	}
	fields := map[string]interface{}{
		"horizon_days": int64(f.HorizonDays),
		"trained_on":   int64(f.TrainedOn),
		"peak_count":   int64(len(f.Peaks)),
	}
	if len(f.Peaks) > 0 {
		fields["next_peak_date"] = f.Peaks[0].Date.UTC().Format(time.RFC3339)
	}
	return CommonEvent{
		EventType:     "forecast.ready",
		SourceService: "detector-service",
		RegionID:      regionID,
		Severity:      "info",
		Fields:        fields,
		Timestamp:     f.GeneratedAt,
	}, nil
}

func decodeNotifyResult(topic string, payload []byte) (CommonEvent, error) {
	var r msg.NotifyResultEvent
	if err := json.Unmarshal(payload, &r); err != nil {
		return CommonEvent{}, err
	}
	regionID := pickRegion(topic, r.RegionID, "event/notifyResult/")
	if regionID == "" {
		return CommonEvent{}, errors.New("notifyResult: missing region")
	}
	sev := "info"
	if strings.EqualFold(r.Status, "FAIL") {
		sev = "warning"
	}
	return CommonEvent{
		EventType:     "notify.result",
		SourceService: "notifier-service",
		RegionID:      regionID,
		Severity:      sev,
		Fields: map[string]interface{}{
			"event_id": r.EventID,
			"endpoint": r.Endpoint,
			"status":   r.Status,
			"attempts": int64(r.Attempts),
			"reason":   r.Reason,
		},
		Timestamp: r.Timestamp,
	}, nil
}

// pickRegion uses the payload region, or the topic "prefix/{region}".
func pickRegion(topic, regionID, prefix string) string {
	if strings.TrimSpace(regionID) != "" {
		return regionID
	}
	suffix := strings.TrimPrefix(topic, prefix)
	if i := strings.IndexByte(suffix, '/'); i >= 0 {
		suffix = suffix[:i]
	}
	return strings.TrimSpace(suffix)
}
