package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/rs/zerolog"

	"github.com/LeonardoBeccarini/bloomwatch/internal/model"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/logger"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/metrics"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/rabbitmq"
)

// InfluxConfig describes the NDVI bucket.
type InfluxConfig struct {
	InfluxURL       string
	InfluxToken     string
	InfluxOrg       string
	InfluxBucket    string
	MeasurementMode string // "per-region" | "single"
	MeasurementName string // base name, e.g. "ndvi"
}

// Service persists composite samples to InfluxDB and keeps an in-memory
// latest-per-region cache so reads survive an Influx outage.
type Service struct {
	consumer        rabbitmq.IConsumer[model.NDVISample]
	writeAPI        api.WriteAPIBlocking
	queryAPI        api.QueryAPI
	bucket          string
	measurementMode string
	measurementName string
	log             zerolog.Logger

	cacheMu sync.RWMutex
	latest  map[string]model.NDVISample

	// consecutive write failures; readiness degrades past a threshold
	writeFailures atomic.Int64
}

func NewService(consumer rabbitmq.IConsumer[model.NDVISample], client influxdb2.Client, cfg InfluxConfig) (*Service, error) {
	if cfg.InfluxURL == "" || cfg.InfluxToken == "" || cfg.InfluxOrg == "" || cfg.InfluxBucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}
	name := cfg.MeasurementName
	if name == "" {
		name = "ndvi"
	}
	return &Service{
		consumer:        consumer,
		writeAPI:        client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		queryAPI:        client.QueryAPI(cfg.InfluxOrg),
		bucket:          cfg.InfluxBucket,
		measurementMode: cfg.MeasurementMode,
		measurementName: name,
		latest:          make(map[string]model.NDVISample),
		log:             logger.WithComponent("persistence"),
	}, nil
}

// Start consumes the composite stream and writes points until ctx is
// cancelled. Malformed payloads are logged and skipped so the stream
// keeps flowing; write failures are returned so the broker may redeliver.
func (s *Service) Start(ctx context.Context) {
	s.consumer.SetHandler(func(topic string, msg mqtt.Message) error {
		var m model.NDVISample
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			s.log.Warn().Err(err).Str("topic", topic).Msg("invalid JSON, skipping")
			return nil
		}
		if m.RegionID == "" {
			s.log.Warn().Str("topic", topic).Msg("sample without region id, skipping")
			return nil
		}

		t := m.Timestamp
		if t.IsZero() {
			t = time.Now().UTC()
		}

		tags := map[string]string{
			"region_id": m.RegionID,
			"source":    m.Source,
		}
		fields := map[string]interface{}{
			"value":       m.NDVI,
			"cloud_cover": m.CloudCover,
			"composite":   m.Composite,
		}
		point := influxdb2.NewPoint(s.measurementFor(m.RegionID), tags, fields, t)

		if err := s.writeAPI.WritePoint(ctx, point); err != nil {
			s.writeFailures.Add(1)
			metrics.IncInfluxWrite("failure")
			s.log.Error().Err(err).Str("region", m.RegionID).Msg("influx write failed")
			return err
		}
		s.writeFailures.Store(0)
		metrics.IncInfluxWrite("success")

		s.updateCache(m, t)
		s.log.Debug().Str("region", m.RegionID).Float64("ndvi", m.NDVI).Time("at", t).Msg("point written")
		return nil
	})

	s.consumer.ConsumeMessage(ctx)
}

func (s *Service) updateCache(m model.NDVISample, t time.Time) {
	m.Timestamp = t
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if cur, ok := s.latest[m.RegionID]; !ok || t.After(cur.Timestamp) {
		s.latest[m.RegionID] = m
	}
}

// LatestCache snapshots the newest sample per region, sorted by region.
func (s *Service) LatestCache() []model.NDVISample {
	s.cacheMu.RLock()
	out := make([]model.NDVISample, 0, len(s.latest))
	for _, v := range s.latest {
		out = append(out, v)
	}
	s.cacheMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].RegionID < out[j].RegionID })
	return out
}

// Degraded reports whether writes have been failing long enough that
// readiness should drop.
func (s *Service) Degraded() bool {
	return s.writeFailures.Load() >= 5
}

// QueryLatestFromInflux fetches the newest point per region within the
// given window.
func (s *Service) QueryLatestFromInflux(ctx context.Context, minutes int) ([]model.NDVISample, error) {
	flux := fmt.Sprintf(`from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._field == "value")
  |> group(columns: ["region_id"])
  |> last()`, s.bucket, minutes)

	res, err := s.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("persistence: latest query: %w", err)
	}
	defer res.Close()

	var out []model.NDVISample
	for res.Next() {
		rec := res.Record()
		v, ok := rec.Value().(float64)
		if !ok {
			continue
		}
		sample := model.NDVISample{
			NDVI:      v,
			Composite: true,
			Timestamp: rec.Time(),
		}
		if rid, ok := rec.ValueByKey("region_id").(string); ok {
			sample.RegionID = rid
		}
		if src, ok := rec.ValueByKey("source").(string); ok {
			sample.Source = src
		}
		out = append(out, sample)
	}
	if res.Err() != nil {
		return nil, fmt.Errorf("persistence: latest query: %w", res.Err())
	}
	return out, nil
}

// QuerySeries fetches one region's composite series, ascending by time.
func (s *Service) QuerySeries(ctx context.Context, regionID string, days int) ([]time.Time, []float64, error) {
	flux := fmt.Sprintf(`from(bucket: %q)
  |> range(start: -%dd)
  |> filter(fn: (r) => r._field == "value" and r.region_id == %q)
  |> keep(columns: ["_time", "_value"])
  |> sort(columns: ["_time"])`, s.bucket, days, regionID)

	res, err := s.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, nil, fmt.Errorf("persistence: series query: %w", err)
	}
	defer res.Close()

	var dates []time.Time
	var values []float64
	for res.Next() {
		rec := res.Record()
		v, ok := rec.Value().(float64)
		if !ok {
			continue
		}
		dates = append(dates, rec.Time())
		values = append(values, v)
	}
	if res.Err() != nil {
		return nil, nil, fmt.Errorf("persistence: series query: %w", res.Err())
	}
	return dates, values, nil
}

func (s *Service) measurementFor(regionID string) string {
	measurement := s.measurementName
	if s.measurementMode == "per-region" {
		measurement = measurement + "_" + regionID
	}
	return sanitizeMeasurement(measurement)
}

func sanitizeMeasurement(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '_', r == ':', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
