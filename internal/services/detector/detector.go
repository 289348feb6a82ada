package detector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/LeonardoBeccarini/bloomwatch/internal/analysis"
	"github.com/LeonardoBeccarini/bloomwatch/internal/config"
	"github.com/LeonardoBeccarini/bloomwatch/internal/model"
	"github.com/LeonardoBeccarini/bloomwatch/internal/model/entities"
	"github.com/LeonardoBeccarini/bloomwatch/internal/model/messages"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/dedup"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/logger"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/metrics"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/rabbitmq"
)

const (
	defaultForecastTTL     = 6 * time.Hour
	defaultRefreshInterval = 24 * time.Hour
	backfillDays           = 3650
)

// ErrUnknownRegion is returned for region IDs outside the configured set.
var ErrUnknownRegion = errors.New("unknown region")

// Service keeps every region's composite series in memory, publishes a
// BloomDetectedEvent for each newly confirmed peak, and serves forecasts
// out of a Redis cache.
type Service struct {
	consumer  rabbitmq.IConsumer[model.NDVISample]
	publisher rabbitmq.IPublisher
	regions   *entities.RegionSet
	policy    entities.DetectionPolicy
	rdb       *redis.Client
	store     *seriesStore
	deduper   *dedup.Deduper
	log       zerolog.Logger

	persistenceURL  string
	httpClient      *http.Client
	forecastTTL     time.Duration
	horizonPeriods  int
	refreshInterval time.Duration

	// event IDs already announced, so re-detection stays silent
	publishedMu sync.Mutex
	published   map[string]struct{}

	detectedMu sync.RWMutex
	detected   map[string][]entities.BloomEvent

	ready atomic.Bool
}

func NewService(
	c rabbitmq.IConsumer[model.NDVISample],
	p rabbitmq.IPublisher,
	regions *entities.RegionSet,
	policy entities.DetectionPolicy,
	rdb *redis.Client,
	persistenceURL string,
) (*Service, error) {
	if regions == nil || len(regions.Regions) == 0 {
		return nil, errors.New("no regions configured")
	}
	if rdb == nil {
		return nil, errors.New("redis client is nil")
	}

	svc := &Service{
		consumer:        c,
		publisher:       p,
		regions:         regions,
		policy:          policy.Resolve(),
		rdb:             rdb,
		store:           newSeriesStore(),
		deduper:         dedup.New(10*time.Minute, 20000),
		log:             logger.WithComponent("detector"),
		persistenceURL:  strings.TrimRight(persistenceURL, "/"),
		httpClient:      &http.Client{Timeout: 15 * time.Second},
		forecastTTL:     config.EnvDuration("FORECAST_TTL", defaultForecastTTL),
		horizonPeriods:  config.EnvInt("FORECAST_PERIODS", analysis.DefaultPeriods),
		refreshInterval: config.EnvDuration("FORECAST_REFRESH_INTERVAL", defaultRefreshInterval),
		published:       make(map[string]struct{}),
		detected:        make(map[string][]entities.BloomEvent),
	}
	c.SetHandler(svc.handleComposite)
	return svc, nil
}

// Backfill loads each region's history from the persistence read API,
// retrying with exponential backoff, then marks the peaks already in the
// history as known so the consume path only announces new ones. Regions
// with no stored history start cold; that is not an error.
func (s *Service) Backfill(ctx context.Context) error {
	for _, r := range s.regions.Regions {
		regionID := r.ID

		op := func() error {
			dates, values, err := s.fetchSeries(ctx, regionID)
			if err != nil {
				s.log.Warn().Err(err).Str("region", regionID).Msg("backfill fetch failed, retrying")
				return err
			}
			s.store.Replace(regionID, dates, values)
			return nil
		}
		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = 2 * time.Minute
		if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
			return fmt.Errorf("backfill %s: %w", regionID, err)
		}

		n := s.seedDetections(regionID)
		s.log.Info().Str("region", regionID).Int("points", s.store.Len(regionID)).
			Int("known_peaks", n).Msg("backfill complete")
	}
	s.ready.Store(true)
	return nil
}

// Ready reports whether backfill has completed.
func (s *Service) Ready() bool { return s.ready.Load() }

// Start consumes composites and refreshes forecasts until ctx is done.
func (s *Service) Start(ctx context.Context) {
	go s.forecastLoop(ctx)
	go s.consumer.ConsumeMessage(ctx)
	<-ctx.Done()
}

func (s *Service) handleComposite(_ string, msg mqtt.Message) error {
	if !s.deduper.ShouldProcess(dedup.PayloadKey(msg.Topic(), msg.Payload())) {
		metrics.IncDuplicateMessage("composite")
		return nil
	}

	var m model.NDVISample
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		s.log.Warn().Err(err).Str("topic", msg.Topic()).Msg("bad payload, skipping")
		return nil
	}
	if s.regions.Get(m.RegionID) == nil {
		s.log.Warn().Str("region", m.RegionID).Msg("composite for unknown region, skipping")
		return nil
	}
	t := m.Timestamp
	if t.IsZero() {
		t = time.Now().UTC()
	}

	s.store.Append(m.RegionID, t.UTC(), m.NDVI)
	s.runDetection(m.RegionID)
	return nil
}

// seedDetections records peaks already present in a backfilled series
// without publishing them.
func (s *Service) seedDetections(regionID string) int {
	events := s.detect(regionID)
	for _, ev := range events {
		s.markPublished(ev)
	}
	return len(events)
}

// runDetection re-analyses one region and publishes every peak whose
// event ID has not been announced before.
func (s *Service) runDetection(regionID string) {
	events := s.detect(regionID)
	if len(events) == 0 {
		metrics.IncDetectionRun(regionID, "no_peak")
		return
	}

	published := 0
	for _, ev := range events {
		if !s.markPublished(ev) {
			continue
		}
		if err := s.publishBloom(ev); err != nil {
			s.log.Error().Err(err).Str("region", regionID).Str("event", ev.ID).Msg("bloom publish failed")
			continue
		}
		metrics.IncBloomDetected(regionID, string(ev.Intensity))
		published++
	}
	if published > 0 {
		metrics.IncDetectionRun(regionID, "bloom")
	} else {
		metrics.IncDetectionRun(regionID, "known")
	}
}

// detect runs smooth + peak finding over the region's current series and
// returns one observed BloomEvent per peak. The series-final point can
// never be a peak, so a maximum still growing at the series end is only
// confirmed once its right neighbor arrives.
func (s *Service) detect(regionID string) []entities.BloomEvent {
	dates, values := s.store.Series(regionID)
	metrics.RecordSeriesLength(regionID, len(dates))
	if len(dates) < 3 {
		return nil
	}

	rows, peaks := analysis.Process(dates, values, s.policy)
	out := make([]entities.BloomEvent, 0, len(peaks))
	for _, i := range peaks {
		out = append(out, entities.NewBloomEvent(regionID, rows[i].Date, rows[i].Smoothed, entities.KindObserved))
	}
	return out
}

// markPublished returns true the first time an event ID is seen.
func (s *Service) markPublished(ev entities.BloomEvent) bool {
	s.publishedMu.Lock()
	if _, seen := s.published[ev.ID]; seen {
		s.publishedMu.Unlock()
		return false
	}
	s.published[ev.ID] = struct{}{}
	s.publishedMu.Unlock()

	s.detectedMu.Lock()
	s.detected[ev.RegionID] = append(s.detected[ev.RegionID], ev)
	sort.Slice(s.detected[ev.RegionID], func(a, b int) bool {
		return s.detected[ev.RegionID][a].Date.Before(s.detected[ev.RegionID][b].Date)
	})
	s.detectedMu.Unlock()
	return true
}

func (s *Service) publishBloom(ev entities.BloomEvent) error {
	dates, values := s.store.Series(ev.RegionID)
	raw := ev.NDVI
	var seriesEnd time.Time
	if n := len(dates); n > 0 {
		seriesEnd = dates[n-1]
		for i, d := range dates {
			if d.Equal(ev.Date) {
				raw = values[i]
				break
			}
		}
	}

	evt := messages.BloomDetectedEvent{
		EventID:    ev.ID,
		RegionID:   ev.RegionID,
		Date:       ev.Date,
		NDVI:       raw,
		NDVISmooth: ev.NDVI,
		Intensity:  string(ev.Intensity),
		SeriesEnd:  seriesEnd,
		Timestamp:  time.Now().UTC(),
	}
	b, _ := json.Marshal(evt)
	topic := "event/bloomDetected/" + ev.RegionID
	if err := s.publisher.PublishToQos(topic, 1, false, string(b)); err != nil {
		return err
	}
	s.log.Info().Str("region", ev.RegionID).Str("event", ev.ID).
		Str("intensity", string(ev.Intensity)).Time("date", ev.Date).Msg("bloom detected")
	return nil
}

// Blooms returns the observed events for one region, ascending by date.
func (s *Service) Blooms(regionID string) ([]entities.BloomEvent, error) {
	if s.regions.Get(regionID) == nil {
		return nil, ErrUnknownRegion
	}
	s.detectedMu.RLock()
	defer s.detectedMu.RUnlock()
	return append([]entities.BloomEvent(nil), s.detected[regionID]...), nil
}

// AllBlooms returns the observed events for every configured region,
// keyed by region ID. Regions without events map to an empty slice.
func (s *Service) AllBlooms() map[string][]entities.BloomEvent {
	s.detectedMu.RLock()
	defer s.detectedMu.RUnlock()
	out := make(map[string][]entities.BloomEvent, len(s.regions.Regions))
	for _, id := range s.regions.IDs() {
		out[id] = append([]entities.BloomEvent{}, s.detected[id]...)
	}
	return out
}

func (s *Service) fetchSeries(ctx context.Context, regionID string) ([]time.Time, []float64, error) {
	url := fmt.Sprintf("%s/data/series?region=%s&days=%d", s.persistenceURL, regionID, backfillDays)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("persistence returned %s", resp.Status)
	}

	var body struct {
		Points []struct {
			Date time.Time `json:"date"`
			NDVI float64   `json:"ndvi"`
		} `json:"points"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, nil, err
	}

	dates := make([]time.Time, 0, len(body.Points))
	values := make([]float64, 0, len(body.Points))
	for _, p := range body.Points {
		dates = append(dates, p.Date.UTC())
		values = append(values, p.NDVI)
	}
	return dates, values, nil
}
