package detector

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LeonardoBeccarini/bloomwatch/internal/analysis"
	"github.com/LeonardoBeccarini/bloomwatch/internal/model/entities"
	"github.com/LeonardoBeccarini/bloomwatch/internal/model/messages"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/metrics"
)

// ForecastPoint is one step of the fitted + projected curve.
type ForecastPoint struct {
	Date  time.Time `json:"date"`
	Yhat  float64   `json:"yhat"`
	Lower float64   `json:"yhat_lower"`
	Upper float64   `json:"yhat_upper"`
}

// ForecastPayload is the forecast REST response and the Redis cache value.
type ForecastPayload struct {
	Region      string                   `json:"region"`
	Periods     int                      `json:"periods"`
	HorizonDays int                      `json:"horizon_days"`
	TrainedOn   int                      `json:"trained_on"`
	SeriesEnd   time.Time                `json:"series_end"`
	GeneratedAt time.Time                `json:"generated_at"`
	Points      []ForecastPoint          `json:"points"`
	Peaks       []messages.PredictedPeak `json:"peaks"`
}

func forecastKey(regionID string) string { return "forecast:" + regionID }

// Forecast returns the cached forecast for a region, or fits a fresh one.
// Only default-horizon forecasts are cached; refresh bypasses the cache.
// A Redis outage downgrades to compute-every-time, it never fails the call.
func (s *Service) Forecast(ctx context.Context, regionID string, periods int, refresh bool) (*ForecastPayload, bool, error) {
	if s.regions.Get(regionID) == nil {
		return nil, false, ErrUnknownRegion
	}
	if periods <= 0 {
		periods = s.horizonPeriods
	}
	cacheable := periods == s.horizonPeriods

	if cacheable && !refresh {
		val, err := s.rdb.Get(ctx, forecastKey(regionID)).Result()
		switch {
		case err == nil:
			var cached ForecastPayload
			if jsonErr := json.Unmarshal([]byte(val), &cached); jsonErr == nil {
				return &cached, true, nil
			}
			s.log.Warn().Str("region", regionID).Msg("corrupt forecast cache entry, recomputing")
		case !errors.Is(err, redis.Nil):
			s.log.Warn().Err(err).Str("region", regionID).Msg("forecast cache read failed")
		}
	}

	payload, err := s.fitForecast(regionID, periods)
	if err != nil {
		metrics.IncForecastRefit(regionID, "error")
		return nil, false, err
	}
	metrics.IncForecastRefit(regionID, "success")

	if cacheable {
		if b, err := json.Marshal(payload); err == nil {
			if err := s.rdb.Set(ctx, forecastKey(regionID), b, s.forecastTTL).Err(); err != nil {
				s.log.Warn().Err(err).Str("region", regionID).Msg("forecast cache write failed")
			}
		}
	}
	return payload, false, nil
}

func (s *Service) fitForecast(regionID string, periods int) (*ForecastPayload, error) {
	dates, values := s.store.Series(regionID)
	rows, _ := analysis.Process(dates, values, s.policy)
	smoothed := make([]float64, len(rows))
	for i, r := range rows {
		smoothed[i] = r.Smoothed
	}

	start := time.Now()
	res, err := analysis.FitForecast(dates, smoothed, periods, s.policy)
	if err != nil {
		return nil, err
	}
	metrics.ObserveForecastFit(time.Since(start).Seconds())

	points := make([]ForecastPoint, len(res.Dates))
	for i := range res.Dates {
		points[i] = ForecastPoint{
			Date:  res.Dates[i],
			Yhat:  res.Yhat[i],
			Lower: res.Lower[i],
			Upper: res.Upper[i],
		}
	}
	peaks := make([]messages.PredictedPeak, 0, len(res.FuturePeaks))
	for _, i := range res.FuturePeaks {
		peaks = append(peaks, messages.PredictedPeak{
			EventID:   entities.BloomEventID(regionID, res.Dates[i], entities.KindPredicted),
			Date:      res.Dates[i],
			NDVI:      res.Yhat[i],
			Intensity: string(entities.IntensityFor(res.Smoothed[i])),
		})
	}

	return &ForecastPayload{
		Region:      regionID,
		Periods:     periods,
		HorizonDays: periods * analysis.StepDays,
		TrainedOn:   res.TrainedOn,
		SeriesEnd:   res.SeriesEnd,
		GeneratedAt: time.Now().UTC(),
		Points:      points,
		Peaks:       peaks,
	}, nil
}

// forecastLoop refits every region on a fixed cadence and announces the
// result so downstream services see fresh horizons without polling.
func (s *Service) forecastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshAll(ctx)
		}
	}
}

func (s *Service) refreshAll(ctx context.Context) {
	for _, r := range s.regions.Regions {
		if s.store.Len(r.ID) < analysis.MinObservations {
			continue
		}
		payload, _, err := s.Forecast(ctx, r.ID, s.horizonPeriods, true)
		if err != nil {
			s.log.Warn().Err(err).Str("region", r.ID).Msg("scheduled refit failed")
			continue
		}

		evt := messages.ForecastReadyEvent{
			RegionID:    payload.Region,
			HorizonDays: payload.HorizonDays,
			TrainedOn:   payload.TrainedOn,
			SeriesEnd:   payload.SeriesEnd,
			Peaks:       payload.Peaks,
			GeneratedAt: payload.GeneratedAt,
		}
		b, _ := json.Marshal(evt)
		topic := "event/forecastReady/" + payload.Region
		if err := s.publisher.PublishToQos(topic, 1, false, string(b)); err != nil {
			s.log.Error().Err(err).Str("region", payload.Region).Msg("forecast publish failed")
			continue
		}
		s.log.Info().Str("region", payload.Region).Int("peaks", len(payload.Peaks)).Msg("forecast refreshed")
	}
}
