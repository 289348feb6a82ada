package persistence

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeonardoBeccarini/bloomwatch/internal/model"
)

type latestRow struct {
	RegionID   string    `json:"region_id"`
	NDVI       float64   `json:"ndvi"`
	CloudCover float64   `json:"cloud_cover"`
	Source     string    `json:"source"`
	Composite  bool      `json:"composite"`
	Timestamp  time.Time `json:"timestamp"`
}

type seriesPoint struct {
	Date time.Time `json:"date"`
	NDVI float64   `json:"ndvi"`
}

// NewHTTPMux exposes the read surface:
//
//	GET /healthz
//	GET /readyz
//	GET /metrics
//	GET /data/latest?source=auto|influx|cache&minutes=N
//	GET /data/series?region=ID&days=N
func NewHTTPMux(svc *Service) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if svc.Degraded() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ready": false, "reason": "influx writes failing"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ready": true})
	})

	mux.HandleFunc("/data/latest", func(w http.ResponseWriter, r *http.Request) {
		source := r.URL.Query().Get("source")
		if source == "" {
			source = "auto"
		}
		minutes := 60
		if v := r.URL.Query().Get("minutes"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 7*24*60 {
				minutes = n
			}
		}

		var samples []model.NDVISample
		used := "cache"

		if source == "influx" || source == "auto" {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			fromInflux, err := svc.QueryLatestFromInflux(ctx, minutes)
			switch {
			case err == nil && len(fromInflux) > 0:
				samples = fromInflux
				used = "influx"
			case source == "influx":
				http.Error(w, "influx unavailable", http.StatusBadGateway)
				return
			}
		}
		if samples == nil {
			samples = svc.LatestCache()
		}

		out := make([]latestRow, 0, len(samples))
		for _, s := range samples {
			out = append(out, latestRow{
				RegionID:   s.RegionID,
				NDVI:       s.NDVI,
				CloudCover: s.CloudCover,
				Source:     s.Source,
				Composite:  s.Composite,
				Timestamp:  s.Timestamp,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Data-Source", used)
		_ = json.NewEncoder(w).Encode(out)
	})

	mux.HandleFunc("/data/series", func(w http.ResponseWriter, r *http.Request) {
		regionID := r.URL.Query().Get("region")
		if regionID == "" {
			http.Error(w, "region is required", http.StatusBadRequest)
			return
		}
		days := 730
		if v := r.URL.Query().Get("days"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				days = n
			}
		}
		if days > 3650 {
			days = 3650
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		dates, values, err := svc.QuerySeries(ctx, regionID, days)
		if err != nil {
			http.Error(w, "series query failed", http.StatusBadGateway)
			return
		}

		points := make([]seriesPoint, 0, len(dates))
		for i := range dates {
			points = append(points, seriesPoint{Date: dates[i], NDVI: values[i]})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"region": regionID,
			"days":   days,
			"points": points,
		})
	})

	return mux
}
