package detector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPMux exposes the detection surface:
//
//	GET /healthz
//	GET /readyz
//	GET /metrics
//	GET /blooms?region=ID   (region omitted: all regions keyed by ID)
//	GET /forecast?region=ID&periods=N&refresh=0|1
func NewHTTPMux(svc *Service) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !svc.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ready": false, "reason": "backfill in progress"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ready": true})
	})

	mux.HandleFunc("/blooms", func(w http.ResponseWriter, r *http.Request) {
		regionID := r.URL.Query().Get("region")
		if regionID == "" {
			all := svc.AllBlooms()
			total := 0
			for _, events := range all {
				total += len(events)
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"count":   total,
				"regions": all,
			})
			return
		}
		events, err := svc.Blooms(regionID)
		if err != nil {
			http.Error(w, "unknown region", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"region": regionID,
			"count":  len(events),
			"events": events,
		})
	})

	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		regionID := r.URL.Query().Get("region")
		if regionID == "" {
			http.Error(w, "region is required", http.StatusBadRequest)
			return
		}
		periods := 0
		if v := r.URL.Query().Get("periods"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 60 {
				http.Error(w, "periods must be in [1,60]", http.StatusBadRequest)
				return
			}
			periods = n
		}
		refresh := r.URL.Query().Get("refresh") == "1"

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()
		payload, cached, err := svc.Forecast(ctx, regionID, periods, refresh)
		if err != nil {
			if errors.Is(err, ErrUnknownRegion) {
				http.Error(w, "unknown region", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if cached {
			w.Header().Set("X-Cache", "hit")
		} else {
			w.Header().Set("X-Cache", "miss")
		}
		_ = json.NewEncoder(w).Encode(payload)
	})

	return mux
}
