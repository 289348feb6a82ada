package event

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// BloomRow is the payload exposed to the gateway.
type BloomRow struct {
	RegionID string  `json:"region_id,omitempty"`
	NDVI     float64 `json:"ndvi"` // smoothed NDVI at the peak
	Severity string  `json:"severity,omitempty"`
	Time     string  `json:"time"` // RFC3339
}

type bloomQueryParams struct {
	Minutes   int
	Limit     int
	TimeoutMS int
}

func parseBloomParams(r *http.Request, defMin, defLim, defTOms int) bloomQueryParams {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if max > 0 && n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	return bloomQueryParams{
		Minutes:   get("minutes", defMin, 1, 366*24*60),
		Limit:     get("limit", defLim, 1, 500),
		TimeoutMS: get("timeout_ms", defTOms, 200, 5000),
	}
}

func buildBloomFlux(bucket string, minutes, limit int) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == "system_event" and r.event_type == "bloom.detected")
  |> filter(fn: (r) => r._field == "ndvi_smooth")
  |> keep(columns: ["_time","_value","region_id","severity"])
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, minutes, limit)
}

func runBloomQuery(w http.ResponseWriter, r *http.Request, influx influxdb2.Client, org, bucket string, defMin, defLim int) {
	p := parseBloomParams(r, defMin, defLim, 2000)

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(p.TimeoutMS)*time.Millisecond)
	defer cancel()

	api := influx.QueryAPI(org)
	res, err := api.Query(ctx, buildBloomFlux(bucket, p.Minutes, p.Limit))
	if err != nil {
		// degraded read: an empty list, never a 5xx
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Error", "influx-query-error")
		_, _ = w.Write([]byte("[]"))
		return
	}
	defer res.Close()

	out := make([]BloomRow, 0, p.Limit)
	for res.Next() {
		rec := res.Record()

		var ndvi float64
		switch v := rec.Value().(type) {
		case float64:
			ndvi = v
		case int64:
			ndvi = float64(v)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				ndvi = f
			}
		}

		row := BloomRow{
			NDVI: ndvi,
			Time: rec.Time().UTC().Format(time.RFC3339),
		}
		if v, ok := rec.ValueByKey("region_id").(string); ok {
			row.RegionID = v
		}
		if v, ok := rec.ValueByKey("severity").(string); ok {
			row.Severity = v
		}
		out = append(out, row)
	}
	if res.Err() != nil {
		w.Header().Set("X-Error", "influx-iter-error")
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// NewBloomsLatestHandler serves the route the gateway polls:
// GET /events/blooms/latest?limit=20[&minutes=525600][&timeout_ms=2000]
func NewBloomsLatestHandler(influx influxdb2.Client, org, bucket string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		runBloomQuery(w, r, influx, org, bucket, 525600, 20)
	})
}
