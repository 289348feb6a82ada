package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeonardoBeccarini/bloomwatch/internal/model/entities"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/grpchealth"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/metrics"
)

// Router wires the dashboard surface:
//
//	GET /healthz
//	GET /readyz
//	GET /metrics
//	GET /dashboard/data
//	GET /api/regions
//	GET /api/regions/:id/series?days=N
//	GET /api/regions/:id/blooms
//	GET /api/regions/:id/forecast?periods=N&refresh=0|1
//	GET /api/regions/:id/export.csv?days=N
func (g *Gateway) Router() http.Handler {
	router := httprouter.New()
	router.HandlerFunc(http.MethodGet, "/healthz", g.handleHealthz)
	router.HandlerFunc(http.MethodGet, "/readyz", g.handleReadyz)
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())
	router.HandlerFunc(http.MethodGet, "/dashboard/data", g.handleDashboard)
	router.HandlerFunc(http.MethodGet, "/api/regions", g.handleRegions)
	router.GET("/api/regions/:id/series", g.handleSeries)
	router.GET("/api/regions/:id/blooms", g.handleBlooms)
	router.GET("/api/regions/:id/forecast", g.handleForecast)
	router.GET("/api/regions/:id/export.csv", g.handleExport)
	return router
}

func (g *Gateway) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (g *Gateway) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if addr := g.cfg.DetectorHealthAddr; addr != "" {
		if err := grpchealth.Probe(r.Context(), addr, "detector"); err != nil {
			g.log.Warn().Err(err).Msg("detector probe failed")
			writeJSONStatus(w, http.StatusServiceUnavailable,
				map[string]any{"ready": false, "reason": "detector not ready"})
			return
		}
	}
	writeJSON(w, map[string]any{"ready": true})
}

// handleDashboard assembles the single payload the dashboard polls:
// every configured region joined with its freshest composite and latest
// bloom, the recent bloom feed, and summary stats. Upstream failures
// degrade their slice of the payload instead of failing the request.
func (g *Gateway) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.HTTPTimeout)
	defer cancel()

	type res struct {
		key string
		val any
	}
	ch := make(chan res, 3)

	go func() {
		var rows []latestRow
		if err := g.persistence.GetJSON(ctx, "/data/latest", &rows); err != nil {
			ch <- res{"latest", err}
			return
		}
		ch <- res{"latest", rows}
	}()
	go func() {
		var db detectorBlooms
		if err := g.detector.GetJSON(ctx, "/blooms", &db); err != nil {
			ch <- res{"observed", err}
			return
		}
		ch <- res{"observed", db}
	}()
	go func() {
		var rows []BloomRow
		path := fmt.Sprintf("/events/blooms/latest?limit=%d", dashboardBloomLimit)
		if err := g.events.GetJSON(ctx, path, &rows); err != nil {
			ch <- res{"blooms", err}
			return
		}
		ch <- res{"blooms", rows}
	}()

	var (
		latest   []latestRow
		observed detectorBlooms
		degraded bool
	)
	blooms := g.cachedBlooms()
	for i := 0; i < 3; i++ {
		rv := <-ch
		switch v := rv.val.(type) {
		case []latestRow:
			latest = v
		case detectorBlooms:
			observed = v
		case []BloomRow:
			blooms = v
			g.rememberBlooms(v)
		case error:
			degraded = true
			g.log.Warn().Str("part", rv.key).Err(v).Msg("dashboard upstream degraded")
		}
	}

	byRegion := make(map[string]latestRow, len(latest))
	for _, row := range latest {
		byRegion[row.RegionID] = row
	}

	data := DashboardData{
		Regions: make([]RegionSummary, 0, len(g.cfg.Regions.Regions)),
		Blooms:  blooms,
		Stats:   map[string]float64{},
	}
	var sum, minv, maxv float64
	minv = math.MaxFloat64
	n := 0
	for _, reg := range g.cfg.Regions.Regions {
		s := RegionSummary{Region: reg.ID, Name: reg.Name}
		if row, ok := byRegion[reg.ID]; ok {
			s.NDVI = row.NDVI
			s.Date = row.Timestamp
			sum += row.NDVI
			n++
			if row.NDVI < minv {
				minv = row.NDVI
			}
			if row.NDVI > maxv {
				maxv = row.NDVI
			}
		}
		if events := observed.Regions[reg.ID]; len(events) > 0 {
			s.Intensity = events[len(events)-1].Intensity
		}
		data.Regions = append(data.Regions, s)
	}
	if n > 0 {
		data.Stats["mean"] = math.Round(sum/float64(n)*10000) / 10000
		data.Stats["min"] = minv
		data.Stats["max"] = maxv
	}
	if data.Blooms == nil {
		data.Blooms = []BloomRow{}
	}

	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	metrics.IncGatewayRequest("dashboard", outcome)
	writeJSON(w, data)
}

// handleRegions serves the monitored regions as a GeoJSON
// FeatureCollection of centroids for the dashboard map layer.
func (g *Gateway) handleRegions(w http.ResponseWriter, _ *http.Request) {
	fc := geojson.NewFeatureCollection()
	for _, reg := range g.cfg.Regions.Regions {
		f := geojson.NewFeature(reg.Centroid())
		f.ID = reg.ID
		f.Properties["id"] = reg.ID
		f.Properties["name"] = reg.Name
		f.Properties["peak_day"] = reg.Profile().PeakDay
		fc.Append(f)
	}
	metrics.IncGatewayRequest("regions", "ok")
	writeJSON(w, fc)
}

func (g *Gateway) handleSeries(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reg := g.regionFromParams(w, "series", ps)
	if reg == nil {
		return
	}
	days := defaultSeriesDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxSeriesDays {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("days must be in [1,%d]", maxSeriesDays))
			return
		}
		days = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.HTTPTimeout)
	defer cancel()
	var raw json.RawMessage
	path := fmt.Sprintf("/data/series?region=%s&days=%d", url.QueryEscape(reg.ID), days)
	if err := g.persistence.GetJSON(ctx, path, &raw); err != nil {
		g.writeUpstreamError(w, "series", err)
		return
	}
	metrics.IncGatewayRequest("series", "ok")
	writeRaw(w, raw)
}

func (g *Gateway) handleBlooms(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reg := g.regionFromParams(w, "blooms", ps)
	if reg == nil {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.HTTPTimeout)
	defer cancel()
	var raw json.RawMessage
	if err := g.detector.GetJSON(ctx, "/blooms?region="+url.QueryEscape(reg.ID), &raw); err != nil {
		g.writeUpstreamError(w, "blooms", err)
		return
	}
	metrics.IncGatewayRequest("blooms", "ok")
	writeRaw(w, raw)
}

func (g *Gateway) handleForecast(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reg := g.regionFromParams(w, "forecast", ps)
	if reg == nil {
		return
	}
	q := url.Values{}
	q.Set("region", reg.ID)
	if v := r.URL.Query().Get("periods"); v != "" {
		q.Set("periods", v)
	}
	if v := r.URL.Query().Get("refresh"); v != "" {
		q.Set("refresh", v)
	}

	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.HTTPTimeout)
	defer cancel()
	var raw json.RawMessage
	if err := g.detector.GetJSON(ctx, "/forecast?"+q.Encode(), &raw); err != nil {
		g.writeUpstreamError(w, "forecast", err)
		return
	}
	metrics.IncGatewayRequest("forecast", "ok")
	writeRaw(w, raw)
}

// regionFromParams resolves :id or answers 404 and returns nil.
func (g *Gateway) regionFromParams(w http.ResponseWriter, route string, ps httprouter.Params) *entities.Region {
	id := ps.ByName("id")
	reg := g.cfg.Regions.Get(id)
	if reg == nil {
		metrics.IncGatewayRequest(route, "error")
		writeJSONError(w, http.StatusNotFound, "unknown region "+id)
	}
	return reg
}

// writeUpstreamError maps an upstream failure onto the gateway response:
// breaker open answers 503 with a Retry-After, an upstream 4xx is
// forwarded verbatim, everything else becomes a 502.
func (g *Gateway) writeUpstreamError(w http.ResponseWriter, route string, err error) {
	metrics.IncGatewayRequest(route, "error")
	var se *StatusError
	switch {
	case BreakerOpen(err):
		g.log.Warn().Str("route", route).Msg("upstream breaker open")
		w.Header().Set("Retry-After", "30")
		writeJSONError(w, http.StatusServiceUnavailable, "upstream unavailable")
	case errors.As(err, &se):
		if se.ContentType != "" {
			w.Header().Set("Content-Type", se.ContentType)
		}
		w.WriteHeader(se.Code)
		_, _ = w.Write([]byte(se.Body))
	default:
		g.log.Error().Str("route", route).Err(err).Msg("upstream request failed")
		writeJSONError(w, http.StatusBadGateway, "upstream error")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	writeJSONStatus(w, code, map[string]string{"error": msg})
}

func writeRaw(w http.ResponseWriter, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}
