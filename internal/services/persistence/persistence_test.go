package persistence

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/bloomwatch/internal/model"
)

func newTestService() *Service {
	return &Service{
		measurementMode: "single",
		measurementName: "ndvi",
		latest:          make(map[string]model.NDVISample),
	}
}

func TestMeasurementFor(t *testing.T) {
	svc := newTestService()
	assert.Equal(t, "ndvi", svc.measurementFor("bhopal"))

	svc.measurementMode = "per-region"
	assert.Equal(t, "ndvi_bhopal", svc.measurementFor("bhopal"))
	assert.Equal(t, "ndvi_bho_pal_", svc.measurementFor("bho pal!"))
}

func TestUpdateCacheKeepsNewest(t *testing.T) {
	svc := newTestService()
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	svc.updateCache(model.NDVISample{RegionID: "bhopal", NDVI: 0.5}, t0)
	svc.updateCache(model.NDVISample{RegionID: "bhopal", NDVI: 0.7}, t0.Add(16*24*time.Hour))
	// late arrival of an older composite must not win
	svc.updateCache(model.NDVISample{RegionID: "bhopal", NDVI: 0.4}, t0.Add(-16*24*time.Hour))

	got := svc.LatestCache()
	require.Len(t, got, 1)
	assert.InDelta(t, 0.7, got[0].NDVI, 1e-9)
}

func TestLatestCacheSorted(t *testing.T) {
	svc := newTestService()
	now := time.Now().UTC()
	svc.updateCache(model.NDVISample{RegionID: "ujjain", NDVI: 0.6}, now)
	svc.updateCache(model.NDVISample{RegionID: "bhopal", NDVI: 0.5}, now)
	svc.updateCache(model.NDVISample{RegionID: "indore", NDVI: 0.4}, now)

	got := svc.LatestCache()
	require.Len(t, got, 3)
	assert.Equal(t, "bhopal", got[0].RegionID)
	assert.Equal(t, "indore", got[1].RegionID)
	assert.Equal(t, "ujjain", got[2].RegionID)
}

func TestHealthz(t *testing.T) {
	mux := NewHTTPMux(newTestService())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestReadyzDegrades(t *testing.T) {
	svc := newTestService()
	mux := NewHTTPMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.writeFailures.Store(5)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDataLatestFromCache(t *testing.T) {
	svc := newTestService()
	ts := time.Date(2025, 7, 12, 0, 0, 0, 0, time.UTC)
	svc.updateCache(model.NDVISample{RegionID: "bhopal", NDVI: 0.72, Source: "sim", Composite: true}, ts)

	mux := NewHTTPMux(svc)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data/latest?source=cache", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cache", rec.Header().Get("X-Data-Source"))

	var rows []latestRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "bhopal", rows[0].RegionID)
	assert.InDelta(t, 0.72, rows[0].NDVI, 1e-9)
	assert.True(t, rows[0].Timestamp.Equal(ts))
}

func TestDataSeriesRequiresRegion(t *testing.T) {
	mux := NewHTTPMux(newTestService())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data/series", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
