package app

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/LeonardoBeccarini/bloomwatch/internal/analysis"
	"github.com/LeonardoBeccarini/bloomwatch/internal/csvio"
	"github.com/LeonardoBeccarini/bloomwatch/internal/model/entities"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/metrics"
)

// handleExport streams the processed bloom data for one region as a CSV
// download. The raw series comes from the persistence service; smoothing
// and peak flags are computed here so the file matches what the
// dashboard charts show.
func (g *Gateway) handleExport(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reg := g.regionFromParams(w, "export", ps)
	if reg == nil {
		return
	}
	days := g.cfg.ExportDays
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
	var series seriesResponse
	path := fmt.Sprintf("/data/series?region=%s&days=%d", url.QueryEscape(reg.ID), days)
	if err := g.persistence.GetJSON(ctx, path, &series); err != nil {
		g.writeUpstreamError(w, "export", err)
		return
	}

	dates := make([]time.Time, 0, len(series.Points))
	values := make([]float64, 0, len(series.Points))
	for _, p := range series.Points {
		dates = append(dates, p.Date)
		values = append(values, p.NDVI)
	}
	rows, _ := analysis.Process(dates, values, entities.DetectionPolicy{})

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%s", csvio.ExportFilename(reg.ID)))
	if err := csvio.WriteProcessed(w, rows); err != nil {
		g.log.Error().Str("region", reg.ID).Err(err).Msg("csv export failed")
		metrics.IncGatewayRequest("export", "error")
		return
	}
	metrics.RecordExportRows(len(rows))
	metrics.IncGatewayRequest("export", "ok")
}
