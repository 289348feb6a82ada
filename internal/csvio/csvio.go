// Package csvio reads region NDVI seed files and writes the processed
// bloom-data export, both in the exact shape the dashboard consumers
// expect.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/bloomwatch/internal/model/entities"
)

const (
	inputDateLayout  = "2006-01-02"
	exportDateLayout = "02/01/2006"
)

// ReadSeries parses a seed CSV with header `date,ndvi` (extra columns
// such as lat/lon are ignored). Rows may arrive in any order; the result
// is sorted ascending by date and duplicate dates keep the last value
// read. Dates use YYYY-MM-DD.
func ReadSeries(r io.Reader) ([]time.Time, []float64, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("csvio: empty input")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("csvio: read header: %w", err)
	}

	dateCol, ndviCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date":
			dateCol = i
		case "ndvi":
			ndviCol = i
		}
	}
	if dateCol < 0 || ndviCol < 0 {
		return nil, nil, fmt.Errorf("csvio: header must contain date and ndvi columns, got %v", header)
	}

	type row struct {
		date time.Time
		ndvi float64
		ord  int
	}
	var rows []row
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, nil, fmt.Errorf("csvio: line %d: %w", line, err)
		}
		d, err := time.Parse(inputDateLayout, strings.TrimSpace(record[dateCol]))
		if err != nil {
			return nil, nil, fmt.Errorf("csvio: line %d: bad date %q: %w", line, record[dateCol], err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(record[ndviCol]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("csvio: line %d: bad ndvi %q: %w", line, record[ndviCol], err)
		}
		rows = append(rows, row{date: d.UTC(), ndvi: v, ord: line})
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("csvio: no data rows")
	}

	sort.SliceStable(rows, func(a, b int) bool { return rows[a].date.Before(rows[b].date) })

	dates := make([]time.Time, 0, len(rows))
	values := make([]float64, 0, len(rows))
	for i, rw := range rows {
		if i+1 < len(rows) && rows[i+1].date.Equal(rw.date) {
			continue // duplicate date, a later row wins
		}
		dates = append(dates, rw.date)
		values = append(values, rw.ndvi)
	}
	return dates, values, nil
}

// WriteProcessed writes the processed series export: header
// `date,ndvi,ndvi_smooth,is_peak`, dates as dd/mm/yyyy, NDVI columns with
// four decimals. Rows are written in the order given (callers pass them
// date-ascending).
func WriteProcessed(w io.Writer, rows []entities.SeriesPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "ndvi", "ndvi_smooth", "is_peak"}); err != nil {
		return fmt.Errorf("csvio: write header: %w", err)
	}
	for i, r := range rows {
		record := []string{
			r.Date.Format(exportDateLayout),
			strconv.FormatFloat(r.NDVI, 'f', 4, 64),
			strconv.FormatFloat(r.Smoothed, 'f', 4, 64),
			strconv.FormatBool(r.Peak),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("csvio: write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("csvio: flush: %w", err)
	}
	return nil
}

// ExportFilename names the processed download for a region the way the
// dashboard has always named it.
func ExportFilename(regionID string) string {
	return fmt.Sprintf("bloom_data_%s.csv", strings.ToLower(regionID))
}
