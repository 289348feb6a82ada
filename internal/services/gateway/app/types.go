package app

import (
	"encoding/json"
	"strconv"
	"time"
)

// ---------- Upstream payloads ----------

// latestRow mirrors the persistence service's /data/latest rows.
type latestRow struct {
	RegionID  string  `json:"region_id"`
	NDVI      float64 `json:"ndvi"`
	Source    string  `json:"source"`
	Timestamp string  `json:"timestamp"`
}

// BloomRow is one recent bloom from the event service. The decoder is
// tolerant about key variants so a schema nudge upstream does not blank
// the dashboard.
type BloomRow struct {
	RegionID string  `json:"region_id"`
	NDVI     float64 `json:"ndvi"`
	Severity string  `json:"severity"`
	Time     string  `json:"time"` // RFC3339
}

func (b *BloomRow) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if v, ok := m["region_id"].(string); ok {
		b.RegionID = v
	} else if v, ok := m["region"].(string); ok {
		b.RegionID = v
	}
	if v, ok := m["severity"].(string); ok {
		b.Severity = v
	}
	if t, ok := m["time"].(string); ok && t != "" {
		b.Time = t
	} else if t, ok := m["timestamp"].(string); ok && t != "" {
		b.Time = t
	}
	switch x := m["ndvi"].(type) {
	case float64:
		b.NDVI = x
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			b.NDVI = f
		}
	}
	return nil
}

// detectorBlooms mirrors the detector's region-less /blooms answer; only
// the fields the dashboard enrichment needs are decoded.
type detectorBlooms struct {
	Count   int                        `json:"count"`
	Regions map[string][]detectorEvent `json:"regions"`
}

type detectorEvent struct {
	Date      time.Time `json:"date"`
	Intensity string    `json:"intensity"`
}

// seriesResponse mirrors the persistence service's /data/series answer.
type seriesResponse struct {
	Region string `json:"region"`
	Days   int    `json:"days"`
	Points []struct {
		Date time.Time `json:"date"`
		NDVI float64   `json:"ndvi"`
	} `json:"points"`
}

// ---------- Dashboard payload ----------

// RegionSummary is one dashboard card: the region, its freshest NDVI
// composite and, when the detector has seen one, the latest bloom.
type RegionSummary struct {
	Region    string  `json:"region"`
	Name      string  `json:"name"`
	NDVI      float64 `json:"ndvi"`
	Date      string  `json:"date,omitempty"`
	Intensity string  `json:"intensity,omitempty"`
}

type DashboardData struct {
	Regions []RegionSummary    `json:"regions"`
	Blooms  []BloomRow         `json:"blooms"`
	Stats   map[string]float64 `json:"stats"`
}
