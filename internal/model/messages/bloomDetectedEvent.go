package messages

import "time"

// BloomDetectedEvent is published by the detector-service for every peak
// found in a region's smoothed NDVI series.
type BloomDetectedEvent struct {
	EventID    string    `json:"event_id"`
	RegionID   string    `json:"region_id"`
	Date       time.Time `json:"date"`        // composite date of the peak
	NDVI       float64   `json:"ndvi"`        // raw NDVI at the peak
	NDVISmooth float64   `json:"ndvi_smooth"` // smoothed NDVI that cleared the threshold
	Intensity  string    `json:"intensity"`
	SeriesEnd  time.Time `json:"series_end"` // last composite date of the analysed series
	Timestamp  time.Time `json:"timestamp"`
}
