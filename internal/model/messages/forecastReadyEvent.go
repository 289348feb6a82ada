package messages

import "time"

// PredictedPeak is one future bloom in a forecast horizon.
type PredictedPeak struct {
	EventID   string    `json:"event_id"`
	Date      time.Time `json:"date"`
	NDVI      float64   `json:"ndvi"` // fitted NDVI at the peak
	Intensity string    `json:"intensity"`
}

// ForecastReadyEvent is published by the detector-service after the
// trend model has been refit for a region.
type ForecastReadyEvent struct {
	RegionID    string          `json:"region_id"`
	HorizonDays int             `json:"horizon_days"` // forecast steps x 16-day cadence
	TrainedOn   int             `json:"trained_on"`
	SeriesEnd   time.Time       `json:"series_end"`
	Peaks       []PredictedPeak `json:"peaks"`
	GeneratedAt time.Time       `json:"generated_at"`
}
