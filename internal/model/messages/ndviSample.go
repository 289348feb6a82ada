package messages

import (
	"time"
)

// NDVISample holds both raw scene samples and 16-day composites.
type NDVISample struct {
	RegionID   string    `json:"region_id"`
	NDVI       float64   `json:"ndvi"`
	CloudCover float64   `json:"cloud_cover"`
	Source     string    `json:"source"` // "sim" | "import"
	Composite  bool      `json:"composite"`
	Timestamp  time.Time `json:"timestamp"`
}
