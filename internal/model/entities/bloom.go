package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// BloomKind distinguishes observed peaks from forecast ones.
type BloomKind string

const (
	KindObserved  BloomKind = "observed"
	KindPredicted BloomKind = "predicted"
)

// BloomIntensity classifies a bloom by its smoothed NDVI at the peak.
// The scale starts at the detection threshold (0.60): anything below it
// is not a bloom at all.
type BloomIntensity string

const (
	IntensityWeak        BloomIntensity = "weak"        // [0.60, 0.70)
	IntensityModerate    BloomIntensity = "moderate"    // [0.70, 0.80)
	IntensityStrong      BloomIntensity = "strong"      // [0.80, 0.90)
	IntensityExceptional BloomIntensity = "exceptional" // >= 0.90
)

// IntensityFor maps a smoothed peak NDVI onto the intensity scale.
func IntensityFor(ndvi float64) BloomIntensity {
	switch {
	case ndvi >= 0.90:
		return IntensityExceptional
	case ndvi >= 0.80:
		return IntensityStrong
	case ndvi >= 0.70:
		return IntensityModerate
	default:
		return IntensityWeak
	}
}

// Rank orders intensities for threshold filters (weak < ... < exceptional).
func (i BloomIntensity) Rank() int {
	switch i {
	case IntensityModerate:
		return 1
	case IntensityStrong:
		return 2
	case IntensityExceptional:
		return 3
	default:
		return 0
	}
}

// BloomEvent is a detected (or predicted) NDVI peak for one region.
type BloomEvent struct {
	ID         string         `json:"id"`
	RegionID   string         `json:"region_id"`
	Date       time.Time      `json:"date"` // composite date of the peak
	NDVI       float64        `json:"ndvi"` // smoothed NDVI at the peak
	Intensity  BloomIntensity `json:"intensity"`
	Kind       BloomKind      `json:"kind"`
	DetectedAt time.Time      `json:"detected_at"`
}

// BloomEventID derives the deterministic event ID. Re-detecting the same
// peak (after a restart, or on a QoS 1 redelivery) must yield the same ID
// so downstream consumers can upsert idempotently.
func BloomEventID(regionID string, date time.Time, kind BloomKind) string {
	seed := fmt.Sprintf("%s|%s|%s", regionID, date.UTC().Format("2006-01-02"), kind)
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// NewBloomEvent builds a BloomEvent with its derived ID and intensity.
func NewBloomEvent(regionID string, date time.Time, ndvi float64, kind BloomKind) BloomEvent {
	return BloomEvent{
		ID:         BloomEventID(regionID, date, kind),
		RegionID:   regionID,
		Date:       date.UTC(),
		NDVI:       ndvi,
		Intensity:  IntensityFor(ndvi),
		Kind:       kind,
		DetectedAt: time.Now().UTC(),
	}
}
