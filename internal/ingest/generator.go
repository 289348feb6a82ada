package ingest

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/LeonardoBeccarini/bloomwatch/internal/model"
	"github.com/LeonardoBeccarini/bloomwatch/internal/model/entities"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/logger"
)

const (
	// Passes with more cover than this produce cloud-darkened readings.
	cloudContamination = 0.8

	// NDVI range for land surfaces.
	ndviFloor = -0.2
	ndviCeil  = 1.0

	defaultNoiseSigma = 0.02
)

// Generator keeps the synthetic NDVI state for one region: a seasonal
// bell around the region's bloom peak plus Gaussian sensor noise and
// random cloud cover. It performs at most ONE optional persistence fetch
// at startup to calibrate the curve against the last stored composite.
type Generator struct {
	mu         sync.Mutex
	region     *entities.Region
	profile    entities.BloomProfile
	noise      distuv.Normal
	rng        *rand.Rand
	offset     float64
	seeded     bool
	httpClient *http.Client
}

// NewGenerator builds a generator for the region. The same seed replays
// the same sample stream.
func NewGenerator(region *entities.Region, sigma float64, seed uint64) *Generator {
	if sigma <= 0 {
		sigma = defaultNoiseSigma
	}
	return &Generator{
		region:  region,
		profile: region.Profile(),
		noise: distuv.Normal{
			Mu:    0,
			Sigma: sigma,
			Src:   rand.NewPCG(seed, 0x9e3779b97f4a7c15),
		},
		rng:        rand.New(rand.NewPCG(seed, 0xda942042e4dd58b5)),
		httpClient: &http.Client{Timeout: 8 * time.Second},
	}
}

// SeedFromPersistence fetches the region's latest stored composite once
// and offsets the seasonal curve so the synthetic feed continues from
// it. On any failure the generator keeps its configured phenology.
func (g *Generator) SeedFromPersistence(ctx context.Context, baseURL string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seeded || baseURL == "" {
		return
	}
	g.seeded = true

	log := logger.WithComponent("ingest")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/data/latest", nil)
	if err != nil {
		return
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("region", g.region.ID).Msg("seed fetch failed, using phenology defaults")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("region", g.region.ID).Msg("seed fetch rejected, using phenology defaults")
		return
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return
	}

	var latest []struct {
		RegionID  string    `json:"region_id"`
		NDVI      float64   `json:"ndvi"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.Unmarshal(body, &latest); err != nil {
		return
	}
	for _, p := range latest {
		if p.RegionID == g.region.ID {
			g.offset = p.NDVI - g.curveAt(p.Timestamp)
			log.Info().Str("region", g.region.ID).Float64("offset", g.offset).Msg("generator seeded from persistence")
			return
		}
	}
}

// Next produces the sample for the current instant.
func (g *Generator) Next() model.NDVISample {
	return g.At(time.Now().UTC())
}

// At produces the sample for an arbitrary instant, advancing the noise
// state. Cloudy passes (cover above the contamination threshold) darken
// the reading the way unfiltered satellite scenes do.
func (g *Generator) At(t time.Time) model.NDVISample {
	g.mu.Lock()
	defer g.mu.Unlock()

	ndvi := g.curveAt(t) + g.offset + g.noise.Rand()
	cloud := g.rng.Float64()
	if cloud > cloudContamination {
		ndvi *= 1.2 - cloud
	}

	return model.NDVISample{
		RegionID:   g.region.ID,
		NDVI:       clampNDVI(ndvi),
		CloudCover: cloud,
		Source:     "sim",
		Composite:  false,
		Timestamp:  t.UTC(),
	}
}

// curveAt evaluates the seasonal bell at t using circular day-of-year
// distance, so a late-December peak still shapes early January.
func (g *Generator) curveAt(t time.Time) float64 {
	doy := float64(t.YearDay())
	d := math.Abs(doy - float64(g.profile.PeakDay))
	if d > 182.5 {
		d = 365 - d
	}
	w := g.profile.WidthDays
	if w <= 0 {
		w = 1
	}
	return g.profile.Baseline + g.profile.Amplitude*math.Exp(-(d*d)/(2*w*w))
}

func clampNDVI(x float64) float64 {
	if x < ndviFloor {
		return ndviFloor
	}
	if x > ndviCeil {
		return ndviCeil
	}
	return x
}
