// Package app is the dashboard gateway: a read-only JSON facade over the
// detector, persistence and event services, with a circuit breaker per
// upstream so one dead service never takes the dashboard down with it.
package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/bloomwatch/internal/model/entities"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/logger"
)

const (
	defaultHTTPTimeout     = 5 * time.Second
	defaultBreakerFailures = 3
	defaultBreakerOpenFor  = 30 * time.Second
	defaultBreakerInterval = 60 * time.Second
	defaultExportDays      = 3650
	defaultSeriesDays      = 730
	maxSeriesDays          = 3650
	dashboardBloomLimit    = 50
)

type Config struct {
	DetectorURL        string
	PersistenceURL     string
	EventsURL          string
	DetectorHealthAddr string // gRPC health addr probed by /readyz; empty skips the probe

	HTTPTimeout     time.Duration
	BreakerFailures uint32
	BreakerOpenFor  time.Duration
	BreakerInterval time.Duration
	ExportDays      int

	Regions *entities.RegionSet
}

type Gateway struct {
	cfg         Config
	detector    *Upstream
	persistence *Upstream
	events      *Upstream
	log         zerolog.Logger

	// last successful blooms fetch, served while the event service is down
	lastGoodMu sync.RWMutex
	lastGood   []BloomRow
}

func NewGateway(cfg Config) (*Gateway, error) {
	if cfg.Regions == nil || len(cfg.Regions.Regions) == 0 {
		return nil, fmt.Errorf("gateway: no regions configured")
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaultBreakerFailures
	}
	if cfg.BreakerOpenFor <= 0 {
		cfg.BreakerOpenFor = defaultBreakerOpenFor
	}
	if cfg.BreakerInterval <= 0 {
		cfg.BreakerInterval = defaultBreakerInterval
	}
	if cfg.ExportDays <= 0 {
		cfg.ExportDays = defaultExportDays
	}

	g := &Gateway{cfg: cfg, log: logger.WithComponent("gateway")}
	g.detector = NewUpstream("detector", cfg.DetectorURL, cfg.HTTPTimeout,
		mkCB("detector", cfg.BreakerFailures, cfg.BreakerOpenFor, cfg.BreakerInterval))
	g.persistence = NewUpstream("persistence", cfg.PersistenceURL, cfg.HTTPTimeout,
		mkCB("persistence", cfg.BreakerFailures, cfg.BreakerOpenFor, cfg.BreakerInterval))
	g.events = NewUpstream("events", cfg.EventsURL, cfg.HTTPTimeout,
		mkCB("events", cfg.BreakerFailures, cfg.BreakerOpenFor, cfg.BreakerInterval))
	return g, nil
}

func mkCB(name string, fails uint32, openFor, interval time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: interval,
		Timeout:  openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= fails
		},
	})
}

func (g *Gateway) rememberBlooms(rows []BloomRow) {
	g.lastGoodMu.Lock()
	g.lastGood = append([]BloomRow(nil), rows...)
	g.lastGoodMu.Unlock()
}

func (g *Gateway) cachedBlooms() []BloomRow {
	g.lastGoodMu.RLock()
	defer g.lastGoodMu.RUnlock()
	return append([]BloomRow(nil), g.lastGood...)
}
