package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/LeonardoBeccarini/bloomwatch/internal/model/entities"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/logger"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/metrics"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/rabbitmq"
)

// FeedSimulator publishes one synthetic satellite pass per region at a
// fixed interval on ndvi/sample/{region}.
type FeedSimulator struct {
	publisher rabbitmq.IPublisher
	regions   []entities.Region
	gens      map[string]*Generator
	log       zerolog.Logger
}

func NewFeedSimulator(publisher rabbitmq.IPublisher, regions *entities.RegionSet, sigma float64, seed uint64) *FeedSimulator {
	gens := make(map[string]*Generator, len(regions.Regions))
	for i := range regions.Regions {
		r := &regions.Regions[i]
		gens[r.ID] = NewGenerator(r, sigma, seed+uint64(i))
	}
	return &FeedSimulator{
		publisher: publisher,
		regions:   regions.Regions,
		gens:      gens,
		log:       logger.WithComponent("ingest"),
	}
}

// SeedFromPersistence calibrates every generator once against the last
// stored composites; failures fall back to the configured phenology.
func (s *FeedSimulator) SeedFromPersistence(ctx context.Context, baseURL string) {
	for _, g := range s.gens {
		g.SeedFromPersistence(ctx, baseURL)
	}
}

// Start publishes a pass for every region each interval. It blocks until
// ctx is cancelled.
func (s *FeedSimulator) Start(ctx context.Context, interval time.Duration) {
	for {
		select {
		case <-ctx.Done():
			s.publisher.Close()
			return
		case <-time.After(interval):
			s.publishPass()
		}
	}
}

func (s *FeedSimulator) publishPass() {
	for _, r := range s.regions {
		sample := s.gens[r.ID].Next()
		payload, err := json.Marshal(sample)
		if err != nil {
			s.log.Error().Err(err).Str("region", r.ID).Msg("marshal sample")
			continue
		}
		topic := fmt.Sprintf("ndvi/sample/%s", r.ID)
		if err := s.publisher.PublishToQos(topic, 0, false, string(payload)); err != nil {
			s.log.Error().Err(err).Str("region", r.ID).Msg("publish sample")
			continue
		}
		metrics.IncSampleIngested(r.ID, sample.Source)
		s.log.Debug().
			Str("region", r.ID).
			Float64("ndvi", sample.NDVI).
			Float64("cloud", sample.CloudCover).
			Msg("sample published")
	}
}
