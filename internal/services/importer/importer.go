package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/LeonardoBeccarini/bloomwatch/internal/csvio"
	"github.com/LeonardoBeccarini/bloomwatch/internal/model"
	"github.com/LeonardoBeccarini/bloomwatch/internal/model/entities"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/logger"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/metrics"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/rabbitmq"
)

// Service replays region seed CSVs onto the composite stream so a fresh
// deployment starts with history instead of an empty series. It is a
// one-shot job: run, publish, exit.
type Service struct {
	publisher rabbitmq.IPublisher
	regions   []entities.Region
	dataDir   string
	throttle  time.Duration
	log       zerolog.Logger
}

func NewService(publisher rabbitmq.IPublisher, regions *entities.RegionSet, dataDir string, throttle time.Duration) *Service {
	if throttle <= 0 {
		throttle = 10 * time.Millisecond
	}
	return &Service{
		publisher: publisher,
		regions:   regions.Regions,
		dataDir:   dataDir,
		throttle:  throttle,
		log:       logger.WithComponent("importer"),
	}
}

// Run imports every region's seed file. A region without a file is
// skipped with a warning (not every region ships seed data); a publish
// or parse failure aborts the whole import.
func (s *Service) Run(ctx context.Context) error {
	for i := range s.regions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.importRegion(ctx, &s.regions[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) importRegion(ctx context.Context, r *entities.Region) error {
	if r.DataFile == "" {
		s.log.Warn().Str("region", r.ID).Msg("no seed file configured, skipping")
		return nil
	}
	path := filepath.Join(s.dataDir, r.DataFile)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Warn().Str("region", r.ID).Str("path", path).Msg("seed file missing, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("importer: open %s: %w", path, err)
	}
	dates, values, err := csvio.ReadSeries(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("importer: region %s: %w", r.ID, err)
	}

	topic := fmt.Sprintf("ndvi/composite/%s", r.ID)
	for i := range dates {
		sample := model.NDVISample{
			RegionID:  r.ID,
			NDVI:      values[i],
			Source:    "import",
			Composite: true,
			Timestamp: dates[i],
		}
		payload, err := json.Marshal(sample)
		if err != nil {
			return fmt.Errorf("importer: marshal %s: %w", r.ID, err)
		}
		if err := s.publisher.PublishToQos(topic, 1, false, string(payload)); err != nil {
			return fmt.Errorf("importer: publish %s: %w", r.ID, err)
		}
		metrics.IncSampleIngested(r.ID, "import")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.throttle):
		}
	}

	s.log.Info().Str("region", r.ID).Int("rows", len(dates)).Msg("seed series imported")
	return nil
}
