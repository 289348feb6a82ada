package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/LeonardoBeccarini/bloomwatch/internal/config"
	"github.com/LeonardoBeccarini/bloomwatch/internal/ingest"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/logger"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/rabbitmq"
)

func main() {
	interval := flag.Duration("interval", 10*time.Second, "satellite pass interval")
	sigma := flag.Float64("noise", 0.02, "NDVI noise sigma")
	seed := flag.Uint64("seed", 42, "RNG seed (same seed replays the same feed)")
	flag.Parse()

	logger.Configure(logger.Config{Service: "ingest-service"})
	log := logger.WithComponent("main")

	cfg := &rabbitmq.RabbitMQConfig{
		Host:     config.EnvStr("RABBITMQ_HOST", "localhost"),
		Port:     config.EnvInt("RABBITMQ_PORT", 1883),
		User:     config.EnvStr("RABBITMQ_USER", "guest"),
		Password: config.EnvStr("RABBITMQ_PASSWORD", "guest"),
		ClientID: config.EnvStr("HOSTNAME", "ingest-service"),
	}

	regions, err := config.LoadRegions(config.EnvStr("REGIONS_CONFIG_PATH", "configs/regions.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("load regions config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := rabbitmq.NewRabbitMQConn(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("broker connect")
	}

	publisher := rabbitmq.NewPublisher(client, "ndvi/sample")
	sim := ingest.NewFeedSimulator(publisher, regions, *sigma, *seed)

	// one-shot calibration against stored data; optional
	if base := config.EnvStr("PERSISTENCE_URL", ""); base != "" {
		sim.SeedFromPersistence(ctx, base)
	}

	log.Info().Int("regions", len(regions.Regions)).Dur("interval", *interval).Msg("feed simulator starting")
	sim.Start(ctx, *interval)
}
