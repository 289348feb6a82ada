package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/LeonardoBeccarini/bloomwatch/internal/config"
	"github.com/LeonardoBeccarini/bloomwatch/internal/services/importer"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/logger"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/rabbitmq"
)

func main() {
	logger.Configure(logger.Config{Service: "importer"})
	log := logger.WithComponent("main")

	cfg := &rabbitmq.RabbitMQConfig{
		Host:     config.EnvStr("RABBITMQ_HOST", "localhost"),
		Port:     config.EnvInt("RABBITMQ_PORT", 1883),
		User:     config.EnvStr("RABBITMQ_USER", "guest"),
		Password: config.EnvStr("RABBITMQ_PASSWORD", "guest"),
		ClientID: config.EnvStr("HOSTNAME", "importer"),
	}
	dataDir := config.EnvStr("IMPORT_DATA_DIR", "data")
	throttle := config.EnvDuration("IMPORT_THROTTLE", 10*time.Millisecond)

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

	publisher := rabbitmq.NewPublisher(client, "ndvi/composite")
	svc := importer.NewService(publisher, regions, dataDir, throttle)

	if err := svc.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("import failed")
	}
	log.Info().Msg("import complete")
	rabbitmq.CloseRabbitMQConn(client)
}
