package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/LeonardoBeccarini/bloomwatch/internal/config"
	"github.com/LeonardoBeccarini/bloomwatch/internal/services/compositor"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/logger"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/rabbitmq"
)

func main() {
	logger.Configure(logger.Config{Service: "compositor"})
	log := logger.WithComponent("main")

	cfg := &rabbitmq.RabbitMQConfig{
		Host:     config.EnvStr("RABBITMQ_HOST", "localhost"),
		Port:     config.EnvInt("RABBITMQ_PORT", 1883),
		User:     config.EnvStr("RABBITMQ_USER", "guest"),
		Password: config.EnvStr("RABBITMQ_PASSWORD", "guest"),
		ClientID: config.EnvStr("HOSTNAME", "compositor"),
	}
	// one compositing window per tick; production sets this to the real
	// 16-day cadence, demo deployments shrink it
	interval := config.EnvDuration("COMPOSITE_INTERVAL", time.Minute)
	maxCloud := config.EnvFloat("COMPOSITE_MAX_CLOUD", 0.8)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := rabbitmq.NewRabbitMQConn(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("broker connect")
	}

	publisher := rabbitmq.NewPublisher(client, "ndvi/composite")
	consumer := rabbitmq.NewConsumer(client, "ndvi/sample/#", nil)

	svc := compositor.NewCompositorService(consumer, publisher, interval, maxCloud)

	log.Info().Dur("interval", interval).Float64("max_cloud", maxCloud).Msg("compositor running")
	svc.Start(ctx)
}
