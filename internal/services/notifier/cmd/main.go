package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/LeonardoBeccarini/bloomwatch/internal/config"
	"github.com/LeonardoBeccarini/bloomwatch/internal/services/notifier"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/logger"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/rabbitmq"
)

func main() {
	logger.Configure(logger.Config{Service: "notifier"})
	log := logger.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	subs, err := config.LoadSubscribers(config.EnvStr("SUBSCRIBERS_CONFIG_PATH", "configs/subscribers.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("subscribers config failed")
	}
	if len(subs.Subscribers) == 0 {
		log.Warn().Msg("no subscribers configured, delivering nothing")
	}

	rabbitCfg := &rabbitmq.RabbitMQConfig{
		Host:     config.EnvStr("RABBITMQ_HOST", "rabbitmq"),
		Port:     config.EnvInt("RABBITMQ_PORT", 1883),
		User:     config.EnvStr("RABBITMQ_USER", "guest"),
		Password: config.EnvStr("RABBITMQ_PASSWORD", "guest"),
		ClientID: config.EnvStr("RABBITMQ_CLIENT_ID", "notifier-service"),
	}
	client, err := rabbitmq.NewRabbitMQConn(ctx, rabbitCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("broker connection failed")
	}

	consumer := rabbitmq.NewConsumer(client, "event/bloomDetected/#", nil)
	publisher := rabbitmq.NewPublisher(client, "event/notifyResult")

	svc := notifier.NewNotifierService(consumer, publisher, *subs)
	log.Info().Int("subscribers", len(subs.Subscribers)).Msg("notifier service started")
	svc.Start(ctx)

	log.Info().Msg("shutting down")
	client.Disconnect(250)
}
