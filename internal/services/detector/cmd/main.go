package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LeonardoBeccarini/bloomwatch/internal/config"
	"github.com/LeonardoBeccarini/bloomwatch/internal/model/entities"
	"github.com/LeonardoBeccarini/bloomwatch/internal/services/detector"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/grpchealth"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/logger"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/rabbitmq"
)

const healthService = "detector"

func main() {
	logger.Configure(logger.Config{Service: "detector"})
	log := logger.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	regions, err := config.LoadRegions(config.EnvStr("REGIONS_CONFIG_PATH", "configs/regions.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("regions config failed")
	}

	rabbitCfg := &rabbitmq.RabbitMQConfig{
		Host:     config.EnvStr("RABBITMQ_HOST", "rabbitmq"),
		Port:     config.EnvInt("RABBITMQ_PORT", 1883),
		User:     config.EnvStr("RABBITMQ_USER", "guest"),
		Password: config.EnvStr("RABBITMQ_PASSWORD", "guest"),
		ClientID: config.EnvStr("RABBITMQ_CLIENT_ID", "detector-service"),
	}
	mqttClient, err := rabbitmq.NewRabbitMQConn(ctx, rabbitCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("broker connection failed")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.EnvStr("REDIS_ADDR", "redis:6379"),
		Password: config.EnvStr("REDIS_PASSWORD", ""),
	})
	defer rdb.Close()

	consumer := rabbitmq.NewConsumer(mqttClient, "ndvi/composite/#", nil)
	publisher := rabbitmq.NewPublisher(mqttClient, "event/bloomDetected")

	policy := entities.DetectionPolicy{
		MinHeight:   config.EnvFloat("DETECT_MIN_HEIGHT", entities.DefaultMinHeight),
		MinDistance: config.EnvInt("DETECT_MIN_DISTANCE", entities.DefaultMinDistance),
		Window:      config.EnvInt("DETECT_WINDOW", entities.DefaultWindow),
	}

	svc, err := detector.NewService(consumer, publisher, regions, policy, rdb,
		config.EnvStr("PERSISTENCE_URL", "http://persistence:8080"))
	if err != nil {
		log.Fatal().Err(err).Msg("service init failed")
	}

	health := grpchealth.NewServer()
	go func() {
		addr := ":" + config.EnvStr("GRPC_HEALTH_PORT", "9090")
		if err := health.Start(ctx, addr); err != nil {
			log.Error().Err(err).Msg("grpc health server failed")
		}
	}()

	addr := ":" + config.EnvStr("HTTP_PORT", "8080")
	server := &http.Server{
		Addr:              addr,
		Handler:           detector.NewHTTPMux(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	go func() {
		if err := svc.Backfill(ctx); err != nil {
			log.Error().Err(err).Msg("backfill failed")
			stop()
			return
		}
		health.SetServing(healthService, true)
		svc.Start(ctx)
	}()
	log.Info().Int("regions", len(regions.Regions)).Msg("detector service started")

	<-ctx.Done()
	log.Info().Msg("shutting down")
	health.SetServing(healthService, false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	mqttClient.Disconnect(250)
	os.Exit(0)
}
