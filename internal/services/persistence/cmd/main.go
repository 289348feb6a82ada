package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/LeonardoBeccarini/bloomwatch/internal/config"
	"github.com/LeonardoBeccarini/bloomwatch/internal/services/persistence"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/logger"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/rabbitmq"
)

func main() {
	logger.Configure(logger.Config{Service: "persistence"})
	log := logger.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rabbitCfg := &rabbitmq.RabbitMQConfig{
		Host:     config.EnvStr("RABBITMQ_HOST", "rabbitmq"),
		Port:     config.EnvInt("RABBITMQ_PORT", 1883),
		User:     config.EnvStr("RABBITMQ_USER", "guest"),
		Password: config.EnvStr("RABBITMQ_PASSWORD", "guest"),
		ClientID: config.EnvStr("RABBITMQ_CLIENT_ID", "persistence-service"),
	}
	mqttClient, err := rabbitmq.NewRabbitMQConn(ctx, rabbitCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("broker connection failed")
	}

	influxCfg := persistence.InfluxConfig{
		InfluxURL:       config.EnvStr("INFLUX_URL", "http://influxdb:8086"),
		InfluxToken:     config.EnvStr("INFLUX_TOKEN", ""),
		InfluxOrg:       config.EnvStr("INFLUX_ORG", "bloomwatch"),
		InfluxBucket:    config.EnvStr("INFLUX_BUCKET", "ndvi"),
		MeasurementMode: config.EnvStr("MEASUREMENT_MODE", "single"),
		MeasurementName: config.EnvStr("MEASUREMENT_NAME", "ndvi"),
	}
	influxClient := influxdb2.NewClient(influxCfg.InfluxURL, influxCfg.InfluxToken)
	defer influxClient.Close()

	consumer := rabbitmq.NewConsumer(mqttClient, "ndvi/composite/#", nil)
	svc, err := persistence.NewService(consumer, influxClient, influxCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("service init failed")
	}

	addr := ":" + config.EnvStr("HTTP_PORT", "8080")
	server := &http.Server{
		Addr:              addr,
		Handler:           persistence.NewHTTPMux(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	go svc.Start(ctx)
	log.Info().Msg("persistence service started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	mqttClient.Disconnect(250)
	os.Exit(0)
}
