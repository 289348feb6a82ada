package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeonardoBeccarini/bloomwatch/internal/config"
	"github.com/LeonardoBeccarini/bloomwatch/internal/services/event"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/dedup"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/logger"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/metrics"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/rabbitmq"
)

func main() {
	logger.Configure(logger.Config{Service: "event"})
	log := logger.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rabbitCfg := &rabbitmq.RabbitMQConfig{
		Host:     config.EnvStr("RABBITMQ_HOST", "rabbitmq"),
		Port:     config.EnvInt("RABBITMQ_PORT", 1883),
		User:     config.EnvStr("RABBITMQ_USER", "guest"),
		Password: config.EnvStr("RABBITMQ_PASSWORD", "guest"),
		ClientID: config.EnvStr("RABBITMQ_CLIENT_ID", "event-service"),
	}

	influxURL := config.EnvStr("INFLUX_URL", "http://influxdb:8086")
	influxToken := config.EnvStr("INFLUX_TOKEN", "")
	influxOrg := config.EnvStr("INFLUX_ORG", "bloomwatch")
	influxBucket := config.EnvStr("INFLUX_BUCKET", "events")

	batchSize := config.EnvInt("WRITE_BATCH_SIZE", 10)
	flushInterval := config.EnvDuration("WRITE_FLUSH_INTERVAL", 200*time.Millisecond)

	topics := config.EnvList("EVENT_SUB_TOPICS", []string{
		"event/bloomDetected/#", "event/forecastReady/#", "event/notifyResult/#",
	})

	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(batchSize)).
		SetFlushInterval(uint(flushInterval.Milliseconds()))
	influx := influxdb2.NewClientWithOptions(influxURL, influxToken, opts)
	defer influx.Close()
	writeAPI := influx.WriteAPI(influxOrg, influxBucket)
	writer := event.NewWriter(writeAPI)

	mqttClient, err := rabbitmq.NewRabbitMQConn(ctx, rabbitCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("broker connection failed")
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", event.NewHealthHandler(mqttClient, influx, writer))
	mux.Handle("/readyz", event.NewReadyHandler(mqttClient, influx, writer, 2*time.Second))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/events/blooms/latest", event.NewBloomsLatestHandler(influx, influxOrg, influxBucket))

	addr := ":" + config.EnvStr("HTTP_PORT", "8080")
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	// every subscribed topic is QoS 1, so redeliveries are expected
	deduper := dedup.New(10*time.Minute, 20000)
	handler := event.NewMQTTHandler(writer.Write)
	consumer := rabbitmq.NewMultiConsumer(mqttClient, topics,
		func(_ string, m mqtt.Message) error {
			if !deduper.ShouldProcess(dedup.PayloadKey(m.Topic(), m.Payload())) {
				metrics.IncDuplicateMessage("event")
				return nil
			}
			if err := handler.Handle("", m); err != nil {
				log.Warn().Err(err).Str("topic", m.Topic()).Msg("event decode failed")
			}
			return nil
		})
	go consumer.ConsumeMessage(ctx)
	log.Info().Str("topics", strings.Join(topics, ",")).Msg("event service started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	writeAPI.Flush()
	mqttClient.Disconnect(250)
	os.Exit(0)
}
