package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LeonardoBeccarini/bloomwatch/internal/config"
	"github.com/LeonardoBeccarini/bloomwatch/internal/services/gateway/app"
	"github.com/LeonardoBeccarini/bloomwatch/pkg/logger"
)

func main() {
	logger.Configure(logger.Config{Service: "gateway"})
	log := logger.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()
	regions, err := config.LoadRegions(cfg.RegionsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("regions config failed")
	}

	gw, err := app.NewGateway(app.Config{
		DetectorURL:        cfg.DetectorURL,
		PersistenceURL:     cfg.PersistenceURL,
		EventsURL:          cfg.EventsURL,
		DetectorHealthAddr: cfg.DetectorHealthAddr,
		HTTPTimeout:        cfg.HTTPTimeout,
		BreakerFailures:    uint32(cfg.CBFails),
		BreakerOpenFor:     cfg.CBOpenFor,
		BreakerInterval:    cfg.CBInterval,
		ExportDays:         cfg.ExportDays,
		Regions:            regions,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("gateway init failed")
	}

	addr := ":" + cfg.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           gw.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Int("regions", len(regions.Regions)).Msg("gateway listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	os.Exit(0)
}
