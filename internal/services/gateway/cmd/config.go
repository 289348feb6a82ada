package main

import (
	"time"

	"github.com/LeonardoBeccarini/bloomwatch/internal/config"
)

type Config struct {
	Port        string
	RegionsPath string

	DetectorURL        string
	PersistenceURL     string
	EventsURL          string
	DetectorHealthAddr string

	HTTPTimeout time.Duration
	CBFails     int
	CBOpenFor   time.Duration
	CBInterval  time.Duration
	ExportDays  int
}

func loadConfig() Config {
	return Config{
		Port:        config.EnvStr("PORT", "8080"),
		RegionsPath: config.EnvStr("REGIONS_CONFIG_PATH", "configs/regions.yaml"),

		DetectorURL:        config.EnvStr("DETECTOR_URL", "http://detector:8080"),
		PersistenceURL:     config.EnvStr("PERSISTENCE_URL", "http://persistence:8080"),
		EventsURL:          config.EnvStr("EVENTS_URL", "http://event-service:8080"),
		DetectorHealthAddr: config.EnvStr("DETECTOR_HEALTH_ADDR", "detector:9090"),

		HTTPTimeout: config.EnvDuration("HTTP_TIMEOUT", 5*time.Second),
		CBFails:     config.EnvInt("CB_FAILS", 3),
		CBOpenFor:   config.EnvDuration("CB_OPEN_FOR", 30*time.Second),
		CBInterval:  config.EnvDuration("CB_INTERVAL", 60*time.Second),
		ExportDays:  config.EnvInt("EXPORT_DAYS", 3650),
	}
}
