package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/LeonardoBeccarini/bloomwatch/internal/model/entities"
)

// Env helpers shared by the service mains. Empty and whitespace-only
// values fall back to the default.

func EnvStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func EnvInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func EnvFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func EnvDuration(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func EnvBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// EnvList splits a comma-separated env var, dropping empty entries.
func EnvList(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// LoadRegions parses the region catalogue (configs/regions.yaml).
func LoadRegions(path string) (*entities.RegionSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read regions file: %w", err)
	}
	var rs entities.RegionSet
	if err := yaml.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("config: parse regions file %s: %w", path, err)
	}
	if len(rs.Regions) == 0 {
		return nil, fmt.Errorf("config: regions file %s defines no regions", path)
	}
	seen := make(map[string]struct{}, len(rs.Regions))
	for i := range rs.Regions {
		r := &rs.Regions[i]
		if r.ID == "" {
			return nil, fmt.Errorf("config: region #%d has no id", i)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("config: duplicate region id %q", r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return &rs, nil
}

// LoadSubscribers parses the webhook subscriber list (configs/subscribers.yaml).
// A missing file is not an error: the notifier just has nobody to call.
func LoadSubscribers(path string) (*entities.SubscriberSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &entities.SubscriberSet{}, nil
		}
		return nil, fmt.Errorf("config: read subscribers file: %w", err)
	}
	var ss entities.SubscriberSet
	if err := yaml.Unmarshal(raw, &ss); err != nil {
		return nil, fmt.Errorf("config: parse subscribers file %s: %w", path, err)
	}
	for i := range ss.Subscribers {
		if ss.Subscribers[i].URL == "" {
			return nil, fmt.Errorf("config: subscriber #%d has no url", i)
		}
	}
	return &ss, nil
}
