// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"siteselect.yaml",
	"siteselect.yml",
	"/etc/siteselect/config.yaml",
	"/etc/siteselect/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults. The resolver threshold, the tier
// thresholds and the diversification limits are the reference values; each
// can be overridden.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Database: DatabaseConfig{
			Backend:   "memory",
			Path:      "",
			MaxMemory: "1GB",
			Threads:   2,
		},
		Cache: CacheConfig{
			Backend:         "memory",
			Path:            "/data/geocache",
			TTL:             24 * time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Geocode: GeocodeConfig{
			Provider:          "nominatim",
			BaseURL:           "https://nominatim.openstreetmap.org",
			UserAgent:         "siteselect/1.0",
			RequestsPerSecond: 1, // Nominatim usage policy: at most one request per second
			Burst:             1,
			Timeout:           10 * time.Second,
			MaxAttempts:       3,
			InitialBackoff:    time.Second,
			MaxBackoff:        8 * time.Second,
			BreakerFailures:   5,
			BreakerTimeout:    time.Minute,
		},
		Resolver: ResolverConfig{
			FuzzyEnabled:        true,
			SimilarityThreshold: 85,
			MinNumericLength:    6,
			BlockingPrefixLen:   3,
			FullScanBelow:       1000,
		},
		Scoring: ScoringConfig{
			TherapeuticWeight:    0.35,
			PhaseWeight:          0.20,
			InterventionWeight:   0.20,
			GeographicWeight:     0.15,
			CapacityWeight:       0.10,
			ExperienceAdjustment: false,
		},
		Recommend: RecommendConfig{
			MaxSites:           10,
			MinCountries:       3,
			PrimaryThreshold:   0.8,
			SecondaryThreshold: 0.6,
			TertiaryThreshold:  0.4,
			ExcludedCountries:  []string{},
			MinCapacity:        0,
		},
		Ingest: IngestConfig{
			Transport:    "gochannel",
			Topic:        "facility.mentions",
			NATSURL:      "nats://127.0.0.1:4222",
			EmbeddedNATS: false,
			NATSPort:     4222,
			NATSStoreDir: "/data/nats",
			BufferSize:   1024,
		},
	}
}

// Default returns the built-in configuration without consulting files or the
// environment. Used by tests and by the CLI when no config is wanted.
func Default() *Config {
	return defaultConfig()
}

// Load builds the configuration with layered sources:
//  1. Defaults
//  2. Config File (optional)
//  3. Environment Variables (highest priority)
//
// The result is validated before it is returned.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file path. An empty path skips the
// file layer.
func LoadFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when set via env.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"recommend.excluded_countries",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		trimmed := []string{}
		for _, p := range strings.Split(strVal, ",") {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored so unrelated environment does not leak in.
var envMappings = map[string]string{
	// Server
	"http_port":           "server.port",
	"http_host":           "server.host",
	"http_read_timeout":   "server.read_timeout",
	"http_write_timeout":  "server.write_timeout",
	"shutdown_timeout":    "server.shutdown_timeout",
	"rate_limit_requests": "server.rate_limit_requests",
	"rate_limit_window":   "server.rate_limit_window",
	"cors_origins":        "server.cors_origins",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Database
	"db_backend":     "database.backend",
	"duckdb_path":    "database.path",
	"duckdb_memory":  "database.max_memory",
	"duckdb_threads": "database.threads",

	// Geocode cache
	"cache_backend":          "cache.backend",
	"cache_path":             "cache.path",
	"geocode_cache_ttl":      "cache.ttl",
	"cache_cleanup_interval": "cache.cleanup_interval",

	// Geocoder
	"geocode_provider":         "geocode.provider",
	"geocode_base_url":         "geocode.base_url",
	"geocode_user_agent":       "geocode.user_agent",
	"geocode_rps":              "geocode.requests_per_second",
	"geocode_burst":            "geocode.burst",
	"geocode_timeout":          "geocode.timeout",
	"geocode_max_attempts":     "geocode.max_attempts",
	"geocode_initial_backoff":  "geocode.initial_backoff",
	"geocode_max_backoff":      "geocode.max_backoff",
	"geocode_breaker_failures": "geocode.breaker_failures",
	"geocode_breaker_timeout":  "geocode.breaker_timeout",

	// Resolver
	"resolver_fuzzy_enabled":        "resolver.fuzzy_enabled",
	"resolver_similarity_threshold": "resolver.similarity_threshold",
	"resolver_min_numeric_length":   "resolver.min_numeric_length",
	"resolver_blocking_prefix_len":  "resolver.blocking_prefix_len",
	"resolver_full_scan_below":      "resolver.full_scan_below",

	// Scoring
	"scoring_therapeutic_weight":    "scoring.therapeutic_weight",
	"scoring_phase_weight":          "scoring.phase_weight",
	"scoring_intervention_weight":   "scoring.intervention_weight",
	"scoring_geographic_weight":     "scoring.geographic_weight",
	"scoring_capacity_weight":       "scoring.capacity_weight",
	"scoring_experience_adjustment": "scoring.experience_adjustment",

	// Recommendation
	"recommend_max_sites":           "recommend.max_sites",
	"recommend_min_countries":       "recommend.min_countries",
	"recommend_primary_threshold":   "recommend.primary_threshold",
	"recommend_secondary_threshold": "recommend.secondary_threshold",
	"recommend_tertiary_threshold":  "recommend.tertiary_threshold",
	"recommend_excluded_countries":  "recommend.excluded_countries",
	"recommend_min_capacity":        "recommend.min_capacity",

	// Ingest
	"ingest_transport":     "ingest.transport",
	"ingest_topic":         "ingest.topic",
	"nats_url":             "ingest.nats_url",
	"nats_embedded_server": "ingest.embedded_nats",
	"nats_port":            "ingest.nats_port",
	"nats_store_dir":       "ingest.nats_store_dir",
	"ingest_buffer_size":   "ingest.buffer_size",
}

func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
