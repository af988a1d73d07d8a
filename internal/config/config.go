// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

// Package config loads siteselect configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values from defaultConfig()
//  2. Config File: optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment Variables: explicitly mapped names override everything
//
// The loaded *Config is passed down to component constructors; no package
// reads configuration from globals.
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return fmt.Errorf("load config: %w", err)
//	}
//	resolver := resolve.New(reg, matcher, geo, cfg.Resolver, logger)
package config

import "time"

// Config is the root configuration object.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Database  DatabaseConfig  `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	Geocode   GeocodeConfig   `koanf:"geocode"`
	Resolver  ResolverConfig  `koanf:"resolver"`
	Scoring   ScoringConfig   `koanf:"scoring"`
	Recommend RecommendConfig `koanf:"recommend"`
	Ingest    IngestConfig    `koanf:"ingest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RateLimitReqs   int           `koanf:"rate_limit_requests"` // per client IP per window; 0 disables
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// DatabaseConfig selects the registry and score store.
type DatabaseConfig struct {
	Backend   string `koanf:"backend"` // memory or duckdb
	Path      string `koanf:"path"`    // DuckDB file; empty opens an in-memory database
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// CacheConfig selects the geocode cache backing store.
type CacheConfig struct {
	Backend         string        `koanf:"backend"` // memory or badger
	Path            string        `koanf:"path"`    // badger directory
	TTL             time.Duration `koanf:"ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// GeocodeConfig controls the external geocoding collaborator.
type GeocodeConfig struct {
	Provider          string        `koanf:"provider"` // nominatim or none
	BaseURL           string        `koanf:"base_url"`
	UserAgent         string        `koanf:"user_agent"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
	Timeout           time.Duration `koanf:"timeout"` // per attempt
	MaxAttempts       int           `koanf:"max_attempts"`
	InitialBackoff    time.Duration `koanf:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff"`
	BreakerFailures   uint32        `koanf:"breaker_failures"` // consecutive failures before opening
	BreakerTimeout    time.Duration `koanf:"breaker_timeout"`  // open -> half-open
}

// ResolverConfig controls entity resolution.
type ResolverConfig struct {
	FuzzyEnabled        bool    `koanf:"fuzzy_enabled"`
	SimilarityThreshold float64 `koanf:"similarity_threshold"` // 0-100, strictly exceeded
	MinNumericLength    int     `koanf:"min_numeric_length"`   // all-digit names shorter than this are rejected
	BlockingPrefixLen   int     `koanf:"blocking_prefix_len"`  // 0 disables prefix blocking
	FullScanBelow       int     `koanf:"full_scan_below"`      // registries smaller than this skip blocking
}

// ScoringConfig holds the factor weights.
type ScoringConfig struct {
	TherapeuticWeight    float64 `koanf:"therapeutic_weight"`
	PhaseWeight          float64 `koanf:"phase_weight"`
	InterventionWeight   float64 `koanf:"intervention_weight"`
	GeographicWeight     float64 `koanf:"geographic_weight"`
	CapacityWeight       float64 `koanf:"capacity_weight"` // only applied when a capacity factor is installed
	ExperienceAdjustment bool    `koanf:"experience_adjustment"`
}

// RecommendConfig controls selection and tiering.
type RecommendConfig struct {
	MaxSites           int      `koanf:"max_sites"`
	MinCountries       int      `koanf:"min_countries"`
	PrimaryThreshold   float64  `koanf:"primary_threshold"`
	SecondaryThreshold float64  `koanf:"secondary_threshold"`
	TertiaryThreshold  float64  `koanf:"tertiary_threshold"`
	ExcludedCountries  []string `koanf:"excluded_countries"` // empty: no rule installed
	MinCapacity        int      `koanf:"min_capacity"`       // 0: no rule installed
}

// IngestConfig controls the mention stream.
type IngestConfig struct {
	Transport    string `koanf:"transport"` // gochannel or nats
	Topic        string `koanf:"topic"`
	NATSURL      string `koanf:"nats_url"`
	EmbeddedNATS bool   `koanf:"embedded_nats"`
	NATSPort     int    `koanf:"nats_port"`
	NATSStoreDir string `koanf:"nats_store_dir"` // JetStream storage for the embedded server
	BufferSize   int64  `koanf:"buffer_size"`
}
