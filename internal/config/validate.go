// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package config

import (
	"fmt"
	"math"
)

var (
	validLogLevels = map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true,
	}
	validLogFormats = map[string]bool{"json": true, "console": true}
)

// Validate checks the configuration for values no component can work with.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateGeocode(); err != nil {
		return err
	}
	if err := c.validateResolver(); err != nil {
		return err
	}
	if err := c.validateScoring(); err != nil {
		return err
	}
	if err := c.validateRecommend(); err != nil {
		return err
	}
	return c.validateIngest()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.RateLimitReqs < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must not be negative")
	}
	if c.Server.RateLimitReqs > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive when rate limiting is enabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Database.Backend {
	case "memory", "duckdb":
	default:
		return fmt.Errorf("DB_BACKEND must be one of: memory, duckdb")
	}
	switch c.Cache.Backend {
	case "memory":
	case "badger":
		if c.Cache.Path == "" {
			return fmt.Errorf("CACHE_PATH is required for the badger cache backend")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be one of: memory, badger")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("GEOCODE_CACHE_TTL must be positive")
	}
	return nil
}

func (c *Config) validateGeocode() error {
	g := c.Geocode
	switch g.Provider {
	case "none":
		return nil
	case "nominatim":
	default:
		return fmt.Errorf("GEOCODE_PROVIDER must be one of: nominatim, none")
	}
	if g.BaseURL == "" {
		return fmt.Errorf("GEOCODE_BASE_URL is required")
	}
	if g.RequestsPerSecond <= 0 || g.Burst < 1 {
		return fmt.Errorf("GEOCODE_RPS must be positive and GEOCODE_BURST at least 1")
	}
	if g.Timeout <= 0 {
		return fmt.Errorf("GEOCODE_TIMEOUT must be positive")
	}
	if g.MaxAttempts < 1 || g.MaxAttempts > 10 {
		return fmt.Errorf("GEOCODE_MAX_ATTEMPTS must be between 1 and 10")
	}
	if g.InitialBackoff <= 0 || g.MaxBackoff < g.InitialBackoff {
		return fmt.Errorf("GEOCODE_INITIAL_BACKOFF must be positive and not exceed GEOCODE_MAX_BACKOFF")
	}
	return nil
}

func (c *Config) validateResolver() error {
	if c.Resolver.SimilarityThreshold < 0 || c.Resolver.SimilarityThreshold >= 100 {
		return fmt.Errorf("RESOLVER_SIMILARITY_THRESHOLD must be in [0, 100)")
	}
	if c.Resolver.MinNumericLength < 0 {
		return fmt.Errorf("RESOLVER_MIN_NUMERIC_LENGTH must not be negative")
	}
	if c.Resolver.BlockingPrefixLen < 0 {
		return fmt.Errorf("RESOLVER_BLOCKING_PREFIX_LEN must not be negative")
	}
	if c.Resolver.FullScanBelow < 0 {
		return fmt.Errorf("RESOLVER_FULL_SCAN_BELOW must not be negative")
	}
	return nil
}

func (c *Config) validateScoring() error {
	s := c.Scoring
	weights := []float64{s.TherapeuticWeight, s.PhaseWeight, s.InterventionWeight, s.GeographicWeight, s.CapacityWeight}
	sum := 0.0
	for _, w := range weights {
		if w < 0 {
			return fmt.Errorf("scoring weights must not be negative")
		}
		sum += w
	}
	// Overall must stay within [0, 1] without clamping.
	if sum > 1+1e-9 || math.IsNaN(sum) {
		return fmt.Errorf("scoring weights must sum to at most 1.0, got %.3f", sum)
	}
	return nil
}

func (c *Config) validateRecommend() error {
	r := c.Recommend
	if r.MaxSites < 1 {
		return fmt.Errorf("RECOMMEND_MAX_SITES must be at least 1")
	}
	if r.MinCountries < 0 {
		return fmt.Errorf("RECOMMEND_MIN_COUNTRIES must not be negative")
	}
	if !(r.PrimaryThreshold >= r.SecondaryThreshold && r.SecondaryThreshold >= r.TertiaryThreshold) {
		return fmt.Errorf("tier thresholds must satisfy primary >= secondary >= tertiary")
	}
	if r.TertiaryThreshold < 0 || r.PrimaryThreshold > 1 {
		return fmt.Errorf("tier thresholds must lie in [0, 1]")
	}
	if r.MinCapacity < 0 {
		return fmt.Errorf("RECOMMEND_MIN_CAPACITY must not be negative")
	}
	return nil
}

func (c *Config) validateIngest() error {
	switch c.Ingest.Transport {
	case "gochannel", "nats":
	default:
		return fmt.Errorf("INGEST_TRANSPORT must be one of: gochannel, nats")
	}
	if c.Ingest.Topic == "" {
		return fmt.Errorf("INGEST_TOPIC is required")
	}
	if c.Ingest.Transport == "nats" && c.Ingest.NATSURL == "" && !c.Ingest.EmbeddedNATS {
		return fmt.Errorf("NATS_URL is required unless NATS_EMBEDDED_SERVER is enabled")
	}
	return nil
}
