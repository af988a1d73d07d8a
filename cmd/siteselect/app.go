// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/tomtom215/siteselect/internal/cache"
	"github.com/tomtom215/siteselect/internal/config"
	"github.com/tomtom215/siteselect/internal/database"
	"github.com/tomtom215/siteselect/internal/geocode"
	"github.com/tomtom215/siteselect/internal/ingest"
	"github.com/tomtom215/siteselect/internal/models"
	"github.com/tomtom215/siteselect/internal/recommend"
	"github.com/tomtom215/siteselect/internal/registry"
	"github.com/tomtom215/siteselect/internal/resolve"
	"github.com/tomtom215/siteselect/internal/retry"
	"github.com/tomtom215/siteselect/internal/scoring"
)

// app is the wired component graph shared by the run and serve commands.
type app struct {
	cfg      *config.Config
	registry *registry.Registry
	resolver *resolve.Resolver
	pipeline *ingest.Pipeline
	engine   *recommend.Engine

	// geoCache is nil when geocoding is disabled.
	geoCache cache.Cache[string, models.Coordinates]
	db       *database.DB // nil for the memory backend

	closers []io.Closer
	logger  zerolog.Logger
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// buildApp opens the configured stores and wires resolver, scorer and engine.
// On error everything opened so far is closed.
func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (a *app, err error) {
	a = &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	var (
		siteStore  registry.Store
		scoreStore scoring.ScoreStore
	)
	switch cfg.Database.Backend {
	case "duckdb":
		db, openErr := database.New(cfg.Database, logger)
		if openErr != nil {
			return a, fmt.Errorf("open database: %w", openErr)
		}
		a.db = db
		a.closers = append(a.closers, db)
		siteStore, scoreStore = db, db
	default:
		siteStore, scoreStore = registry.NewMemoryStore(), scoring.NewMemoryScoreStore()
	}

	reg, err := registry.New(ctx, siteStore, logger,
		registry.WithBlockingPrefix(cfg.Resolver.BlockingPrefixLen),
		registry.WithFullScanBelow(cfg.Resolver.FullScanBelow))
	if err != nil {
		return a, fmt.Errorf("load registry: %w", err)
	}
	a.registry = reg

	locator, err := a.buildLocator()
	if err != nil {
		return a, err
	}

	a.resolver = resolve.New(reg,
		resolve.NewMatcher(cfg.Resolver.FuzzyEnabled, cfg.Resolver.SimilarityThreshold),
		locator,
		resolve.Config{MinNumericLength: cfg.Resolver.MinNumericLength},
		logger)
	a.pipeline = ingest.NewPipeline(a.resolver, logger)

	// DuckDB aggregates experience in SQL; the memory backend derives it
	// from the registry's links.
	var experience scoring.MetricsProvider = scoring.LinkMetrics{Source: reg}
	if a.db != nil {
		experience = a.db
	}

	scoreOpts := []scoring.Option{scoring.WithWeights(scoring.Weights{
		Therapeutic:  cfg.Scoring.TherapeuticWeight,
		Phase:        cfg.Scoring.PhaseWeight,
		Intervention: cfg.Scoring.InterventionWeight,
		Geographic:   cfg.Scoring.GeographicWeight,
		Capacity:     cfg.Scoring.CapacityWeight,
	})}
	if cfg.Scoring.ExperienceAdjustment {
		scoreOpts = append(scoreOpts, scoring.WithExperienceAdjustment(experience))
	}
	scorer, err := scoring.New(scoreStore, logger, scoreOpts...)
	if err != nil {
		return a, fmt.Errorf("build scorer: %w", err)
	}

	engine, err := recommend.NewEngine(recommend.Config{
		MaxSites:     cfg.Recommend.MaxSites,
		MinCountries: cfg.Recommend.MinCountries,
		Thresholds: recommend.Thresholds{
			Primary:   cfg.Recommend.PrimaryThreshold,
			Secondary: cfg.Recommend.SecondaryThreshold,
			Tertiary:  cfg.Recommend.TertiaryThreshold,
		},
	}, scorer, logger,
		recommend.WithRules(recommend.RulesFromConfig(cfg.Recommend.ExcludedCountries, cfg.Recommend.MinCapacity)...),
		recommend.WithMetricsProvider(experience),
	)
	if err != nil {
		return a, fmt.Errorf("build recommendation engine: %w", err)
	}
	a.engine = engine

	logger.Info().
		Str("db_backend", cfg.Database.Backend).
		Str("cache_backend", cfg.Cache.Backend).
		Str("geocoder", cfg.Geocode.Provider).
		Str("resolver_mode", string(a.resolver.Mode())).
		Int("sites", reg.Len()).
		Msg("components initialized")
	return a, nil
}

// buildLocator returns nil when geocoding is disabled; sites are then
// created without coordinates.
func (a *app) buildLocator() (resolve.Locator, error) {
	g := a.cfg.Geocode
	if g.Provider == "none" {
		return nil, nil
	}

	switch a.cfg.Cache.Backend {
	case "badger":
		bdb, err := cache.OpenBadger(a.cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("open geocode cache: %w", err)
		}
		a.closers = append(a.closers, closerFunc(bdb.Close))
		a.geoCache = cache.NewBadger[models.Coordinates](bdb, "geocode", a.cfg.Cache.TTL)
	default:
		a.geoCache = cache.NewMemory[string, models.Coordinates](a.cfg.Cache.TTL)
	}

	provider := geocode.NewBreakerGeocoder(
		geocode.NewNominatim(g.BaseURL, g.UserAgent, g.Timeout),
		geocode.BreakerSettings{ConsecutiveFailures: g.BreakerFailures, Timeout: g.BreakerTimeout},
		a.logger,
	)
	return geocode.NewResolver(a.geoCache, provider, geocode.Options{
		RequestsPerSecond: g.RequestsPerSecond,
		Burst:             g.Burst,
		Timeout:           g.Timeout,
		Retry: retry.Policy{
			MaxAttempts:  g.MaxAttempts,
			InitialDelay: g.InitialBackoff,
			MaxDelay:     g.MaxBackoff,
		},
	}, a.logger), nil
}

// Close releases stores in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
