// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tomtom215/siteselect/internal/api"
	"github.com/tomtom215/siteselect/internal/ingest"
	"github.com/tomtom215/siteselect/internal/logging"
	"github.com/tomtom215/siteselect/internal/supervisor"
	"github.com/tomtom215/siteselect/internal/supervisor/services"
)

func serveCommand(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return errors.Join(errUsage, err)
	}

	cfg, logger, err := loadConfig(*configPath, stderr)
	if err != nil {
		return err
	}
	logger.Info().Msg("Starting siteselect with supervisor tree")

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Error().Err(cerr).Msg("error closing stores")
		}
	}()

	bus, err := ingest.NewBus(cfg.Ingest, logger)
	if err != nil {
		return fmt.Errorf("start ingest bus: %w", err)
	}
	defer func() {
		if cerr := bus.Close(); cerr != nil {
			logger.Error().Err(cerr).Msg("error closing ingest bus")
		}
	}()

	tree, err := a.supervisorTree(bus, logger)
	if err != nil {
		return err
	}

	logger.Info().
		Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Str("ingest_transport", bus.Transport()).
		Str("ingest_topic", bus.Topic()).
		Msg("siteselect ready")

	// Serve returns when ctx is canceled by SIGINT/SIGTERM.
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		logger.Warn().Int("count", len(report)).Msg("services did not stop within the shutdown timeout")
	}
	logger.Info().Msg("siteselect stopped")
	return nil
}

// supervisorTree builds the HTTP server, consumer and janitor services and
// places them in their layers.
func (a *app) supervisorTree(bus *ingest.Bus, logger zerolog.Logger) (*supervisor.SupervisorTree, error) {
	handler, err := a.httpHandler(bus.Transport())
	if err != nil {
		return nil, err
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(logger), supervisor.TreeConfig{
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create supervisor tree: %w", err)
	}

	if a.geoCache != nil {
		tree.AddDataService(services.NewCacheJanitorService(a.geoCache, "geocode", a.cfg.Cache.CleanupInterval, logger))
	}
	tree.AddIngestService(ingest.NewConsumer(bus, a.pipeline, logger))
	tree.AddAPIService(services.NewHTTPServerService(
		api.NewServer(a.cfg.Server, handler),
		a.cfg.Server.ShutdownTimeout,
		logger,
	))
	return tree, nil
}

// httpHandler wires the API router over the app's components.
func (a *app) httpHandler(transport string) (http.Handler, error) {
	deps := api.Dependencies{
		Sites:     a.registry,
		Mentions:  a.pipeline,
		Engine:    a.engine,
		Degraded:  a.resolver.Degraded,
		Transport: transport,
	}
	if a.db != nil {
		deps.Store = a.db
	}

	h, err := api.NewHandler(deps, a.logger, api.WithRequestTimeout(a.cfg.Server.WriteTimeout))
	if err != nil {
		return nil, fmt.Errorf("create API handler: %w", err)
	}
	return api.NewRouter(h, api.ChiMiddlewareConfigFromServer(a.cfg.Server)).SetupChi(), nil
}
