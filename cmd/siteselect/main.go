// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

// Command siteselect resolves clinical-trial facility mentions into a site
// registry and recommends sites for a target study.
//
// # Commands
//
//	siteselect run -mentions mentions.json -study study.json
//
// Ingests the mentions (a JSON array or JSON lines), scores every registered
// site against the target study and prints the recommendation report as JSON
// on stdout. Add -scenarios to print the base, conservative and aggressive
// reports instead.
//
//	siteselect serve
//
// Runs the HTTP API, the mention bus consumer and the geocode cache janitor
// under a suture supervisor tree until SIGINT or SIGTERM.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (HTTP_PORT, DB_BACKEND, GEOCODE_PROVIDER, ...)
//   - Config file (-config, CONFIG_PATH, or ./config.yaml)
//   - Built-in defaults
//
// # Build Tags
//
//	go build -tags "nats" ./cmd/siteselect   # NATS JetStream ingest transport
//
// # Exit Codes
//
// 0 on success, 1 on a runtime failure, 2 on a usage error.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/tomtom215/siteselect/internal/config"
	"github.com/tomtom215/siteselect/internal/logging"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var errUsage = errors.New("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := dispatch(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// dispatch runs the named subcommand and maps its error to an exit code.
func dispatch(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return exitUsage
	}

	var err error
	switch args[0] {
	case "run":
		err = runCommand(ctx, args[1:], stdout, stderr)
	case "serve":
		err = serveCommand(ctx, args[1:], stderr)
	case "-h", "-help", "--help", "help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		printUsage(stderr)
		return exitUsage
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		return exitUsage
	default:
		fmt.Fprintf(stderr, "siteselect %s: %v\n", args[0], err)
		return exitFailure
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: siteselect <command> [flags]

Commands:
  run     ingest mentions and print a recommendation report
  serve   run the HTTP API and ingest consumer

Run "siteselect <command> -h" for command flags.
`)
}

// loadConfig reads configuration and builds the process logger.
func loadConfig(path string, stderr io.Writer) (*config.Config, zerolog.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load configuration: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    stderr,
	})
	return cfg, logger, nil
}
