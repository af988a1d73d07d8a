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

	"github.com/goccy/go-json"

	"github.com/tomtom215/siteselect/internal/ingest"
	"github.com/tomtom215/siteselect/internal/logging"
	"github.com/tomtom215/siteselect/internal/models"
)

// batchOutput is what run prints. Exactly one of Report and Scenarios is set.
type batchOutput struct {
	Ingest    ingest.Summary `json:"ingest"`
	Report    interface{}    `json:"report,omitempty"`
	Scenarios interface{}    `json:"scenarios,omitempty"`
}

func runCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file")
	mentionsPath := fs.String("mentions", "", "facility mentions, JSON array or JSON lines (required)")
	studyPath := fs.String("study", "", "target study JSON (required)")
	scenarios := fs.Bool("scenarios", false, "print base, conservative and aggressive reports")
	if err := fs.Parse(args); err != nil {
		return errors.Join(errUsage, err)
	}
	if *mentionsPath == "" || *studyPath == "" {
		fmt.Fprintln(stderr, "run: -mentions and -study are required")
		fs.Usage()
		return errUsage
	}

	cfg, logger, err := loadConfig(*configPath, stderr)
	if err != nil {
		return err
	}

	mentions, err := ingest.ReadMentionsFile(*mentionsPath)
	if err != nil {
		return err
	}
	target, err := ingest.ReadTargetFile(*studyPath)
	if err != nil {
		return err
	}

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Error().Err(cerr).Msg("error closing stores")
		}
	}()

	ctx = logging.ContextWithNewCorrelationID(ctx)
	out, err := a.batch(ctx, mentions, target, *scenarios)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// batch ingests mentions and builds the report for target from every
// registered site. A canceled ingest returns the error; per-record failures
// only show up in the summary.
//
//nolint:gocritic // hugeParam: target passed by value for immutability
func (a *app) batch(ctx context.Context, mentions []models.FacilityMention, target models.TargetStudy, scenarios bool) (*batchOutput, error) {
	summary, err := a.pipeline.Run(ctx, mentions)
	if err != nil {
		return nil, err
	}

	sites, err := a.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}

	out := &batchOutput{Ingest: summary}
	if scenarios {
		reports, err := a.engine.Scenarios(ctx, target, sites)
		if err != nil {
			return nil, err
		}
		out.Scenarios = reports
		return out, nil
	}

	report, err := a.engine.Recommend(ctx, target, sites)
	if err != nil {
		return nil, err
	}
	out.Report = report
	return out, nil
}
