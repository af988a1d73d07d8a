// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

// Package ingest feeds facility mentions into the resolver.
//
// Two entry points share one Pipeline:
//
//   - Batch: ReadMentions decodes a file and Pipeline.Run resolves it.
//   - Streaming: a Bus carries mentions as watermill messages and a Consumer
//     resolves each one as it arrives.
//
// A bad record never aborts a run. Invalid, rejected and failed records are
// counted in the Summary and the run moves on to the next one. Cancellation
// is honored between records only: once a record starts resolving it runs to
// completion, so a site is never left half-created.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/siteselect/internal/logging"
	"github.com/tomtom215/siteselect/internal/metrics"
	"github.com/tomtom215/siteselect/internal/models"
	"github.com/tomtom215/siteselect/internal/resolve"
	"github.com/tomtom215/siteselect/internal/validation"
)

// DefaultRecordTimeout bounds the resolution of a single mention.
const DefaultRecordTimeout = time.Minute

// maxRecordedErrors caps Summary.Errors so a bad file cannot grow it unbounded.
const maxRecordedErrors = 100

// Resolver resolves one mention. *resolve.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, mention models.FacilityMention) (resolve.Result, error)
}

// Outcome classifies one processed record.
type Outcome string

const (
	OutcomeResolved Outcome = "resolved"
	OutcomeRejected Outcome = "rejected"
	OutcomeInvalid  Outcome = "invalid"
	OutcomeFailed   Outcome = "failed"
)

// RecordError describes a record that did not resolve.
type RecordError struct {
	Index   int     `json:"index"`
	Name    string  `json:"name"`
	Outcome Outcome `json:"outcome"`
	Error   string  `json:"error"`
}

// Summary counts what a run did with its records.
type Summary struct {
	Processed int                    `json:"processed"`
	Resolved  map[resolve.Method]int `json:"resolved"`
	Rejected  int                    `json:"rejected"`
	Invalid   int                    `json:"invalid"`
	Failed    int                    `json:"failed"`
	Errors    []RecordError          `json:"errors,omitempty"`
	Degraded  bool                   `json:"degraded"`
	Duration  time.Duration          `json:"duration_ns"`
}

// NewSummary returns an empty summary.
func NewSummary() Summary {
	return Summary{Resolved: make(map[resolve.Method]int)}
}

// ResolvedTotal is the number of records that mapped to a site.
func (s *Summary) ResolvedTotal() int {
	n := 0
	for _, c := range s.Resolved {
		n += c
	}
	return n
}

// Merge adds other's counts into s.
//
//nolint:gocritic // hugeParam: Summary passed by value like the result of Run
func (s *Summary) Merge(other Summary) {
	s.Processed += other.Processed
	for m, c := range other.Resolved {
		s.Resolved[m] += c
	}
	s.Rejected += other.Rejected
	s.Invalid += other.Invalid
	s.Failed += other.Failed
	s.Degraded = s.Degraded || other.Degraded
	s.Duration += other.Duration
	for _, e := range other.Errors {
		s.addError(e)
	}
}

func (s *Summary) addError(e RecordError) {
	if len(s.Errors) < maxRecordedErrors {
		s.Errors = append(s.Errors, e)
	}
}

// Pipeline validates and resolves mentions.
type Pipeline struct {
	resolver      Resolver
	recordTimeout time.Duration
	logger        zerolog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithRecordTimeout overrides DefaultRecordTimeout.
func WithRecordTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.recordTimeout = d
		}
	}
}

// NewPipeline creates a pipeline around resolver.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewPipeline(resolver Resolver, logger zerolog.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		resolver:      resolver,
		recordTimeout: DefaultRecordTimeout,
		logger:        logging.Component(logger, "ingest"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run resolves mentions in order. The returned error is non-nil only when ctx
// is cancelled; the summary then covers the records processed before that.
func (p *Pipeline) Run(ctx context.Context, mentions []models.FacilityMention) (Summary, error) {
	start := time.Now()
	if logging.CorrelationIDFromContext(ctx) == "" {
		ctx = logging.ContextWithNewCorrelationID(ctx)
	}
	log := logging.Ctx(ctx, p.logger)

	summary := NewSummary()
	for i := range mentions {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			log.Warn().
				Int("processed", summary.Processed).
				Int("remaining", len(mentions)-i).
				Msg("ingest run cancelled")
			return summary, fmt.Errorf("ingest cancelled after %d records: %w", summary.Processed, err)
		}
		p.process(ctx, i, mentions[i], &summary)
	}
	summary.Duration = time.Since(start)

	log.Info().
		Int("processed", summary.Processed).
		Int("resolved", summary.ResolvedTotal()).
		Int("rejected", summary.Rejected).
		Int("invalid", summary.Invalid).
		Int("failed", summary.Failed).
		Bool("degraded", summary.Degraded).
		Dur("elapsed", summary.Duration).
		Msg("ingest run complete")
	return summary, nil
}

// Process resolves one mention and returns its outcome. Used by the stream
// consumer, which has no batch to summarize.
func (p *Pipeline) Process(ctx context.Context, mention models.FacilityMention) (resolve.Result, Outcome, error) {
	if err := validation.Validate(&mention); err != nil {
		metrics.IngestRecords.WithLabelValues(string(OutcomeInvalid)).Inc()
		return resolve.Result{}, OutcomeInvalid, err
	}

	// The record is the atomic unit: finish it even if the caller cancels.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.recordTimeout)
	defer cancel()

	result, err := p.resolver.Resolve(rctx, mention)
	outcome := OutcomeResolved
	switch {
	case err == nil:
	case errors.Is(err, resolve.ErrRejectedMention):
		outcome = OutcomeRejected
	default:
		outcome = OutcomeFailed
	}
	metrics.IngestRecords.WithLabelValues(string(outcome)).Inc()
	return result, outcome, err
}

func (p *Pipeline) process(ctx context.Context, index int, mention models.FacilityMention, summary *Summary) {
	summary.Processed++

	result, outcome, err := p.Process(ctx, mention)
	switch outcome {
	case OutcomeResolved:
		summary.Resolved[result.Method]++
		if result.Degraded {
			summary.Degraded = true
		}
		return
	case OutcomeInvalid:
		summary.Invalid++
	case OutcomeRejected:
		summary.Rejected++
	case OutcomeFailed:
		summary.Failed++
		logging.Ctx(ctx, p.logger).Error().Err(err).
			Int("index", index).
			Str("name", mention.Name).
			Msg("mention failed to resolve")
	}
	summary.addError(RecordError{Index: index, Name: mention.Name, Outcome: outcome, Error: err.Error()})
}
