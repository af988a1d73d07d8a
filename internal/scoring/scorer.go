// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

// Package scoring computes how well a site fits a target study.
//
// Four pure factor functions (Therapeutic, Phase, Intervention, Geographic)
// each return a value in [0, 1]. Scorer combines them with configurable
// weights into an overall score, optionally applies the experience
// multiplier, and persists every result as a new immutable MatchScore.
//
// The default weights are 0.35/0.20/0.20/0.15 and sum to 0.90. The remaining
// 0.10 belongs to a capacity factor that is only applied when one is
// installed with WithCapacityFactor.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/siteselect/internal/metrics"
	"github.com/tomtom215/siteselect/internal/models"
)

// Weights are the factor weights. They must be non-negative and sum to at
// most 1 so the overall score stays in [0, 1].
type Weights struct {
	Therapeutic  float64
	Phase        float64
	Intervention float64
	Geographic   float64
	Capacity     float64
}

// DefaultWeights returns the documented weighting.
func DefaultWeights() Weights {
	return Weights{
		Therapeutic:  0.35,
		Phase:        0.20,
		Intervention: 0.20,
		Geographic:   0.15,
		Capacity:     0.10,
	}
}

// Validate checks the weights can only produce scores in [0, 1].
func (w Weights) Validate() error {
	sum := 0.0
	for _, v := range []float64{w.Therapeutic, w.Phase, w.Intervention, w.Geographic, w.Capacity} {
		if v < 0 || math.IsNaN(v) {
			return errors.New("weights must be non-negative")
		}
		sum += v
	}
	if sum > 1+1e-9 {
		return fmt.Errorf("weights sum to %.4f, must be at most 1", sum)
	}
	return nil
}

// CapacityFactor scores a site's capacity for the target in [0, 1]. No
// formula ships; installing one activates the reserved capacity weight.
type CapacityFactor func(site *models.Site, target models.TargetStudy) float64

// Scorer computes and stores match scores.
type Scorer struct {
	store    ScoreStore
	weights  Weights
	capacity CapacityFactor
	provider MetricsProvider
	adjust   bool
	now      func() time.Time
	logger   zerolog.Logger
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithWeights replaces the default weights.
func WithWeights(w Weights) Option {
	return func(s *Scorer) { s.weights = w }
}

// WithCapacityFactor installs the capacity factor.
func WithCapacityFactor(f CapacityFactor) Option {
	return func(s *Scorer) { s.capacity = f }
}

// WithExperienceAdjustment turns on the experience multiplier, using p for
// site metrics. A nil provider falls back to Site.Experience.
func WithExperienceAdjustment(p MetricsProvider) Option {
	return func(s *Scorer) {
		s.adjust = true
		s.provider = p
	}
}

// WithClock sets the ComputedAt time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Scorer that persists to store.
func New(store ScoreStore, logger zerolog.Logger, opts ...Option) (*Scorer, error) {
	s := &Scorer{
		store:   store,
		weights: DefaultWeights(),
		now:     time.Now,
		logger:  logger.With().Str("component", "scoring").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.weights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weights: %w", err)
	}
	return s, nil
}

// Compute returns the score for site against target without storing it.
// ID and ComputedAt are left empty.
func (s *Scorer) Compute(ctx context.Context, site *models.Site, target models.TargetStudy) models.MatchScore {
	score := models.MatchScore{
		SiteID:        site.ID,
		TargetStudyID: target.Ref(),
		Therapeutic:   Therapeutic(target.Conditions, site.Conditions),
		Phase:         Phase(target.Phase, site.Phases),
		Intervention:  Intervention(target.InterventionType, site.InterventionTypes),
		Geographic:    Geographic(target.Country, site.Country),
	}

	w := s.weights
	overall := w.Therapeutic*score.Therapeutic +
		w.Phase*score.Phase +
		w.Intervention*score.Intervention +
		w.Geographic*score.Geographic
	if s.capacity != nil {
		overall += w.Capacity * clamp01(s.capacity(site, target))
	}
	score.Overall = clamp01(overall)

	if s.adjust {
		if exp := s.experience(ctx, site); exp != nil && exp.TotalStudies > 0 {
			score.Overall = clamp01(score.Overall * ExperienceMultiplier(exp))
			score.Adjusted = true
		}
	}
	return score
}

// experience looks up the site's history. Provider failures degrade to no
// adjustment.
func (s *Scorer) experience(ctx context.Context, site *models.Site) *models.SiteExperience {
	if s.provider == nil {
		return site.Experience
	}
	m, err := s.provider.SiteMetrics(ctx, site.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("site_id", site.ID).Msg("site metrics unavailable, score not adjusted")
		return nil
	}
	if m == nil {
		return nil
	}
	return m.Experience
}

// Score computes the match score and stores it as a new record.
func (s *Scorer) Score(ctx context.Context, site *models.Site, target models.TargetStudy) (models.MatchScore, error) {
	score := s.Compute(ctx, site, target)
	score.ID = uuid.New().String()
	score.ComputedAt = s.now().UTC()

	if err := s.store.InsertScore(ctx, score); err != nil {
		return models.MatchScore{}, fmt.Errorf("store score for site %s: %w", site.ID, err)
	}
	metrics.RecordScore(score.Overall, score.Adjusted)

	s.logger.Debug().
		Str("site_id", site.ID).
		Str("target", score.TargetStudyID).
		Float64("therapeutic", score.Therapeutic).
		Float64("phase", score.Phase).
		Float64("intervention", score.Intervention).
		Float64("geographic", score.Geographic).
		Float64("overall", score.Overall).
		Bool("adjusted", score.Adjusted).
		Msg("site scored")
	return score, nil
}
