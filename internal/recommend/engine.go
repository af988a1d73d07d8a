// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/siteselect/internal/logging"
	"github.com/tomtom215/siteselect/internal/metrics"
	"github.com/tomtom215/siteselect/internal/models"
	"github.com/tomtom215/siteselect/internal/scoring"
	"github.com/tomtom215/siteselect/internal/validation"
)

// Scenario names.
const (
	ScenarioBase         = "base"
	ScenarioConservative = "conservative"
	ScenarioAggressive   = "aggressive"
)

// Scorer scores one site against a target. *scoring.Scorer implements it.
type Scorer interface {
	Score(ctx context.Context, site *models.Site, target models.TargetStudy) (models.MatchScore, error)
}

// Engine builds recommendation reports. It is safe for concurrent use.
type Engine struct {
	config    Config
	scorer    Scorer
	rules     []EligibilityRule
	metrics   scoring.MetricsProvider
	narrative NarrativeProvider
	now       func() time.Time
	logger    zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules installs eligibility rules. A site must pass all of them.
func WithRules(rules ...EligibilityRule) Option {
	return func(e *Engine) { e.rules = append(e.rules, rules...) }
}

// WithMetricsProvider sets where strengths and weaknesses come from. Without
// one, only the experience stored on each site is used.
func WithMetricsProvider(p scoring.MetricsProvider) Option {
	return func(e *Engine) { e.metrics = p }
}

// WithNarrative attaches free-text commentary to report entries.
func WithNarrative(n NarrativeProvider) Option {
	return func(e *Engine) { e.narrative = n }
}

// WithClock sets the GeneratedAt time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates a recommendation engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg Config, scorer Scorer, logger zerolog.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if scorer == nil {
		return nil, fmt.Errorf("scorer is required")
	}

	e := &Engine{
		config: cfg,
		scorer: scorer,
		now:    time.Now,
		logger: logger.With().Str("component", "recommend").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, r := range e.rules {
		e.logger.Info().Str("rule", r.Name()).Msg("registered eligibility rule")
	}
	return e, nil
}

// Recommend scores sites against target and returns the tiered report.
// A site that fails to score is skipped and counted in Failed. The only
// errors are an invalid target and context cancellation.
//
//nolint:gocritic // hugeParam: target passed by value for immutability
func (e *Engine) Recommend(ctx context.Context, target models.TargetStudy, sites []*models.Site) (*models.RecommendationReport, error) {
	if err := validation.Validate(&target); err != nil {
		return nil, fmt.Errorf("invalid target study: %w", err)
	}
	return e.build(ctx, "", target, sites)
}

// Scenarios returns the base report plus two alternatives: conservative
// (Phase 3) and aggressive (Phase 1). Keys are the scenario names.
//
//nolint:gocritic // hugeParam: target passed by value for immutability
func (e *Engine) Scenarios(ctx context.Context, target models.TargetStudy, sites []*models.Site) (map[string]*models.RecommendationReport, error) {
	if err := validation.Validate(&target); err != nil {
		return nil, fmt.Errorf("invalid target study: %w", err)
	}

	variants := []struct {
		name   string
		target models.TargetStudy
	}{
		{ScenarioBase, target},
		{ScenarioConservative, target.WithPhase("Phase 3")},
		{ScenarioAggressive, target.WithPhase("Phase 1")},
	}

	out := make(map[string]*models.RecommendationReport, len(variants))
	for _, v := range variants {
		report, err := e.build(ctx, v.name, v.target, sites)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", v.name, err)
		}
		out[v.name] = report
	}
	return out, nil
}

// Preferences narrow an existing report.
type Preferences struct {
	// Countries keeps only sites in these countries. Empty keeps all.
	Countries []string `json:"countries,omitempty"`
	// MinScore drops entries whose overall score is lower.
	MinScore float64 `json:"min_score,omitempty"`
}

// Refine returns a copy of report keeping only the entries that match prefs.
// Scores and tiers are not recomputed.
func (e *Engine) Refine(report *models.RecommendationReport, prefs Preferences) *models.RecommendationReport {
	wanted := make(map[string]struct{}, len(prefs.Countries))
	for _, c := range prefs.Countries {
		if k := countryKey(c); k != "" {
			wanted[k] = struct{}{}
		}
	}

	out := *report
	out.Tiers = make(map[models.Tier][]models.ReportEntry, len(report.Tiers))
	for tier, entries := range report.Tiers {
		kept := []models.ReportEntry{}
		for _, entry := range entries {
			if entry.Scores.Overall < prefs.MinScore {
				continue
			}
			if len(wanted) > 0 {
				if _, ok := wanted[countryKey(entry.Site.Country)]; !ok {
					continue
				}
			}
			kept = append(kept, entry)
		}
		out.Tiers[tier] = kept
	}

	e.logger.Debug().
		Strs("countries", prefs.Countries).
		Float64("min_score", prefs.MinScore).
		Int("before", report.Total()).
		Int("after", out.Total()).
		Msg("report refined")
	return &out
}

//nolint:gocritic // hugeParam: target passed by value for immutability
func (e *Engine) build(ctx context.Context, scenario string, target models.TargetStudy, sites []*models.Site) (*models.RecommendationReport, error) {
	start := time.Now()
	log := logging.Ctx(ctx, e.logger)

	report := models.NewRecommendationReport(target, e.now().UTC())
	report.Scenario = scenario
	report.Considered = len(sites)

	eligible := e.filter(sites, target)
	report.Eligible = len(eligible)

	candidates := make([]Candidate, 0, len(eligible))
	for _, site := range eligible {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score, err := e.scorer.Score(ctx, site, target)
		if err != nil {
			report.Failed++
			report.Degraded = true
			log.Warn().Err(err).Str("site_id", site.ID).Msg("scoring failed, site skipped")
			continue
		}
		candidates = append(candidates, Candidate{Site: site, Score: score})
	}

	Rank(candidates)
	shortlist := Diversify(candidates, e.config.MaxSites, e.config.MinCountries)
	report.Shortlisted = len(shortlist)

	for _, c := range shortlist {
		tier, ok := e.config.Thresholds.Tier(c.Score.Overall)
		if !ok {
			report.Excluded++
			continue
		}
		entry, degraded := e.entry(ctx, c)
		if degraded {
			report.Degraded = true
		}
		report.Tiers[tier] = append(report.Tiers[tier], entry)
		metrics.TierAssignments.WithLabelValues(string(tier)).Inc()
	}

	label := scenario
	if label == "" {
		label = ScenarioBase
	}
	metrics.ReportsGenerated.WithLabelValues(label).Inc()

	log.Info().
		Str("scenario", label).
		Str("target", target.Ref()).
		Int("considered", report.Considered).
		Int("eligible", report.Eligible).
		Int("shortlisted", report.Shortlisted).
		Int("primary", len(report.Tiers[models.TierPrimary])).
		Int("secondary", len(report.Tiers[models.TierSecondary])).
		Int("tertiary", len(report.Tiers[models.TierTertiary])).
		Int("failed", report.Failed).
		Bool("degraded", report.Degraded).
		Dur("elapsed", time.Since(start)).
		Msg("recommendation report built")
	return report, nil
}

//nolint:gocritic // hugeParam: target passed by value for immutability
func (e *Engine) filter(sites []*models.Site, target models.TargetStudy) []*models.Site {
	if len(e.rules) == 0 {
		return sites
	}
	out := make([]*models.Site, 0, len(sites))
	for _, site := range sites {
		if rule := e.failedRule(site, target); rule != "" {
			e.logger.Debug().Str("site_id", site.ID).Str("rule", rule).Msg("site ineligible")
			continue
		}
		out = append(out, site)
	}
	return out
}

//nolint:gocritic // hugeParam: target passed by value for immutability
func (e *Engine) failedRule(site *models.Site, target models.TargetStudy) string {
	var failed []string
	for _, r := range e.rules {
		if !r.Eligible(site, target) {
			failed = append(failed, r.Name())
		}
	}
	return strings.Join(failed, ",")
}
