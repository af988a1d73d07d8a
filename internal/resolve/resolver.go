// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

// Package resolve maps raw facility mentions to canonical sites.
//
// Resolution order for one mention:
//
//  1. Reject empty names and short all-digit names.
//  2. Exact lookup on the normalized name.
//  3. Similarity match against blocked candidates (fuzzy mode only).
//  4. Create a new site, geocoding its location first.
//
// Steps 2 and 3 only read. Step 4 goes through Registry.CreateOrGet, so two
// callers resolving the same new facility at once end up with one site.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/siteselect/internal/geocode"
	"github.com/tomtom215/siteselect/internal/logging"
	"github.com/tomtom215/siteselect/internal/metrics"
	"github.com/tomtom215/siteselect/internal/models"
	"github.com/tomtom215/siteselect/internal/normalize"
	"github.com/tomtom215/siteselect/internal/registry"
	"github.com/tomtom215/siteselect/internal/scoring"
)

// ErrRejectedMention is returned for mentions that are dropped instead of
// registered: empty names and all-digit names below the minimum length.
var ErrRejectedMention = errors.New("mention rejected")

// Method records how a mention was resolved.
type Method string

const (
	MethodExact   Method = "exact"
	MethodFuzzy   Method = "fuzzy"
	MethodCreated Method = "created"
)

// Result is the outcome of resolving one mention.
type Result struct {
	SiteID     string       `json:"site_id"`
	Method     Method       `json:"method"`
	Similarity float64      `json:"similarity,omitempty"` // fuzzy matches only, 0-100
	Degraded   bool         `json:"degraded"`             // resolved without similarity matching
	Site       *models.Site `json:"site,omitempty"`
}

// Locator geocodes an address key.
type Locator interface {
	Resolve(ctx context.Context, address string) (models.Coordinates, error)
}

// Config holds the resolver's tunables.
type Config struct {
	// MinNumericLength rejects all-digit names shorter than this.
	MinNumericLength int
}

// Resolver resolves facility mentions against a Registry.
type Resolver struct {
	registry *registry.Registry
	matcher  Matcher
	locator  Locator
	cfg      Config
	logger   zerolog.Logger
}

// NewMatcher picks the similarity capability from configuration.
func NewMatcher(fuzzyEnabled bool, threshold float64) Matcher {
	if !fuzzyEnabled {
		return ExactOnly{}
	}
	return TokenSet{Threshold: threshold}
}

// New creates a Resolver. locator may be nil, in which case new sites are
// created without coordinates.
func New(reg *registry.Registry, matcher Matcher, locator Locator, cfg Config, logger zerolog.Logger) *Resolver {
	if matcher == nil {
		matcher = ExactOnly{}
	}
	if cfg.MinNumericLength <= 0 {
		cfg.MinNumericLength = 6
	}
	r := &Resolver{
		registry: reg,
		matcher:  matcher,
		locator:  locator,
		cfg:      cfg,
		logger:   logger.With().Str("component", "resolver").Logger(),
	}

	if r.Degraded() {
		r.logger.Warn().Str("mode", string(matcher.Mode())).Msg("similarity matching disabled, resolving by exact name only")
	} else {
		r.logger.Info().Str("mode", string(matcher.Mode())).Msg("resolver ready")
	}
	return r
}

// Mode returns the active similarity capability.
func (r *Resolver) Mode() Mode {
	return r.matcher.Mode()
}

// Degraded reports whether the resolver runs without similarity matching.
func (r *Resolver) Degraded() bool {
	return r.matcher.Mode() == ModeExactOnly
}

// Resolve maps mention to a site, creating one if nothing matches. It returns
// an error wrapping ErrRejectedMention for dropped mentions.
func (r *Resolver) Resolve(ctx context.Context, mention models.FacilityMention) (Result, error) {
	log := logging.Ctx(ctx, r.logger)

	normalized := normalize.Name(mention.Name)
	if reason := r.rejectReason(mention.Name, normalized); reason != "" {
		metrics.MentionsRejected.WithLabelValues(reason).Inc()
		log.Debug().Str("name", mention.Name).Str("reason", reason).Msg("mention rejected")
		return Result{}, fmt.Errorf("%w: %s", ErrRejectedMention, reason)
	}

	result := Result{Degraded: r.Degraded()}

	site, err := r.registry.FindExact(ctx, normalized)
	switch {
	case err == nil:
		result.Method = MethodExact
	case !errors.Is(err, registry.ErrNotFound):
		return Result{}, fmt.Errorf("exact lookup: %w", err)
	default:
		if m, ok := r.matcher.Best(mention.Name, r.registry.Candidates(normalized)); ok {
			site, err = r.registry.Get(ctx, m.Candidate.ID)
			if err != nil {
				return Result{}, fmt.Errorf("load matched site %s: %w", m.Candidate.ID, err)
			}
			result.Method = MethodFuzzy
			result.Similarity = m.Score
			log.Debug().
				Str("name", mention.Name).
				Str("matched", m.Candidate.DisplayName).
				Float64("similarity", m.Score).
				Msg("fuzzy match")
		} else {
			var created bool
			site, created, err = r.create(ctx, mention)
			if err != nil {
				return Result{}, err
			}
			result.Method = MethodCreated
			if !created {
				// Lost a create race to the same normalized name.
				result.Method = MethodExact
			}
		}
	}

	site, err = r.attachStudy(ctx, site, mention.Study)
	if err != nil {
		return Result{}, err
	}

	result.SiteID = site.ID
	result.Site = site
	metrics.RecordResolution(string(result.Method), result.Degraded)
	return result, nil
}

func (r *Resolver) rejectReason(raw, normalized string) string {
	if normalized == "" {
		return "empty_name"
	}
	if normalize.IsNumeric(raw) && len([]rune(normalized)) < r.cfg.MinNumericLength {
		return "numeric_name"
	}
	return ""
}

// create geocodes the mention's location and registers a new site. A
// geocoding failure is logged and the site is created without coordinates.
func (r *Resolver) create(ctx context.Context, mention models.FacilityMention) (*models.Site, bool, error) {
	site := &models.Site{
		DisplayName:         normalize.Display(mention.Name),
		City:                normalize.Display(mention.City),
		Region:              normalize.Display(mention.Region),
		Country:             normalize.Display(mention.Country),
		InstitutionType:     models.InferInstitutionType(mention.Name),
		AccreditationStatus: models.DefaultAccreditationStatus,
	}

	if r.locator != nil {
		if addr := geocode.Key(mention.City, mention.Region, mention.Country); addr != "" {
			coords, err := r.locator.Resolve(ctx, addr)
			if err != nil {
				logging.Ctx(ctx, r.logger).Warn().Err(err).Str("name", site.DisplayName).Str("address", addr).Msg("creating site without coordinates")
			} else {
				site.Coordinates = &coords
			}
		}
	}

	created, isNew, err := r.registry.CreateOrGet(ctx, site)
	if err != nil {
		return nil, false, fmt.Errorf("create site: %w", err)
	}
	return created, isNew, nil
}

// attachStudy links the study to the site and folds it into the site's
// trial profile and experience. Repeated links leave the site unchanged.
func (r *Resolver) attachStudy(ctx context.Context, site *models.Site, study *models.StudyRef) (*models.Site, error) {
	if study == nil {
		return site, nil
	}

	isNew, err := r.registry.Link(ctx, site.ID, study)
	if err != nil {
		return nil, fmt.Errorf("link %s to site %s: %w", study.NCTID, site.ID, err)
	}

	var exp *models.SiteExperience
	if isNew {
		links, err := r.registry.Links(ctx, site.ID)
		if err != nil {
			return nil, fmt.Errorf("list links for site %s: %w", site.ID, err)
		}
		studies := make([]models.StudyRef, len(links))
		for i, l := range links {
			studies[i] = l.Study()
		}
		agg := scoring.AggregateExperience(studies)
		exp = &agg
	}

	updated, err := r.registry.Update(ctx, site.ID, func(s *models.Site) bool {
		changed := s.MergeStudy(study)
		if exp != nil {
			s.Experience = exp
			if exp.TotalEnrollment > s.Capacity {
				s.Capacity = exp.TotalEnrollment
			}
			changed = true
		}
		return changed
	})
	if err != nil {
		return nil, fmt.Errorf("update site profile: %w", err)
	}
	return updated, nil
}
