// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

// Package registry is the canonical set of sites.
//
// Registry wraps a Store with the two things the resolver needs beyond plain
// persistence: an atomic create-or-get keyed by normalized name, and a
// blocking index that narrows fuzzy-match candidates. Sites are never
// deleted; IDs never change once assigned.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/siteselect/internal/metrics"
	"github.com/tomtom215/siteselect/internal/models"
	"github.com/tomtom215/siteselect/internal/normalize"
)

// Registry coordinates site creation and lookup over a Store.
type Registry struct {
	store  Store
	index  *blockIndex
	locks  sync.Map // normalized name -> *sync.Mutex
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the time source for CreatedAt/UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithBlockingPrefix sets how many leading characters of the normalized name
// form a blocking key. Zero disables prefix blocking.
func WithBlockingPrefix(n int) Option {
	return func(r *Registry) {
		r.index.prefixLen = n
	}
}

// WithFullScanBelow makes Candidates return every site while the registry
// holds fewer than n sites. Zero always uses blocking.
func WithFullScanBelow(n int) Option {
	return func(r *Registry) {
		r.index.fullScanBelow = n
	}
}

// New builds a Registry over store and loads the blocking index from the
// sites already stored.
func New(ctx context.Context, store Store, logger zerolog.Logger, opts ...Option) (*Registry, error) {
	r := &Registry{
		store:  store,
		index:  newBlockIndex(3),
		now:    time.Now,
		logger: logger.With().Str("component", "registry").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	sites, err := store.ListSites(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sites: %w", err)
	}
	for _, s := range sites {
		r.indexSite(s)
	}
	r.logger.Info().Int("sites", len(sites)).Msg("registry loaded")
	return r, nil
}

func (r *Registry) indexSite(s *models.Site) {
	r.index.add(Candidate{
		ID:             s.ID,
		DisplayName:    s.DisplayName,
		NormalizedName: s.NormalizedName,
		CreatedAt:      s.CreatedAt,
	}, normalize.Tokens(s.DisplayName))
}

// Get returns the site with id or ErrNotFound.
func (r *Registry) Get(ctx context.Context, id string) (*models.Site, error) {
	return r.store.GetSite(ctx, id)
}

// FindExact returns the site whose normalized name equals normalizedName.
func (r *Registry) FindExact(ctx context.Context, normalizedName string) (*models.Site, error) {
	return r.store.FindByNormalizedName(ctx, normalizedName)
}

// Candidates returns the sites sharing a blocking key with normalizedName.
// The result is ordered by creation time, then ID.
func (r *Registry) Candidates(normalizedName string) []Candidate {
	cands := r.index.lookup(normalizedName, normalize.Tokens(normalizedName))
	metrics.ResolverCandidates.Observe(float64(len(cands)))
	return cands
}

// List returns every site ordered by creation time.
func (r *Registry) List(ctx context.Context) ([]*models.Site, error) {
	return r.store.ListSites(ctx)
}

// Len returns the number of indexed sites.
func (r *Registry) Len() int {
	return r.index.len()
}

// CreateOrGet inserts site unless one with the same normalized name exists,
// in which case the existing site is returned. The boolean reports whether
// this call created the site.
//
// ID, NormalizedName and timestamps are filled in here. Callers racing on
// the same normalized name are serialized in-process; a conflict from the
// store (another process won) is resolved by reading the winner.
func (r *Registry) CreateOrGet(ctx context.Context, site *models.Site) (*models.Site, bool, error) {
	site = site.Clone()
	site.NormalizedName = normalize.Name(site.DisplayName)
	if site.NormalizedName == "" {
		return nil, false, errors.New("site display name normalizes to empty")
	}

	mu := r.lockFor(site.NormalizedName)
	mu.Lock()
	defer mu.Unlock()

	existing, err := r.store.FindByNormalizedName(ctx, site.NormalizedName)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, ErrNotFound):
		return nil, false, fmt.Errorf("lookup %q: %w", site.NormalizedName, err)
	}

	now := r.now().UTC()
	if site.ID == "" {
		site.ID = uuid.New().String()
	}
	site.CreatedAt = now
	site.UpdatedAt = now
	if site.AccreditationStatus == "" {
		site.AccreditationStatus = models.DefaultAccreditationStatus
	}

	if err := r.store.InsertSite(ctx, site); err != nil {
		if !errors.Is(err, ErrConflict) {
			return nil, false, fmt.Errorf("insert site: %w", err)
		}
		metrics.CreateConflicts.Inc()
		winner, getErr := r.store.FindByNormalizedName(ctx, site.NormalizedName)
		if getErr != nil {
			return nil, false, fmt.Errorf("read site after conflict: %w", getErr)
		}
		r.logger.Debug().Str("normalized_name", site.NormalizedName).Str("site_id", winner.ID).Msg("create conflict resolved as get")
		r.indexSite(winner)
		return winner, false, nil
	}

	r.indexSite(site)
	r.logger.Info().
		Str("site_id", site.ID).
		Str("name", site.DisplayName).
		Str("institution_type", string(site.InstitutionType)).
		Bool("geocoded", site.Coordinates != nil).
		Msg("site created")
	return site.Clone(), true, nil
}

// Update applies fn to the current stored copy of the site and persists the
// result. fn reports whether it changed anything; unchanged sites are not
// written.
func (r *Registry) Update(ctx context.Context, id string, fn func(*models.Site) bool) (*models.Site, error) {
	site, err := r.store.GetSite(ctx, id)
	if err != nil {
		return nil, err
	}

	mu := r.lockFor(site.NormalizedName)
	mu.Lock()
	defer mu.Unlock()

	// Re-read under the lock so concurrent merges don't drop each other.
	site, err = r.store.GetSite(ctx, id)
	if err != nil {
		return nil, err
	}
	if !fn(site) {
		return site, nil
	}
	site.UpdatedAt = r.now().UTC()
	if err := r.store.UpdateSite(ctx, site); err != nil {
		return nil, fmt.Errorf("update site %s: %w", id, err)
	}
	return site, nil
}

// Link records that study referenced the site and reports whether the link
// is new. References without an NCT ID are not linked.
func (r *Registry) Link(ctx context.Context, siteID string, study *models.StudyRef) (bool, error) {
	if study == nil || study.NCTID == "" {
		return false, nil
	}
	return r.store.InsertLink(ctx, models.NewSiteLink(siteID, study, r.now().UTC()))
}

// Links returns the studies linked to a site.
func (r *Registry) Links(ctx context.Context, siteID string) ([]models.SiteLink, error) {
	return r.store.ListLinks(ctx, siteID)
}

func (r *Registry) lockFor(key string) *sync.Mutex {
	mu, _ := r.locks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
