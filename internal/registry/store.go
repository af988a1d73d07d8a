// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package registry

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/tomtom215/siteselect/internal/models"
)

var (
	// ErrNotFound is returned when no site matches the lookup.
	ErrNotFound = errors.New("site not found")

	// ErrConflict is returned by InsertSite when the normalized name is
	// already taken. The registry treats it as "someone else created it".
	ErrConflict = errors.New("site with this normalized name already exists")
)

// Store persists sites and their study links. Implementations must enforce
// uniqueness of Site.NormalizedName at insert time and return ErrConflict
// on violation; that constraint is what makes create-or-get safe across
// processes sharing one store.
type Store interface {
	InsertSite(ctx context.Context, site *models.Site) error
	UpdateSite(ctx context.Context, site *models.Site) error
	GetSite(ctx context.Context, id string) (*models.Site, error)
	FindByNormalizedName(ctx context.Context, normalizedName string) (*models.Site, error)
	ListSites(ctx context.Context) ([]*models.Site, error)

	// InsertLink records a link and reports whether it was new. A repeated
	// (site, study) pair is not an error.
	InsertLink(ctx context.Context, link models.SiteLink) (bool, error)
	ListLinks(ctx context.Context, siteID string) ([]models.SiteLink, error)
}

// MemoryStore is a Store kept in process memory. Sites are copied on the way
// in and out so callers never share mutable state with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*models.Site
	byName map[string]string // normalized name -> id
	links  map[string][]models.SiteLink
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*models.Site),
		byName: make(map[string]string),
		links:  make(map[string][]models.SiteLink),
	}
}

func (s *MemoryStore) InsertSite(ctx context.Context, site *models.Site) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[site.NormalizedName]; ok {
		return ErrConflict
	}
	if _, ok := s.byID[site.ID]; ok {
		return ErrConflict
	}
	s.byID[site.ID] = site.Clone()
	s.byName[site.NormalizedName] = site.ID
	return nil
}

func (s *MemoryStore) UpdateSite(ctx context.Context, site *models.Site) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[site.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.NormalizedName != site.NormalizedName {
		if _, taken := s.byName[site.NormalizedName]; taken {
			return ErrConflict
		}
		delete(s.byName, existing.NormalizedName)
		s.byName[site.NormalizedName] = site.ID
	}
	s.byID[site.ID] = site.Clone()
	return nil
}

func (s *MemoryStore) GetSite(ctx context.Context, id string) (*models.Site, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	site, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return site.Clone(), nil
}

func (s *MemoryStore) FindByNormalizedName(ctx context.Context, normalizedName string) (*models.Site, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[normalizedName]
	if !ok {
		return nil, ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

// ListSites returns every site ordered by creation time, then ID.
func (s *MemoryStore) ListSites(ctx context.Context) ([]*models.Site, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]*models.Site, 0, len(s.byID))
	for _, site := range s.byID {
		out = append(out, site.Clone())
	}
	s.mu.RUnlock()

	SortByCreation(out)
	return out, nil
}

// InsertLink records a site/study link. Duplicate (site, study) pairs are
// ignored.
func (s *MemoryStore) InsertLink(ctx context.Context, link models.SiteLink) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[link.SiteID]; !ok {
		return false, ErrNotFound
	}
	for _, l := range s.links[link.SiteID] {
		if l.NCTID == link.NCTID {
			return false, nil
		}
	}
	s.links[link.SiteID] = append(s.links[link.SiteID], link)
	return true, nil
}

func (s *MemoryStore) ListLinks(ctx context.Context, siteID string) ([]models.SiteLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.SiteLink(nil), s.links[siteID]...), nil
}

// SortByCreation orders sites by CreatedAt, then ID.
func SortByCreation(sites []*models.Site) {
	sort.SliceStable(sites, func(i, j int) bool {
		if !sites[i].CreatedAt.Equal(sites[j].CreatedAt) {
			return sites[i].CreatedAt.Before(sites[j].CreatedAt)
		}
		return sites[i].ID < sites[j].ID
	})
}
