// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package scoring

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/tomtom215/siteselect/internal/models"
)

// ErrDuplicateScore is returned when a score ID is inserted twice.
var ErrDuplicateScore = errors.New("score already stored")

// ScoreStore persists match scores. Scores are append-only.
type ScoreStore interface {
	InsertScore(ctx context.Context, score models.MatchScore) error
	// ListScores returns the scores for a site, oldest first.
	ListScores(ctx context.Context, siteID string) ([]models.MatchScore, error)
}

// MemoryScoreStore keeps scores in memory.
type MemoryScoreStore struct {
	mu     sync.RWMutex
	ids    map[string]struct{}
	bySite map[string][]models.MatchScore
}

var _ ScoreStore = (*MemoryScoreStore)(nil)

// NewMemoryScoreStore creates an empty store.
func NewMemoryScoreStore() *MemoryScoreStore {
	return &MemoryScoreStore{
		ids:    make(map[string]struct{}),
		bySite: make(map[string][]models.MatchScore),
	}
}

func (m *MemoryScoreStore) InsertScore(ctx context.Context, score models.MatchScore) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ids[score.ID]; ok {
		return ErrDuplicateScore
	}
	m.ids[score.ID] = struct{}{}
	m.bySite[score.SiteID] = append(m.bySite[score.SiteID], score)
	return nil
}

func (m *MemoryScoreStore) ListScores(ctx context.Context, siteID string) ([]models.MatchScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := append([]models.MatchScore(nil), m.bySite[siteID]...)
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ComputedAt.Before(out[j].ComputedAt)
	})
	return out, nil
}

// Count returns the number of stored scores.
func (m *MemoryScoreStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}
