// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package api

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/siteselect/internal/ingest"
	"github.com/tomtom215/siteselect/internal/logging"
	"github.com/tomtom215/siteselect/internal/models"
	"github.com/tomtom215/siteselect/internal/recommend"
	"github.com/tomtom215/siteselect/internal/resolve"
)

// SiteReader reads the site registry. *registry.Registry implements it.
type SiteReader interface {
	Get(ctx context.Context, id string) (*models.Site, error)
	List(ctx context.Context) ([]*models.Site, error)
	Links(ctx context.Context, siteID string) ([]models.SiteLink, error)
	Len() int
}

// MentionProcessor resolves mentions. *ingest.Pipeline implements it.
type MentionProcessor interface {
	Run(ctx context.Context, mentions []models.FacilityMention) (ingest.Summary, error)
	Process(ctx context.Context, mention models.FacilityMention) (resolve.Result, ingest.Outcome, error)
}

// Recommender builds reports. *recommend.Engine implements it.
type Recommender interface {
	Recommend(ctx context.Context, target models.TargetStudy, sites []*models.Site) (*models.RecommendationReport, error)
	Scenarios(ctx context.Context, target models.TargetStudy, sites []*models.Site) (map[string]*models.RecommendationReport, error)
	Refine(report *models.RecommendationReport, prefs recommend.Preferences) *models.RecommendationReport
}

// Pinger reports store connectivity. *database.DB implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators a Handler serves.
type Dependencies struct {
	Sites     SiteReader
	Mentions  MentionProcessor
	Engine    Recommender
	Store     Pinger // optional; nil for the in-memory backend
	Degraded  func() bool
	Transport string // ingest transport name, reported by /health
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_health.go: /health
//   - handlers_mentions.go: mention resolution
//   - handlers_sites.go: registry reads
//   - handlers_recommend.go: reports and scenarios
type Handler struct {
	deps         Dependencies
	startTime    time.Time
	timeout      time.Duration
	maxBatchSize int
	logger       zerolog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithRequestTimeout bounds the work done for one request.
func WithRequestTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithMaxBatchSize caps the number of mentions in one POST.
func WithMaxBatchSize(n int) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBatchSize = n
		}
	}
}

// NewHandler creates a new API handler.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHandler(deps Dependencies, logger zerolog.Logger, opts ...HandlerOption) (*Handler, error) {
	switch {
	case deps.Sites == nil:
		return nil, errors.New("api: site reader is required")
	case deps.Mentions == nil:
		return nil, errors.New("api: mention processor is required")
	case deps.Engine == nil:
		return nil, errors.New("api: recommender is required")
	}
	if deps.Degraded == nil {
		deps.Degraded = func() bool { return false }
	}

	h := &Handler{
		deps:         deps,
		startTime:    time.Now(),
		timeout:      30 * time.Second,
		maxBatchSize: 10000,
		logger:       logging.Component(logger, "api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}
