// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/siteselect/internal/models"
	"github.com/tomtom215/siteselect/internal/recommend"
)

// RecommendationRequest is the body of both recommendation endpoints.
type RecommendationRequest struct {
	Target      models.TargetStudy     `json:"target_study"`
	Preferences *recommend.Preferences `json:"preferences,omitempty"`
}

// Recommend handles POST /api/v1/recommendations.
//
// Every registered site is scored against the target study. Preferences,
// when given, narrow the finished report without rescoring.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req, sites, ok := h.recommendationInput(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	report, err := h.deps.Engine.Recommend(ctx, req.Target, sites)
	if err != nil {
		h.respondDomainError(w, r, "Failed to generate recommendations", err)
		return
	}
	if req.Preferences != nil {
		report = h.deps.Engine.Refine(report, *req.Preferences)
	}

	h.respondSuccess(w, r, http.StatusOK, report, start)
}

// Scenarios handles POST /api/v1/recommendations/scenarios. The response
// maps scenario name (base, conservative, aggressive) to its report.
func (h *Handler) Scenarios(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req, sites, ok := h.recommendationInput(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	reports, err := h.deps.Engine.Scenarios(ctx, req.Target, sites)
	if err != nil {
		h.respondDomainError(w, r, "Failed to generate scenarios", err)
		return
	}
	if req.Preferences != nil {
		for name, report := range reports {
			reports[name] = h.deps.Engine.Refine(report, *req.Preferences)
		}
	}

	h.respondSuccess(w, r, http.StatusOK, reports, start)
}

// recommendationInput decodes the request and loads the candidate sites.
// On failure it has already responded.
func (h *Handler) recommendationInput(w http.ResponseWriter, r *http.Request) (RecommendationRequest, []*models.Site, bool) {
	var req RecommendationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, CodeInvalidJSON, "Request body must be a JSON object with a target_study", err)
		return req, nil, false
	}

	sites, err := h.deps.Sites.List(r.Context())
	if err != nil {
		h.respondDomainError(w, r, "Failed to load sites", err)
		return req, nil, false
	}
	return req, sites, true
}
