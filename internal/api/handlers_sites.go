// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/siteselect/internal/models"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// SiteList is the GET /api/v1/sites payload.
type SiteList struct {
	Sites  []*models.Site `json:"sites"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// SiteDetail is the GET /api/v1/sites/{id} payload.
type SiteDetail struct {
	Site  *models.Site      `json:"site"`
	Links []models.SiteLink `json:"links"`
}

// ListSites handles GET /api/v1/sites.
//
// Query parameters: country (case-insensitive exact match), limit (default
// 100, max 1000) and offset. Sites are ordered by creation time.
func (h *Handler) ListSites(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	limit := getIntParam(r, "limit", defaultPageSize)
	offset := getIntParam(r, "offset", 0)
	if limit < 1 || limit > maxPageSize || offset < 0 {
		h.respondError(w, r, http.StatusBadRequest, CodeValidation, "limit must be 1-1000 and offset non-negative", nil)
		return
	}

	sites, err := h.deps.Sites.List(r.Context())
	if err != nil {
		h.respondDomainError(w, r, "Failed to list sites", err)
		return
	}

	if country := strings.TrimSpace(r.URL.Query().Get("country")); country != "" {
		filtered := make([]*models.Site, 0, len(sites))
		for _, s := range sites {
			if strings.EqualFold(s.Country, country) {
				filtered = append(filtered, s)
			}
		}
		sites = filtered
	}

	total := len(sites)
	page := []*models.Site{}
	if offset < total {
		page = sites[offset:min(offset+limit, total)]
	}

	h.respondSuccess(w, r, http.StatusOK, SiteList{
		Sites:  page,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, start)
}

// GetSite handles GET /api/v1/sites/{id}.
func (h *Handler) GetSite(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")

	site, err := h.deps.Sites.Get(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, r, "Failed to load site", err)
		return
	}

	links, err := h.deps.Sites.Links(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, r, "Failed to load site links", err)
		return
	}
	if links == nil {
		links = []models.SiteLink{}
	}

	h.respondSuccess(w, r, http.StatusOK, SiteDetail{Site: site, Links: links}, start)
}
