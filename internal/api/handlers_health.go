// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/siteselect/internal/resolve"
)

// HealthStatus is the /health payload.
type HealthStatus struct {
	Status          string  `json:"status"` // healthy or degraded
	ResolverMode    string  `json:"resolver_mode"`
	StoreConnected  bool    `json:"store_connected"`
	Sites           int     `json:"sites"`
	IngestTransport string  `json:"ingest_transport,omitempty"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

// Health handles GET /health. It answers 200 whenever the process is up;
// Status is "degraded" when similarity matching is off or the store does
// not answer a ping.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	storeOK := true
	if h.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		storeOK = h.deps.Store.Ping(ctx) == nil
		cancel()
	}

	mode := string(resolve.ModeFuzzy)
	degraded := h.deps.Degraded()
	if degraded {
		mode = string(resolve.ModeExactOnly)
	}

	status := "healthy"
	if degraded || !storeOK {
		status = "degraded"
	}

	h.respondSuccess(w, r, http.StatusOK, HealthStatus{
		Status:          status,
		ResolverMode:    mode,
		StoreConnected:  storeOK,
		Sites:           h.deps.Sites.Len(),
		IngestTransport: h.deps.Transport,
		UptimeSeconds:   time.Since(h.startTime).Seconds(),
	}, start)
}
