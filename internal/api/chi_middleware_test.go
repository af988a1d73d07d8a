// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/siteselect/internal/config"
	"github.com/tomtom215/siteselect/internal/logging"
)

func TestDefaultChiMiddlewareConfig(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()

	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Errorf("CORSAllowedOrigins = %v, want empty", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitRequests != 100 {
		t.Errorf("RateLimitRequests = %d, want 100", cfg.RateLimitRequests)
	}
	if cfg.RateLimitWindow != time.Minute {
		t.Errorf("RateLimitWindow = %v, want 1m", cfg.RateLimitWindow)
	}
	if cfg.RateLimitDisabled {
		t.Error("rate limiting should be enabled by default")
	}
}

func TestChiMiddlewareConfigFromServer(t *testing.T) {
	tests := []struct {
		name         string
		server       config.ServerConfig
		wantOrigins  int
		wantRequests int
		wantWindow   time.Duration
		wantDisabled bool
	}{
		{
			name:         "configured",
			server:       config.ServerConfig{RateLimitReqs: 20, RateLimitWindow: 10 * time.Second, CORSOrigins: []string{"https://a.example"}},
			wantOrigins:  1,
			wantRequests: 20,
			wantWindow:   10 * time.Second,
		},
		{
			name:         "zero window keeps default",
			server:       config.ServerConfig{RateLimitReqs: 5},
			wantRequests: 5,
			wantWindow:   time.Minute,
		},
		{
			name:         "zero budget disables",
			server:       config.ServerConfig{},
			wantWindow:   time.Minute,
			wantDisabled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ChiMiddlewareConfigFromServer(tt.server)
			if len(cfg.CORSAllowedOrigins) != tt.wantOrigins {
				t.Errorf("origins = %v", cfg.CORSAllowedOrigins)
			}
			if cfg.RateLimitRequests != tt.wantRequests {
				t.Errorf("RateLimitRequests = %d, want %d", cfg.RateLimitRequests, tt.wantRequests)
			}
			if cfg.RateLimitWindow != tt.wantWindow {
				t.Errorf("RateLimitWindow = %v, want %v", cfg.RateLimitWindow, tt.wantWindow)
			}
			if cfg.RateLimitDisabled != tt.wantDisabled {
				t.Errorf("RateLimitDisabled = %v, want %v", cfg.RateLimitDisabled, tt.wantDisabled)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	mw := DefaultChiMiddlewareConfig()
	mw.RateLimitRequests = 2
	mw.RateLimitWindow = time.Minute
	s := newTestStack(t, mw, nil)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sites", http.NoBody)
		req.RemoteAddr = "192.0.2.10:4000"
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d status = %d, want %d", i+1, codes[i], want[i])
		}
	}

	// Another client has its own budget.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sites", http.NoBody)
	req.RemoteAddr = "192.0.2.11:4000"
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("second client status = %d, want 200", rec.Code)
	}

	// Health is outside the limited group.
	req = httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	req.RemoteAddr = "192.0.2.10:4000"
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	mw := DefaultChiMiddlewareConfig()
	mw.CORSAllowedOrigins = []string{"https://app.example"}
	mw.RateLimitDisabled = true
	s := newTestStack(t, mw, nil)

	tests := []struct {
		name       string
		origin     string
		wantHeader string
	}{
		{"allowed origin", "https://app.example", "https://app.example"},
		{"foreign origin", "https://evil.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/recommendations", http.NoBody)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantHeader {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantHeader)
			}
		})
	}
}

func TestRequestIDWithLogging_Context(t *testing.T) {
	var gotRequestID, gotCorrelationID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequestID = logging.RequestIDFromContext(r.Context())
		gotCorrelationID = logging.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	RequestIDWithLogging()(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if gotRequestID == "" {
		t.Error("request ID missing from context")
	}
	if gotCorrelationID == "" {
		t.Error("correlation ID missing from context")
	}
	if rec.Header().Get("X-Request-ID") != gotRequestID {
		t.Errorf("header %q != context %q", rec.Header().Get("X-Request-ID"), gotRequestID)
	}
}
