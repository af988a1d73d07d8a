// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tomtom215/siteselect/internal/models"
	"github.com/tomtom215/siteselect/internal/registry"
	"github.com/tomtom215/siteselect/internal/resolve"
	"github.com/tomtom215/siteselect/internal/validation"
)

func TestSanitizeLogValue(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"line\nbreak", `line\x0abreak`},
		{"tab\there", `tab\x09here`},
		{"del\x7f", `del\x7f`},
		{"Hôpital", "Hôpital"},
	}
	for _, tt := range tests {
		if got := sanitizeLogValue(tt.in); got != tt.want {
			t.Errorf("sanitizeLogValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	verr := validation.Validate(&models.FacilityMention{})
	if verr == nil {
		t.Fatal("empty mention should fail validation")
	}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", fmt.Errorf("wrap: %w", verr), http.StatusBadRequest, CodeValidation},
		{"not found", fmt.Errorf("site x: %w", registry.ErrNotFound), http.StatusNotFound, CodeNotFound},
		{"rejected", fmt.Errorf("%w: numeric", resolve.ErrRejectedMention), http.StatusUnprocessableEntity, CodeMentionRejected},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := classify(tt.err)
			if status != tt.wantStatus || code != tt.wantCode {
				t.Errorf("classify() = (%d, %s), want (%d, %s)", status, code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantEmpty bool
		wantErr   bool
	}{
		{"object", `{"name":"Mayo Clinic"}`, false, false},
		{"empty", "", true, true},
		{"whitespace", "  \n\t", true, true},
		{"malformed", `{"name"`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst models.FacilityMention
			err := decodeJSON(httptest.NewRecorder(), r, &dst)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if errors.Is(err, ErrEmptyBody) != tt.wantEmpty {
				t.Errorf("errors.Is(ErrEmptyBody) = %v, want %v", !tt.wantEmpty, tt.wantEmpty)
			}
			if err == nil && dst.Name != "Mayo Clinic" {
				t.Errorf("Name = %q", dst.Name)
			}
		})
	}
}

func TestGetIntParam(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=25&offset=abc", http.NoBody)
	if got := getIntParam(r, "limit", 100); got != 25 {
		t.Errorf("limit = %d, want 25", got)
	}
	if got := getIntParam(r, "offset", 7); got != 7 {
		t.Errorf("unparseable offset = %d, want default 7", got)
	}
	if got := getIntParam(r, "missing", 3); got != 3 {
		t.Errorf("missing = %d, want 3", got)
	}
}

func TestGenerateETag_Stable(t *testing.T) {
	a := generateETag([]byte(`{"a":1}`))
	if a != generateETag([]byte(`{"a":1}`)) {
		t.Error("ETag not deterministic")
	}
	if a == generateETag([]byte(`{"a":2}`)) {
		t.Error("different payloads share an ETag")
	}
}
