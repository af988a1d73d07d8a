// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/siteselect/internal/ingest"
	"github.com/tomtom215/siteselect/internal/models"
	"github.com/tomtom215/siteselect/internal/resolve"
)

// ResolveMentions handles POST /api/v1/mentions.
//
// A JSON object is resolved as one mention and answers with the resolve
// result: 201 when a site was created, 200 when it matched an existing one.
// A JSON array is resolved as a batch and answers 200 with an ingest summary;
// bad records are counted there instead of failing the request.
func (h *Handler) ResolveMentions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var raw json.RawMessage
	if err := decodeJSON(w, r, &raw); err != nil {
		h.respondError(w, r, http.StatusBadRequest, CodeInvalidJSON, "Request body must be a mention object or an array of mentions", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		h.resolveBatch(ctx, w, r, trimmed, start)
		return
	}

	var mention models.FacilityMention
	if err := json.Unmarshal(raw, &mention); err != nil {
		h.respondError(w, r, http.StatusBadRequest, CodeInvalidJSON, "Invalid mention", err)
		return
	}

	result, outcome, err := h.deps.Mentions.Process(ctx, mention)
	if err != nil {
		message := "Mention not accepted"
		if outcome == ingest.OutcomeFailed {
			message = "Failed to resolve mention"
		}
		h.respondDomainError(w, r, message, err)
		return
	}

	status := http.StatusOK
	if result.Method == resolve.MethodCreated {
		status = http.StatusCreated
	}
	h.respondSuccess(w, r, status, result, start)
}

func (h *Handler) resolveBatch(ctx context.Context, w http.ResponseWriter, r *http.Request, raw []byte, start time.Time) {
	var mentions []models.FacilityMention
	if err := json.Unmarshal(raw, &mentions); err != nil {
		h.respondError(w, r, http.StatusBadRequest, CodeInvalidJSON, "Invalid mention array", err)
		return
	}
	if len(mentions) > h.maxBatchSize {
		h.respondError(w, r, http.StatusRequestEntityTooLarge, CodeValidation,
			fmt.Sprintf("Batch holds %d mentions; the limit is %d", len(mentions), h.maxBatchSize), nil)
		return
	}

	summary, err := h.deps.Mentions.Run(ctx, mentions)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			h.respondError(w, r, http.StatusGatewayTimeout, CodeTimeout,
				fmt.Sprintf("Timed out after %d of %d mentions", summary.Processed, len(mentions)), err)
			return
		}
		h.respondDomainError(w, r, "Batch interrupted", err)
		return
	}
	h.respondSuccess(w, r, http.StatusOK, summary, start)
}
