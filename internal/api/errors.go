// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/siteselect/internal/registry"
	"github.com/tomtom215/siteselect/internal/resolve"
	"github.com/tomtom215/siteselect/internal/validation"
)

// Error codes returned in APIError.Code.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeInvalidJSON      = "INVALID_JSON"
	CodeNotFound         = "NOT_FOUND"
	CodeMentionRejected  = "MENTION_REJECTED"
	CodeTimeout          = "TIMEOUT"
	CodeInternal         = "INTERNAL_ERROR"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeRateLimited      = "RATE_LIMIT_EXCEEDED"
)

// ErrEmptyBody is returned when a POST arrives without a payload.
var ErrEmptyBody = errors.New("request body is empty")

// classify maps a domain error to an HTTP status and error code.
func classify(err error) (int, string) {
	var verr *validation.RequestValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, resolve.ErrRejectedMention):
		return http.StatusUnprocessableEntity, CodeMentionRejected
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
