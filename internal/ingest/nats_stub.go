// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

//go:build !nats

package ingest

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/siteselect/internal/config"
)

// newNATSBus is unavailable without the nats build tag.
// Build with -tags=nats to enable the JetStream transport.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func newNATSBus(_ config.IngestConfig, _ zerolog.Logger) (*Bus, error) {
	return nil, fmt.Errorf("NATS ingest transport not available: build with -tags=nats")
}
