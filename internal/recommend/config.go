// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package recommend

import (
	"errors"
	"fmt"

	"github.com/tomtom215/siteselect/internal/models"
)

// Config controls shortlist size, diversity and tiering.
type Config struct {
	// MaxSites caps the diversified shortlist.
	MaxSites int `json:"max_sites"`

	// MinCountries is the number of distinct countries the shortlist tries
	// to reach before it stops favouring new countries.
	MinCountries int `json:"min_countries"`

	// Thresholds are the inclusive lower bounds of each tier.
	Thresholds Thresholds `json:"thresholds"`
}

// Thresholds are the minimum overall scores for each tier.
type Thresholds struct {
	Primary   float64 `json:"primary"`
	Secondary float64 `json:"secondary"`
	Tertiary  float64 `json:"tertiary"`
}

// DefaultConfig returns the documented defaults: 10 sites, 3 countries,
// tiers at 0.8, 0.6 and 0.4.
func DefaultConfig() Config {
	return Config{
		MaxSites:     10,
		MinCountries: 3,
		Thresholds: Thresholds{
			Primary:   0.8,
			Secondary: 0.6,
			Tertiary:  0.4,
		},
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.MaxSites <= 0 {
		return errors.New("max_sites must be positive")
	}
	if c.MinCountries < 1 {
		return errors.New("min_countries must be at least 1")
	}
	t := c.Thresholds
	if t.Tertiary < 0 || t.Primary > 1 {
		return fmt.Errorf("thresholds must lie in [0, 1], got %.2f..%.2f", t.Tertiary, t.Primary)
	}
	if t.Primary < t.Secondary || t.Secondary < t.Tertiary {
		return fmt.Errorf("thresholds must be ordered primary >= secondary >= tertiary, got %.2f/%.2f/%.2f",
			t.Primary, t.Secondary, t.Tertiary)
	}
	return nil
}

// Tier returns the tier for an overall score. The boolean is false when the
// score is below every threshold.
func (t Thresholds) Tier(overall float64) (models.Tier, bool) {
	switch {
	case overall >= t.Primary:
		return models.TierPrimary, true
	case overall >= t.Secondary:
		return models.TierSecondary, true
	case overall >= t.Tertiary:
		return models.TierTertiary, true
	default:
		return "", false
	}
}
