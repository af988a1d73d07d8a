// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package recommend

import (
	"testing"

	"github.com/tomtom215/siteselect/internal/models"
)

func TestThresholds_Tier(t *testing.T) {
	th := DefaultConfig().Thresholds

	tests := []struct {
		score     float64
		want      models.Tier
		inAnyTier bool
	}{
		{1.0, models.TierPrimary, true},
		{0.85, models.TierPrimary, true},
		{0.8, models.TierPrimary, true},
		{0.79, models.TierSecondary, true},
		{0.6, models.TierSecondary, true},
		{0.55, models.TierTertiary, true},
		{0.4, models.TierTertiary, true},
		{0.35, "", false},
		{0, "", false},
	}
	for _, tt := range tests {
		got, ok := th.Tier(tt.score)
		if got != tt.want || ok != tt.inAnyTier {
			t.Errorf("Tier(%v) = %q, %v; want %q, %v", tt.score, got, ok, tt.want, tt.inAnyTier)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero max sites", func(c *Config) { c.MaxSites = 0 }, true},
		{"zero min countries", func(c *Config) { c.MinCountries = 0 }, true},
		{"unordered", func(c *Config) { c.Thresholds.Secondary = 0.9 }, true},
		{"above one", func(c *Config) { c.Thresholds.Primary = 1.2 }, true},
		{"negative", func(c *Config) { c.Thresholds.Tertiary = -0.1 }, true},
		{"equal thresholds", func(c *Config) { c.Thresholds = Thresholds{0.5, 0.5, 0.5} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
