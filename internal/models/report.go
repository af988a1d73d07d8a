// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package models

import "time"

// Tier is a recommendation bucket. Tiers partition the shortlist by overall score.
type Tier string

const (
	TierPrimary   Tier = "primary"
	TierSecondary Tier = "secondary"
	TierTertiary  Tier = "tertiary"
)

// AllTiers lists tiers from best to worst.
var AllTiers = []Tier{TierPrimary, TierSecondary, TierTertiary}

// RecommendationReport is the engine's output for one target study.
type RecommendationReport struct {
	TargetStudy TargetStudy            `json:"target_study"`
	Scenario    string                 `json:"scenario,omitempty"` // empty for the base report
	GeneratedAt time.Time              `json:"generated_at"`
	Tiers       map[Tier][]ReportEntry `json:"tiers"`

	Considered  int  `json:"sites_considered"`  // candidates passed in
	Eligible    int  `json:"sites_eligible"`    // after eligibility rules
	Shortlisted int  `json:"sites_shortlisted"` // after diversification
	Excluded    int  `json:"sites_below_tiers"` // shortlisted but under every threshold
	Failed      int  `json:"sites_failed,omitempty"`
	Degraded    bool `json:"degraded,omitempty"` // some enrichment or scoring input was unavailable
}

// NewRecommendationReport returns a report with every tier present and empty,
// so consumers never see a missing key.
func NewRecommendationReport(target TargetStudy, at time.Time) *RecommendationReport {
	tiers := make(map[Tier][]ReportEntry, len(AllTiers))
	for _, t := range AllTiers {
		tiers[t] = []ReportEntry{}
	}
	return &RecommendationReport{TargetStudy: target, GeneratedAt: at, Tiers: tiers}
}

// Total returns the number of entries across all tiers.
func (r *RecommendationReport) Total() int {
	n := 0
	for _, entries := range r.Tiers {
		n += len(entries)
	}
	return n
}

// ReportEntry is one recommended site.
type ReportEntry struct {
	SiteID     string            `json:"site_id"`
	Site       SiteSummary       `json:"site_info"`
	Scores     MatchScore        `json:"match_scores"`
	Strengths  []string          `json:"strengths"`
	Weaknesses []string          `json:"weaknesses"`
	Metrics    map[string]string `json:"metrics"` // absent values are Unknown
	Narrative  string            `json:"narrative"`
}

// SiteSummary is the display form of a site. Blank fields hold Unknown.
type SiteSummary struct {
	Name                string `json:"name"`
	City                string `json:"city"`
	Region              string `json:"region"`
	Country             string `json:"country"`
	InstitutionType     string `json:"institution_type"`
	Capacity            string `json:"capacity"`
	AccreditationStatus string `json:"accreditation_status"`
	Geocoded            bool   `json:"geocoded"`
}
