// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package models

import "time"

// MatchScore is the compatibility of one site with one target study.
// Every factor and Overall lie in [0, 1]. Stored scores are never edited;
// rescoring inserts a new record.
type MatchScore struct {
	ID            string    `json:"score_id"`
	SiteID        string    `json:"site_id"`
	TargetStudyID string    `json:"target_study_id"`
	Therapeutic   float64   `json:"therapeutic"`
	Phase         float64   `json:"phase"`
	Intervention  float64   `json:"intervention"`
	Geographic    float64   `json:"geographic"`
	Overall       float64   `json:"overall_score"`
	Adjusted      bool      `json:"experience_adjusted,omitempty"` // Overall includes the experience multiplier
	ComputedAt    time.Time `json:"computed_at"`
}

// SiteExperience is a site's aggregated trial history.
type SiteExperience struct {
	TotalStudies    int     `json:"total_studies"`
	Completed       int     `json:"completed_studies"`
	Terminated      int     `json:"terminated_studies"`
	Withdrawn       int     `json:"withdrawn_studies"`
	TotalEnrollment int     `json:"total_enrollment"`
	AvgEnrollment   float64 `json:"avg_enrollment"`
	AvgDurationDays float64 `json:"avg_enrollment_duration_days"`
	CompletionRatio float64 `json:"completion_ratio"`
}

// TerminatedRatio is Terminated / TotalStudies, or 0 with no history.
func (e *SiteExperience) TerminatedRatio() float64 {
	if e == nil || e.TotalStudies == 0 {
		return 0
	}
	return float64(e.Terminated) / float64(e.TotalStudies)
}

// SiteMetrics is what the metrics collaborator knows about a site. Each field
// is nil when the collaborator has no value for it.
type SiteMetrics struct {
	Experience            *SiteExperience `json:"experience,omitempty"`
	RecruitmentEfficiency *float64        `json:"recruitment_efficiency,omitempty"`
	ExperienceIndex       *float64        `json:"experience_index,omitempty"`
	AvgHIndex             *float64        `json:"avg_h_index,omitempty"`
	RecentPublications    *int            `json:"recent_publications,omitempty"`
	DataQuality           *float64        `json:"data_quality_score,omitempty"`
}
