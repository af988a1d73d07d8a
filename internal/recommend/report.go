// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package recommend

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tomtom215/siteselect/internal/models"
)

// NarrativeProvider supplies free-text commentary for a recommended site.
// Its output is attached to the report entry and never feeds scoring.
type NarrativeProvider interface {
	Narrative(ctx context.Context, site *models.Site, score models.MatchScore) (string, error)
}

// Strength thresholds; a metric at or above the value is a strength.
const (
	strongCompletion    = 0.8
	strongRecruitment   = 0.7
	strongExperienceIdx = 0.6
	strongHIndex        = 15.0
	strongPublications  = 5
)

// Weakness thresholds; a metric strictly past the value is a weakness.
const (
	weakCompletion  = 0.5
	weakRecruitment = 0.4
	weakTerminated  = 0.2
	weakHIndex      = 5.0
	weakDataQuality = 0.6
)

// Metric keys in ReportEntry.Metrics.
const (
	MetricCompletionRatio       = "completion_ratio"
	MetricTerminatedRatio       = "terminated_ratio"
	MetricTotalStudies          = "total_studies"
	MetricRecruitmentEfficiency = "recruitment_efficiency"
	MetricExperienceIndex       = "experience_index"
	MetricAvgHIndex             = "avg_h_index"
	MetricRecentPublications    = "recent_publications"
	MetricDataQuality           = "data_quality_score"
)

// completion returns the completion ratio, or false when the site has no
// study history to compute it from.
func completion(m *models.SiteMetrics) (float64, bool) {
	if m == nil || m.Experience == nil || m.Experience.TotalStudies == 0 {
		return 0, false
	}
	return m.Experience.CompletionRatio, true
}

// Strengths lists the metrics that clear a strength threshold. Missing
// metrics are never strengths.
func Strengths(m *models.SiteMetrics) []string {
	out := []string{}
	if m == nil {
		return out
	}
	if v, ok := completion(m); ok && v >= strongCompletion {
		out = append(out, fmt.Sprintf("High completion ratio (%.2f)", v))
	}
	if v := m.RecruitmentEfficiency; v != nil && *v >= strongRecruitment {
		out = append(out, fmt.Sprintf("High recruitment efficiency (%.2f)", *v))
	}
	if v := m.ExperienceIndex; v != nil && *v >= strongExperienceIdx {
		out = append(out, fmt.Sprintf("High experience index (%.2f)", *v))
	}
	if v := m.AvgHIndex; v != nil && *v >= strongHIndex {
		out = append(out, fmt.Sprintf("High average investigator h-index (%.1f)", *v))
	}
	if v := m.RecentPublications; v != nil && *v >= strongPublications {
		out = append(out, fmt.Sprintf("High recent publication rate (%d)", *v))
	}
	return out
}

// Weaknesses lists the metrics that fall past a weakness threshold. Missing
// metrics are never weaknesses.
func Weaknesses(m *models.SiteMetrics) []string {
	out := []string{}
	if m == nil {
		return out
	}
	if v, ok := completion(m); ok && v < weakCompletion {
		out = append(out, fmt.Sprintf("Low completion ratio (%.2f)", v))
	}
	if v := m.RecruitmentEfficiency; v != nil && *v < weakRecruitment {
		out = append(out, fmt.Sprintf("Low recruitment efficiency (%.2f)", *v))
	}
	if m.Experience != nil && m.Experience.TotalStudies > 0 {
		if r := m.Experience.TerminatedRatio(); r > weakTerminated {
			out = append(out, fmt.Sprintf("High terminated studies ratio (%.2f)", r))
		}
	}
	if v := m.AvgHIndex; v != nil && *v < weakHIndex {
		out = append(out, fmt.Sprintf("Low average investigator h-index (%.1f)", *v))
	}
	if v := m.DataQuality; v != nil && *v < weakDataQuality {
		out = append(out, fmt.Sprintf("Low data quality score (%.2f)", *v))
	}
	return out
}

// MetricValues renders every known metric key. Keys without a value hold
// models.Unknown so consumers can tell "missing" from "zero".
func MetricValues(m *models.SiteMetrics) map[string]string {
	out := map[string]string{
		MetricCompletionRatio:       models.Unknown,
		MetricTerminatedRatio:       models.Unknown,
		MetricTotalStudies:          models.Unknown,
		MetricRecruitmentEfficiency: models.Unknown,
		MetricExperienceIndex:       models.Unknown,
		MetricAvgHIndex:             models.Unknown,
		MetricRecentPublications:    models.Unknown,
		MetricDataQuality:           models.Unknown,
	}
	if m == nil {
		return out
	}
	if e := m.Experience; e != nil {
		out[MetricTotalStudies] = strconv.Itoa(e.TotalStudies)
		if e.TotalStudies > 0 {
			out[MetricCompletionRatio] = formatRatio(e.CompletionRatio)
			out[MetricTerminatedRatio] = formatRatio(e.TerminatedRatio())
		}
	}
	setFloat(out, MetricRecruitmentEfficiency, m.RecruitmentEfficiency)
	setFloat(out, MetricExperienceIndex, m.ExperienceIndex)
	setFloat(out, MetricAvgHIndex, m.AvgHIndex)
	setFloat(out, MetricDataQuality, m.DataQuality)
	if m.RecentPublications != nil {
		out[MetricRecentPublications] = strconv.Itoa(*m.RecentPublications)
	}
	return out
}

func setFloat(out map[string]string, key string, v *float64) {
	if v != nil {
		out[key] = formatRatio(*v)
	}
}

func formatRatio(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Summarize returns the display form of a site, with blank fields rendered
// as models.Unknown.
func Summarize(site *models.Site) models.SiteSummary {
	capacity := models.Unknown
	if site.Capacity > 0 {
		capacity = strconv.Itoa(site.Capacity)
	}
	return models.SiteSummary{
		Name:                orUnknown(site.DisplayName),
		City:                orUnknown(site.City),
		Region:              orUnknown(site.Region),
		Country:             orUnknown(site.Country),
		InstitutionType:     orUnknown(string(site.InstitutionType)),
		Capacity:            capacity,
		AccreditationStatus: orUnknown(site.AccreditationStatus),
		Geocoded:            site.Coordinates != nil,
	}
}

func orUnknown(s string) string {
	if s == "" {
		return models.Unknown
	}
	return s
}

// entry builds the report entry for a shortlisted site. The boolean reports
// whether any enrichment was unavailable.
func (e *Engine) entry(ctx context.Context, c Candidate) (models.ReportEntry, bool) {
	degraded := false

	m, err := e.siteMetrics(ctx, c.Site)
	if err != nil {
		degraded = true
		e.logger.Warn().Err(err).Str("site_id", c.Site.ID).Msg("site metrics unavailable, reporting as unknown")
	}

	entry := models.ReportEntry{
		SiteID:     c.Site.ID,
		Site:       Summarize(c.Site),
		Scores:     c.Score,
		Strengths:  Strengths(m),
		Weaknesses: Weaknesses(m),
		Metrics:    MetricValues(m),
	}

	if e.narrative != nil {
		text, err := e.narrative.Narrative(ctx, c.Site, c.Score)
		if err != nil {
			degraded = true
			e.logger.Warn().Err(err).Str("site_id", c.Site.ID).Msg("narrative unavailable")
		} else {
			entry.Narrative = text
		}
	}
	return entry, degraded
}

// siteMetrics asks the metrics provider, falling back to the experience
// stored on the site. On error the fallback is still returned.
func (e *Engine) siteMetrics(ctx context.Context, site *models.Site) (*models.SiteMetrics, error) {
	fallback := &models.SiteMetrics{Experience: site.Experience}
	if e.metrics == nil {
		return fallback, nil
	}
	m, err := e.metrics.SiteMetrics(ctx, site.ID)
	if err != nil {
		return fallback, err
	}
	if m == nil {
		return fallback, nil
	}
	if m.Experience == nil {
		cp := *m
		cp.Experience = site.Experience
		m = &cp
	}
	return m, nil
}
