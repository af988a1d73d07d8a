// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/siteselect/internal/models"
)

// AggregateExperience summarizes a site's trial history. Status counts match
// by substring, so "COMPLETED" and "Completed early" both count as completed.
// Durations only use studies with both dates, start not after completion.
func AggregateExperience(studies []models.StudyRef) models.SiteExperience {
	exp := models.SiteExperience{TotalStudies: len(studies)}
	if len(studies) == 0 {
		return exp
	}

	var durationSum float64
	var dated int
	for i := range studies {
		s := &studies[i]
		status := strings.ToLower(s.OverallStatus)
		switch {
		case strings.Contains(status, "completed"):
			exp.Completed++
		case strings.Contains(status, "terminated"):
			exp.Terminated++
		case strings.Contains(status, "withdrawn"):
			exp.Withdrawn++
		}

		if s.Enrollment > 0 {
			exp.TotalEnrollment += s.Enrollment
		}
		if s.StartDate != nil && s.CompletionDate != nil && !s.CompletionDate.Before(*s.StartDate) {
			durationSum += s.CompletionDate.Sub(*s.StartDate).Hours() / 24
			dated++
		}
	}

	n := float64(exp.TotalStudies)
	exp.AvgEnrollment = float64(exp.TotalEnrollment) / n
	exp.CompletionRatio = float64(exp.Completed) / n
	if dated > 0 {
		exp.AvgDurationDays = durationSum / float64(dated)
	}
	return exp
}

// ExperienceMultiplier is the adjustment applied to an overall score:
// (0.8 + 0.4*completion) * min(1.2, 1 + studies/100). It ranges from 0.8 to
// 1.44 and is 1 for a nil or empty history.
func ExperienceMultiplier(exp *models.SiteExperience) float64 {
	if exp == nil || exp.TotalStudies == 0 {
		return 1
	}
	completion := 0.8 + 0.4*clamp01(exp.CompletionRatio)
	volume := min(1.2, 1+float64(exp.TotalStudies)/100)
	return completion * volume
}

// MetricsProvider supplies per-site performance metrics. Nil fields in the
// result mean the provider has no value.
type MetricsProvider interface {
	SiteMetrics(ctx context.Context, siteID string) (*models.SiteMetrics, error)
}

// LinkSource lists the study links recorded for a site.
type LinkSource interface {
	Links(ctx context.Context, siteID string) ([]models.SiteLink, error)
}

// LinkMetrics derives experience metrics from a site's study links. It has
// no investigator or publication data, so those fields stay nil.
type LinkMetrics struct {
	Source LinkSource
}

var _ MetricsProvider = LinkMetrics{}

// SiteMetrics implements MetricsProvider.
func (m LinkMetrics) SiteMetrics(ctx context.Context, siteID string) (*models.SiteMetrics, error) {
	links, err := m.Source.Links(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("list links for %s: %w", siteID, err)
	}
	studies := make([]models.StudyRef, len(links))
	for i, l := range links {
		studies[i] = l.Study()
	}
	exp := AggregateExperience(studies)
	return &models.SiteMetrics{Experience: &exp}, nil
}
