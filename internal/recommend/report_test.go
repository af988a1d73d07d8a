// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package recommend

import (
	"strings"
	"testing"

	"github.com/tomtom215/siteselect/internal/models"
)

func f64(v float64) *float64 { return &v }
func intp(v int) *int { return &v }

func TestStrengthsAndWeaknesses(t *testing.T) {
	tests := []struct {
		name          string
		metrics       *models.SiteMetrics
		wantStrengths []string
		wantWeak      []string
	}{
		{
			name:    "nil metrics",
			metrics: nil,
		},
		{
			name: "strong site",
			metrics: &models.SiteMetrics{
				Experience:            &models.SiteExperience{TotalStudies: 10, Completed: 9, CompletionRatio: 0.9},
				RecruitmentEfficiency: f64(0.7),
				ExperienceIndex:       f64(0.65),
				AvgHIndex:             f64(15),
				RecentPublications:    intp(5),
			},
			wantStrengths: []string{"completion", "recruitment", "experience index", "h-index", "publication"},
		},
		{
			name: "weak site",
			metrics: &models.SiteMetrics{
				Experience:            &models.SiteExperience{TotalStudies: 10, Completed: 3, Terminated: 3, CompletionRatio: 0.3},
				RecruitmentEfficiency: f64(0.2),
				AvgHIndex:             f64(2),
				DataQuality:           f64(0.5),
			},
			wantWeak: []string{"completion", "recruitment", "terminated", "h-index", "data quality"},
		},
		{
			name: "boundaries are neither",
			metrics: &models.SiteMetrics{
				Experience:            &models.SiteExperience{TotalStudies: 5, Completed: 3, Terminated: 1, CompletionRatio: 0.5},
				RecruitmentEfficiency: f64(0.4),
				AvgHIndex:             f64(5),
				DataQuality:           f64(0.6),
			},
		},
		{
			name: "no history means no completion verdict",
			metrics: &models.SiteMetrics{
				Experience: &models.SiteExperience{},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkMentions(t, "Strengths", Strengths(tt.metrics), tt.wantStrengths)
			checkMentions(t, "Weaknesses", Weaknesses(tt.metrics), tt.wantWeak)
		})
	}
}

func checkMentions(t *testing.T, label string, got, want []string) {
	t.Helper()
	if got == nil {
		t.Errorf("%s() = nil, want non-nil slice", label)
	}
	if len(got) != len(want) {
		t.Fatalf("%s() = %q, want %d entries", label, got, len(want))
	}
	for i, w := range want {
		if !strings.Contains(got[i], w) {
			t.Errorf("%s()[%d] = %q, want it to mention %q", label, i, got[i], w)
		}
	}
}

func TestMetricValues(t *testing.T) {
	all := MetricValues(nil)
	if len(all) != 8 {
		t.Fatalf("MetricValues(nil) has %d keys, want 8", len(all))
	}
	for k, v := range all {
		if v != models.Unknown {
			t.Errorf("MetricValues(nil)[%s] = %q, want %q", k, v, models.Unknown)
		}
	}

	got := MetricValues(&models.SiteMetrics{
		Experience:         &models.SiteExperience{TotalStudies: 4, Completed: 3, Terminated: 1, CompletionRatio: 0.75},
		AvgHIndex:          f64(12.5),
		RecentPublications: intp(0),
	})
	want := map[string]string{
		MetricTotalStudies:          "4",
		MetricCompletionRatio:       "0.75",
		MetricTerminatedRatio:       "0.25",
		MetricAvgHIndex:             "12.50",
		MetricRecentPublications:    "0",
		MetricRecruitmentEfficiency: models.Unknown,
		MetricExperienceIndex:       models.Unknown,
		MetricDataQuality:           models.Unknown,
	}
	for k, w := range want {
		if got[k] != w {
			t.Errorf("MetricValues()[%s] = %q, want %q", k, got[k], w)
		}
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize(&models.Site{DisplayName: "Mayo Clinic", Country: "United States"})
	want := models.SiteSummary{
		Name:                "Mayo Clinic",
		City:                models.Unknown,
		Region:              models.Unknown,
		Country:             "United States",
		InstitutionType:     models.Unknown,
		Capacity:            models.Unknown,
		AccreditationStatus: models.Unknown,
	}
	if got != want {
		t.Errorf("Summarize() = %+v, want %+v", got, want)
	}

	got = Summarize(&models.Site{
		DisplayName: "X", Capacity: 250, InstitutionType: models.InstitutionHospital,
		Coordinates: &models.Coordinates{Latitude: 1, Longitude: 2},
	})
	if got.Capacity != "250" || got.InstitutionType != "Hospital" || !got.Geocoded {
		t.Errorf("Summarize() = %+v", got)
	}
}
