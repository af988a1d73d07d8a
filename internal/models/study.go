// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package models

import (
	"strings"
	"time"
)

// StudyRef is the source study a facility mention was extracted from.
type StudyRef struct {
	NCTID             string     `json:"nct_id" validate:"omitempty,max=32"`
	Title             string     `json:"title,omitempty"`
	Conditions        []string   `json:"conditions,omitempty"`
	Phase             string     `json:"phase,omitempty"`
	InterventionTypes []string   `json:"intervention_types,omitempty"`
	OverallStatus     string     `json:"overall_status,omitempty"` // e.g. COMPLETED, TERMINATED, RECRUITING
	Enrollment        int        `json:"enrollment,omitempty" validate:"gte=0"`
	StartDate         *time.Time `json:"start_date,omitempty"`
	CompletionDate    *time.Time `json:"completion_date,omitempty"`
}

// FacilityMention is a raw facility reference. It is consumed by the resolver
// and survives only as a SiteLink when it carries a study reference.
type FacilityMention struct {
	Name    string    `json:"name" validate:"required,notblank,max=500"`
	City    string    `json:"city,omitempty" validate:"max=200"`
	Region  string    `json:"region,omitempty" validate:"max=200"`
	Country string    `json:"country,omitempty" validate:"max=200"`
	Study   *StudyRef `json:"study,omitempty"`
}

// TargetStudy is the study a sponsor is placing; the query side of scoring.
type TargetStudy struct {
	ID               string   `json:"id,omitempty"`
	Conditions       []string `json:"conditions" validate:"required,min=1,dive,notblank"`
	Phase            string   `json:"phase" validate:"required,notblank"`
	InterventionType string   `json:"intervention_type" validate:"required,notblank"`
	Country          string   `json:"country,omitempty"` // empty means no preference
}

// Ref identifies the target in stored scores. An explicit ID wins; otherwise
// the reference is derived from the study's content so identical anonymous
// targets share score history.
func (t *TargetStudy) Ref() string {
	if t.ID != "" {
		return t.ID
	}
	conditions := make([]string, len(t.Conditions))
	for i, c := range t.Conditions {
		conditions[i] = strings.ToLower(strings.TrimSpace(c))
	}
	return strings.Join([]string{
		strings.Join(conditions, ","),
		strings.ToLower(t.Phase),
		strings.ToLower(t.InterventionType),
		strings.ToLower(t.Country),
	}, "|")
}

// WithPhase returns a copy of t with the phase replaced. Used to build
// alternative recommendation scenarios.
func (t TargetStudy) WithPhase(phase string) TargetStudy {
	t.Conditions = append([]string(nil), t.Conditions...)
	t.Phase = phase
	if t.ID != "" {
		t.ID += "#" + strings.ToLower(strings.ReplaceAll(phase, " ", ""))
	}
	return t
}
