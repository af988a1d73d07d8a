// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package models

import (
	"strings"
	"time"
)

// Unknown is rendered in place of any absent value in reports and API output.
const Unknown = "unknown"

// DefaultAccreditationStatus is assigned to new sites until enrichment says otherwise.
const DefaultAccreditationStatus = "Unknown"

// Coordinates is a geocoded position in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether both values are inside WGS84 bounds.
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Site is the canonical identity of one real-world research facility.
//
// ID is assigned once at creation and never changes. NormalizedName is always
// normalize.Name(DisplayName) and is unique across the registry.
type Site struct {
	ID                  string          `json:"site_id"`
	DisplayName         string          `json:"display_name"`
	NormalizedName      string          `json:"normalized_name"`
	City                string          `json:"city,omitempty"`
	Region              string          `json:"region,omitempty"`
	Country             string          `json:"country,omitempty"`
	Coordinates         *Coordinates    `json:"coordinates"` // nil until geocoded
	InstitutionType     InstitutionType `json:"institution_type"`
	Capacity            int             `json:"capacity"` // 0 when unknown
	AccreditationStatus string          `json:"accreditation_status"`

	// Trial profile accumulated from linked studies; the site side of scoring.
	Conditions        []string `json:"conditions,omitempty"`
	Phases            []string `json:"phases,omitempty"`
	InterventionTypes []string `json:"intervention_types,omitempty"`

	Experience *SiteExperience `json:"experience,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate without racing the store.
func (s *Site) Clone() *Site {
	if s == nil {
		return nil
	}
	c := *s
	if s.Coordinates != nil {
		coords := *s.Coordinates
		c.Coordinates = &coords
	}
	if s.Experience != nil {
		exp := *s.Experience
		c.Experience = &exp
	}
	c.Conditions = append([]string(nil), s.Conditions...)
	c.Phases = append([]string(nil), s.Phases...)
	c.InterventionTypes = append([]string(nil), s.InterventionTypes...)
	return &c
}

// MergeStudy folds a linked study into the site's trial profile.
// Values already present (case-insensitively) are skipped. Reports whether
// anything changed.
func (s *Site) MergeStudy(ref *StudyRef) bool {
	if ref == nil {
		return false
	}
	changed := false
	for _, c := range ref.Conditions {
		if appendUnique(&s.Conditions, c) {
			changed = true
		}
	}
	if appendUnique(&s.Phases, ref.Phase) {
		changed = true
	}
	for _, it := range ref.InterventionTypes {
		if appendUnique(&s.InterventionTypes, it) {
			changed = true
		}
	}
	return changed
}

func appendUnique(dst *[]string, v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	for _, existing := range *dst {
		if strings.EqualFold(existing, v) {
			return false
		}
	}
	*dst = append(*dst, v)
	return true
}

// SiteLink records that a facility mention from a study resolved to a site.
// It carries the study fields experience aggregation needs, so a site's
// history can be rebuilt from its links alone.
type SiteLink struct {
	SiteID         string     `json:"site_id"`
	NCTID          string     `json:"nct_id"`
	OverallStatus  string     `json:"overall_status,omitempty"`
	Enrollment     int        `json:"enrollment,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	CompletionDate *time.Time `json:"completion_date,omitempty"`
	LinkedAt       time.Time  `json:"linked_at"`
}

// NewSiteLink builds the link row for ref.
func NewSiteLink(siteID string, ref *StudyRef, at time.Time) SiteLink {
	return SiteLink{
		SiteID:         siteID,
		NCTID:          ref.NCTID,
		OverallStatus:  ref.OverallStatus,
		Enrollment:     ref.Enrollment,
		StartDate:      ref.StartDate,
		CompletionDate: ref.CompletionDate,
		LinkedAt:       at,
	}
}

// Study returns the study summary stored on the link.
func (l SiteLink) Study() StudyRef {
	return StudyRef{
		NCTID:          l.NCTID,
		OverallStatus:  l.OverallStatus,
		Enrollment:     l.Enrollment,
		StartDate:      l.StartDate,
		CompletionDate: l.CompletionDate,
	}
}
