// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package scoring

import (
	"strings"
)

// Factor scores. Each function is pure and returns a value in [0, 1].

// Therapeutic scores condition overlap. E is the share of target conditions
// the site has exactly (case-insensitive); R is half the share of the
// remaining target conditions that overlap a site condition as a substring in
// either direction. The score is min(1, E+R).
func Therapeutic(target, site []string) float64 {
	targetSet := lowerSet(target)
	siteSet := lowerSet(site)
	if len(targetSet) == 0 || len(siteSet) == 0 {
		return 0
	}

	exact, related := 0, 0
	for t := range targetSet {
		if _, ok := siteSet[t]; ok {
			exact++
			continue
		}
		for s := range siteSet {
			if strings.Contains(s, t) || strings.Contains(t, s) {
				related++
				break
			}
		}
	}

	n := float64(len(targetSet))
	return clamp01(float64(exact)/n + 0.5*float64(related)/n)
}

// phaseOrder maps normalized phase labels to their ordinal.
var phaseOrder = map[string]int{
	"phase1": 1, "phasei": 1,
	"phase2": 2, "phaseii": 2,
	"phase3": 3, "phaseiii": 3,
	"phase4": 4, "phaseiv": 4,
}

// NormalizePhase lowercases and removes spaces, hyphens and underscores, so
// "PHASE2", "Phase 2" and "phase-2" compare equal.
func NormalizePhase(p string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(p)))
}

// Phase scores phase experience: 1.0 for the same phase, 0.7 for an adjacent
// one, 0.4 for two apart, best over the site's phases. Labels outside
// Phase 1-4 only score on exact equality.
func Phase(target string, site []string) float64 {
	t := NormalizePhase(target)
	if t == "" || len(site) == 0 {
		return 0
	}
	tRank, tKnown := phaseOrder[t]

	best := 0.0
	for _, p := range site {
		s := NormalizePhase(p)
		if s == "" {
			continue
		}
		if s == t {
			return 1
		}
		sRank, sKnown := phaseOrder[s]
		if !tKnown || !sKnown {
			continue
		}
		switch abs(tRank - sRank) {
		case 1:
			best = max(best, 0.7)
		case 2:
			best = max(best, 0.4)
		}
	}
	return best
}

// interventionCohorts groups intervention types that use a similar mechanism.
var interventionCohorts = [][]string{
	{"drug", "biologic", "medication"},
	{"device", "medical device", "implant"},
	{"procedure", "surgery", "operation"},
}

// Intervention scores intervention experience: 1.0 exact, 0.8 when the site
// has a type in the same cohort, 0.5 when both sides have data but differ,
// 0 when either side is missing.
func Intervention(target string, site []string) float64 {
	t := strings.ToLower(strings.TrimSpace(target))
	siteSet := lowerSet(site)
	if t == "" || len(siteSet) == 0 {
		return 0
	}
	if _, ok := siteSet[t]; ok {
		return 1
	}
	for _, cohort := range interventionCohorts {
		if !contains(cohort, t) {
			continue
		}
		for _, similar := range cohort {
			if _, ok := siteSet[similar]; ok {
				return 0.8
			}
		}
	}
	return 0.5
}

// countryCohorts are the regional groupings used for partial geographic credit.
var countryCohorts = [][]string{
	{"united states", "usa", "us", "america"},
	{"germany", "france", "uk", "united kingdom", "italy", "spain", "netherlands"},
}

// Geographic scores location fit: 0.5 with no target preference, 0.3 when the
// site country is unknown, 1.0 for the same country, 0.8 for the same cohort,
// 0.6 otherwise.
func Geographic(target, site string) float64 {
	t := strings.ToLower(strings.TrimSpace(target))
	s := strings.ToLower(strings.TrimSpace(site))
	switch {
	case t == "":
		return 0.5
	case s == "":
		return 0.3
	case t == s:
		return 1
	}
	for _, cohort := range countryCohorts {
		if contains(cohort, t) && contains(cohort, s) {
			return 0.8
		}
	}
	return 0.6
}

func lowerSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
