// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package recommend

import (
	"sort"

	"github.com/tomtom215/siteselect/internal/models"
)

// unknownCountry groups sites with no country for diversification.
const unknownCountry = "unknown"

// Candidate is a scored site.
type Candidate struct {
	Site  *models.Site
	Score models.MatchScore
}

// Rank sorts candidates by overall score, highest first. Equal scores are
// ordered by site ID so the result does not depend on input order.
func Rank(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score.Overall != b.Score.Overall {
			return a.Score.Overall > b.Score.Overall
		}
		return a.Site.ID < b.Site.ID
	})
}

// Diversify walks ranked candidates greedily and returns at most maxSites of
// them, in rank order.
//
// A site from a country not yet selected is always taken. A site from an
// already selected country is taken only while fewer than minCountries
// countries are represented. While some unrepresented country is still
// further down the list, each selected country is also held to
// maxSites/minCountries sites so the remaining slots stay open for it.
func Diversify(ranked []Candidate, maxSites, minCountries int) []Candidate {
	if maxSites <= 0 || len(ranked) == 0 {
		return nil
	}
	if minCountries < 1 {
		minCountries = 1
	}
	quota := max(1, maxSites/minCountries)

	remaining := make(map[string]int)
	for _, c := range ranked {
		remaining[siteCountry(c.Site)]++
	}

	selected := make(map[string]int)
	out := make([]Candidate, 0, min(maxSites, len(ranked)))
	for _, c := range ranked {
		if len(out) >= maxSites {
			break
		}
		country := siteCountry(c.Site)
		remaining[country]--

		if n, seen := selected[country]; seen {
			if len(selected) >= minCountries {
				continue
			}
			if n >= quota && unrepresentedAhead(remaining, selected) {
				continue
			}
		}
		out = append(out, c)
		selected[country]++
	}
	return out
}

func unrepresentedAhead(remaining, selected map[string]int) bool {
	for country, n := range remaining {
		if n <= 0 {
			continue
		}
		if _, ok := selected[country]; !ok {
			return true
		}
	}
	return false
}

func siteCountry(site *models.Site) string {
	if k := countryKey(site.Country); k != "" {
		return k
	}
	return unknownCountry
}
