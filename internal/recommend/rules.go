// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package recommend

import (
	"fmt"
	"strings"

	"github.com/tomtom215/siteselect/internal/models"
)

// EligibilityRule is a hard constraint. A site failing any installed rule is
// dropped before scoring.
type EligibilityRule interface {
	Name() string
	Eligible(site *models.Site, target models.TargetStudy) bool
}

type ruleFunc struct {
	name string
	fn   func(*models.Site, models.TargetStudy) bool
}

func (r ruleFunc) Name() string { return r.name }

//nolint:gocritic // hugeParam: target passed by value for immutability
func (r ruleFunc) Eligible(site *models.Site, target models.TargetStudy) bool {
	return r.fn(site, target)
}

// NewRule wraps a predicate as an EligibilityRule.
func NewRule(name string, fn func(site *models.Site, target models.TargetStudy) bool) EligibilityRule {
	return ruleFunc{name: name, fn: fn}
}

// ExcludeCountries rejects sites located in any of the given countries.
// Matching ignores case and surrounding whitespace.
func ExcludeCountries(countries ...string) EligibilityRule {
	excluded := make(map[string]struct{}, len(countries))
	for _, c := range countries {
		if k := countryKey(c); k != "" {
			excluded[k] = struct{}{}
		}
	}
	return NewRule("exclude_countries", func(site *models.Site, _ models.TargetStudy) bool {
		_, banned := excluded[countryKey(site.Country)]
		return !banned
	})
}

// MinCapacity rejects sites whose capacity is below n. A site with unknown
// capacity (zero) cannot show it meets the floor and is rejected too.
func MinCapacity(n int) EligibilityRule {
	return NewRule(fmt.Sprintf("min_capacity_%d", n), func(site *models.Site, _ models.TargetStudy) bool {
		return site.Capacity >= n
	})
}

// RulesFromConfig builds the rules a configuration asks for. Empty settings
// install nothing.
func RulesFromConfig(excludedCountries []string, minCapacity int) []EligibilityRule {
	var rules []EligibilityRule
	if len(excludedCountries) > 0 {
		rules = append(rules, ExcludeCountries(excludedCountries...))
	}
	if minCapacity > 0 {
		rules = append(rules, MinCapacity(minCapacity))
	}
	return rules
}

func countryKey(country string) string {
	return strings.ToLower(strings.TrimSpace(country))
}
