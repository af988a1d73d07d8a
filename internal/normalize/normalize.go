// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

// Package normalize canonicalizes facility names so that registration and
// lookup agree on a single key per facility.
//
// Name is total and idempotent: Name(Name(x)) == Name(x) for every x.
// Unicode equivalents and accented spellings of a name share one key.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// punctuation is replaced by a single space before tokenizing.
const punctuation = `.,;:!?"()[]{}<>/\-–—&#@*+_|~=%$^` + "`"

// apostrophes are deleted outright so "St. Mary's" and "St Marys" agree.
const apostrophes = "'’‘"

// phrase is a multi-token abbreviation rule, matched on token boundaries.
type phrase struct {
	from []string
	to   []string
}

// abbreviations are applied left to right, longest phrase first. No
// replacement produces the source of any rule, which keeps Name idempotent.
var abbreviations = []phrase{
	{from: []string{"medical", "center"}, to: []string{"med", "ctr"}},
	{from: []string{"medical", "centre"}, to: []string{"med", "ctr"}},
	{from: []string{"health", "center"}, to: []string{"health", "ctr"}},
	{from: []string{"health", "centre"}, to: []string{"health", "ctr"}},
	{from: []string{"university"}, to: []string{"univ"}},
	{from: []string{"saint"}, to: []string{"st"}},
	{from: []string{"department"}, to: []string{"dept"}},
}

// Name returns the normalized form of a facility name. Empty input yields "".
func Name(s string) string {
	return strings.Join(Tokens(s), " ")
}

// Tokens returns the normalized tokens of s, after abbreviation.
func Tokens(s string) []string {
	if s == "" {
		return nil
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range fold(s) {
		switch {
		case strings.ContainsRune(apostrophes, r):
			continue
		case strings.ContainsRune(punctuation, r), unicode.IsSpace(r), unicode.IsControl(r):
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}

	// Dropping punctuation can leave combining characters adjacent; NFKD
	// puts them back in canonical order.
	return abbreviate(strings.Fields(norm.NFKD.String(b.String())))
}

// fold maps canonically and compatibly equivalent spellings to one form:
// compatibility decomposition, accents removed, lowercased. "Hôpital" in
// precomposed or combining form and "Hopital" all fold to "hopital".
func fold(s string) string {
	// Chained transformers hold state, so each call builds its own.
	t := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Map(unicode.ToLower),
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

func abbreviate(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		matched := false
		for _, p := range abbreviations {
			if hasPrefix(tokens[i:], p.from) {
				out = append(out, p.to...)
				i += len(p.from)
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, tokens[i])
			i++
		}
	}
	return out
}

func hasPrefix(tokens, prefix []string) bool {
	if len(tokens) < len(prefix) {
		return false
	}
	for i := range prefix {
		if tokens[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Address builds the geocode cache key for a location. Empty parts are
// skipped; a location with no parts yields "".
func Address(city, region, country string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{city, region, country} {
		if n := Name(p); n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, ", ")
}

// IsNumeric reports whether s, ignoring surrounding whitespace, is a non-empty
// run of decimal digits.
func IsNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Display tidies a name for presentation: surrounding whitespace trimmed and
// inner runs of whitespace collapsed to one space. Case and punctuation are
// kept.
func Display(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
