// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package resolve

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/tomtom215/siteselect/internal/normalize"
	"github.com/tomtom215/siteselect/internal/registry"
)

// Mode names the similarity capability in use.
type Mode string

const (
	// ModeFuzzy resolves with exact lookup plus token-set similarity.
	ModeFuzzy Mode = "fuzzy"
	// ModeExactOnly resolves by normalized-name equality alone.
	ModeExactOnly Mode = "exact_only"
)

// Match is the candidate a Matcher picked and its similarity (0-100).
type Match struct {
	Candidate registry.Candidate
	Score     float64
}

// Matcher chooses the best existing site for a mention name among blocked
// candidates. Candidates arrive ordered by creation time, then ID.
type Matcher interface {
	Mode() Mode
	Best(name string, candidates []registry.Candidate) (Match, bool)
}

// ExactOnly never matches approximately. Resolution then depends only on the
// exact normalized-name lookup.
type ExactOnly struct{}

func (ExactOnly) Mode() Mode { return ModeExactOnly }

func (ExactOnly) Best(string, []registry.Candidate) (Match, bool) { return Match{}, false }

// TokenSet matches on token-set similarity, which ignores token order and
// tolerates one name being a superset of the other ("Mayo Clinic" vs
// "Mayo Clinic Hospital").
type TokenSet struct {
	// Threshold must be strictly exceeded. Zero means 85.
	Threshold float64
}

func (TokenSet) Mode() Mode { return ModeFuzzy }

// Best returns the highest-scoring candidate above the threshold. Ties go
// to the earliest-created site, then the smaller ID.
func (m TokenSet) Best(name string, candidates []registry.Candidate) (Match, bool) {
	threshold := m.Threshold
	if threshold == 0 {
		threshold = 85
	}

	var best Match
	found := false
	for _, c := range candidates {
		score := TokenSetRatio(name, c.DisplayName)
		if score <= threshold {
			continue
		}
		if !found || better(score, c, best) {
			best = Match{Candidate: c, Score: score}
			found = true
		}
	}
	return best, found
}

func better(score float64, c registry.Candidate, cur Match) bool {
	if score != cur.Score {
		return score > cur.Score
	}
	if !c.CreatedAt.Equal(cur.Candidate.CreatedAt) {
		return c.CreatedAt.Before(cur.Candidate.CreatedAt)
	}
	return c.ID < cur.Candidate.ID
}

// TokenSetRatio scores two names from 0 to 100. Both are tokenized with the
// name normalizer; the score is the best pairwise ratio among the sorted
// shared tokens and the shared tokens plus each side's remainder.
func TokenSetRatio(a, b string) float64 {
	ta := uniqueSorted(normalize.Tokens(a))
	tb := uniqueSorted(normalize.Tokens(b))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	inB := make(map[string]bool, len(tb))
	for _, t := range tb {
		inB[t] = true
	}
	inA := make(map[string]bool, len(ta))
	for _, t := range ta {
		inA[t] = true
	}

	var shared, onlyA, onlyB []string
	for _, t := range ta {
		if inB[t] {
			shared = append(shared, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for _, t := range tb {
		if !inA[t] {
			onlyB = append(onlyB, t)
		}
	}

	sect := strings.Join(shared, " ")
	combinedA := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))

	best := ratio(combinedA, combinedB)
	if sect != "" {
		best = max(best, ratio(sect, combinedA), ratio(sect, combinedB))
	}
	return best
}

// ratio is the normalized Levenshtein similarity of two strings, 0-100.
func ratio(a, b string) float64 {
	if a == b {
		return 100
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * float64(longest-d) / float64(longest)
}

func uniqueSorted(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
