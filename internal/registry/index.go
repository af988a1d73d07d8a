// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package registry

import (
	"sort"
	"sync"
	"time"
)

// Candidate is the slice of a site the fuzzy matcher needs.
type Candidate struct {
	ID             string
	DisplayName    string
	NormalizedName string
	CreatedAt      time.Time
}

// stopTokens are too common in facility names to narrow a block.
var stopTokens = map[string]struct{}{
	"the": {}, "of": {}, "and": {}, "for": {}, "at": {}, "in": {},
	"de": {}, "la": {}, "le": {}, "du": {}, "des": {}, "del": {}, "di": {},
	"univ": {}, "hospital": {}, "med": {}, "ctr": {}, "center": {},
	"clinic": {}, "health": {}, "research": {}, "institute": {},
}

// suffixLen is the length of the token-ending blocking key. It catches
// spelling variants that differ only at the start of a word ("Kristie",
// "Christie").
const suffixLen = 3

// blockIndex maps blocking keys to candidates: every informative normalized
// token, the last suffixLen characters of each such token, plus the first
// prefixLen characters of the normalized name. Below fullScanBelow indexed
// sites, lookup returns every site.
type blockIndex struct {
	mu            sync.RWMutex
	prefixLen     int
	fullScanBelow int
	byToken       map[string]map[string]struct{}
	bySuffix      map[string]map[string]struct{}
	byPrefix      map[string]map[string]struct{}
	sites         map[string]Candidate
}

func newBlockIndex(prefixLen int) *blockIndex {
	return &blockIndex{
		prefixLen: prefixLen,
		byToken:   make(map[string]map[string]struct{}),
		bySuffix:  make(map[string]map[string]struct{}),
		byPrefix:  make(map[string]map[string]struct{}),
		sites:     make(map[string]Candidate),
	}
}

func (b *blockIndex) add(c Candidate, tokens []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sites[c.ID] = c
	for _, tok := range blockingTokens(tokens) {
		addTo(b.byToken, tok, c.ID)
		if s := suffix(tok); s != "" {
			addTo(b.bySuffix, s, c.ID)
		}
	}
	if p := b.prefix(c.NormalizedName); p != "" {
		addTo(b.byPrefix, p, c.ID)
	}
}

// lookup returns candidates sharing at least one blocking key, ordered by
// creation time then ID so callers see a stable order.
func (b *blockIndex) lookup(normalizedName string, tokens []string) []Candidate {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Candidate
	if len(b.sites) < b.fullScanBelow {
		out = make([]Candidate, 0, len(b.sites))
		for _, c := range b.sites {
			out = append(out, c)
		}
	} else {
		ids := make(map[string]struct{})
		for _, tok := range blockingTokens(tokens) {
			for id := range b.byToken[tok] {
				ids[id] = struct{}{}
			}
			for id := range b.bySuffix[suffix(tok)] {
				ids[id] = struct{}{}
			}
		}
		if p := b.prefix(normalizedName); p != "" {
			for id := range b.byPrefix[p] {
				ids[id] = struct{}{}
			}
		}
		out = make([]Candidate, 0, len(ids))
		for id := range ids {
			out = append(out, b.sites[id])
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (b *blockIndex) len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sites)
}

func (b *blockIndex) prefix(name string) string {
	if b.prefixLen <= 0 {
		return ""
	}
	r := []rune(name)
	if len(r) < b.prefixLen {
		return string(r)
	}
	return string(r[:b.prefixLen])
}

// suffix returns the ending key of a token, or "" when the token is too short
// to have one distinct from the token itself.
func suffix(token string) string {
	r := []rune(token)
	if len(r) <= suffixLen {
		return ""
	}
	return string(r[len(r)-suffixLen:])
}

func blockingTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if len(t) < 2 {
			continue
		}
		if _, stop := stopTokens[t]; stop {
			continue
		}
		out = append(out, t)
	}
	// All tokens were stop words: fall back to using them.
	if len(out) == 0 {
		return tokens
	}
	return out
}

func addTo(m map[string]map[string]struct{}, key, id string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[id] = struct{}{}
}
