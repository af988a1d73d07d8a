// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

/*
Package models defines the typed records shared by every siteselect package.

Records:

  - Site: the canonical, deduplicated identity of one real-world facility
  - FacilityMention: a raw, untrusted facility reference taken from a study record
  - StudyRef: the study a mention came from, used to build a site's trial profile
  - TargetStudy: the study a sponsor wants to place, the query side of scoring
  - MatchScore: an immutable scoring result for one (site, target study) pair
  - SiteExperience / SiteMetrics: aggregated trial history and investigator strength
  - RecommendationReport: tiered, enriched output of the recommendation engine
  - APIResponse: the JSON envelope used by the HTTP API

Lifecycle:

A Site is created once by the resolver on the first unmatched mention and is
afterwards only updated (coordinates, trial profile, experience); it is never
deleted. A MatchScore is created per scoring call and never mutated; scoring
the same pair again produces a new record.

Optional values are pointers (Coordinates, Experience, the SiteMetrics fields)
so that "absent" and "zero" stay distinguishable all the way to the report,
where absent values are rendered as Unknown.
*/
package models
