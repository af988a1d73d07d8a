// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

// Package recommend turns scored sites into a tiered, geographically
// diversified shortlist for one target study.
//
// # Pipeline
//
// Engine.Recommend runs four steps over the sites it is given:
//
//  1. Eligibility: every EligibilityRule must accept the site. No rules are
//     installed by default, so every site is eligible.
//  2. Rank: each eligible site is scored and the list is sorted by overall
//     score, highest first. Equal scores keep site ID order.
//  3. Diversify: a greedy walk picks up to MaxSites sites while spreading
//     them across at least MinCountries countries when the data allows.
//  4. Tier: the shortlist is split by overall score into primary, secondary
//     and tertiary. Sites below the tertiary threshold appear in no tier.
//
// Each tiered site becomes a report entry with its factor scores, a display
// summary, strengths and weaknesses derived from site metrics, and an
// optional narrative. Missing metric values are rendered as "unknown".
//
// # Degradation
//
// A site that fails to score is counted and skipped. A metrics or narrative
// lookup failure leaves the entry without that enrichment. Both mark the
// report Degraded; neither prevents the report from being produced.
//
// # Usage
//
//	engine, err := recommend.NewEngine(recommend.DefaultConfig(), scorer, logger,
//	    recommend.WithRules(recommend.ExcludeCountries("North Korea")),
//	)
//	report, err := engine.Recommend(ctx, target, sites)
//
// # Thread Safety
//
// Engine holds no per-request state and is safe for concurrent use.
package recommend
