// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

/*
database_schema.go - Database Schema Management

Tables:
  - sites: canonical site registry. normalized_name is UNIQUE; that
    constraint is what turns concurrent creates of one facility into a
    single row across processes.
  - site_links: one row per (site, study). Carries the study summary that
    experience aggregation needs.
  - match_scores: append-only score history.

List-valued site fields (conditions, phases, intervention types) and the
experience summary are stored as JSON text.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables(ctx context.Context) error {
	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// tableCreationQueries returns the table and index creation SQL statements
func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS sites (
			site_id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			normalized_name TEXT NOT NULL UNIQUE,
			city TEXT NOT NULL DEFAULT '',
			region TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			latitude DOUBLE,
			longitude DOUBLE,
			institution_type TEXT NOT NULL DEFAULT '',
			capacity INTEGER NOT NULL DEFAULT 0,
			accreditation_status TEXT NOT NULL DEFAULT '',
			conditions TEXT NOT NULL DEFAULT '[]',
			phases TEXT NOT NULL DEFAULT '[]',
			intervention_types TEXT NOT NULL DEFAULT '[]',
			experience TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS site_links (
			site_id TEXT NOT NULL,
			nct_id TEXT NOT NULL,
			overall_status TEXT NOT NULL DEFAULT '',
			enrollment INTEGER NOT NULL DEFAULT 0,
			start_date TIMESTAMP,
			completion_date TIMESTAMP,
			linked_at TIMESTAMP NOT NULL,
			PRIMARY KEY (site_id, nct_id)
		)`,

		`CREATE TABLE IF NOT EXISTS match_scores (
			score_id TEXT PRIMARY KEY,
			site_id TEXT NOT NULL,
			target_study_id TEXT NOT NULL,
			therapeutic DOUBLE NOT NULL,
			phase DOUBLE NOT NULL,
			intervention DOUBLE NOT NULL,
			geographic DOUBLE NOT NULL,
			overall DOUBLE NOT NULL,
			adjusted BOOLEAN NOT NULL DEFAULT false,
			computed_at TIMESTAMP NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_match_scores_site ON match_scores(site_id, computed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_match_scores_target ON match_scores(target_study_id)`,
	}
}
