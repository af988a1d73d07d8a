// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package database

import (
	"context"
	"fmt"

	"github.com/tomtom215/siteselect/internal/models"
	"github.com/tomtom215/siteselect/internal/scoring"
)

var _ scoring.ScoreStore = (*DB)(nil)

// InsertScore appends a match score. A reused score ID returns
// scoring.ErrDuplicateScore.
func (db *DB) InsertScore(ctx context.Context, score models.MatchScore) error {
	ctx, cancel := queryContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, `INSERT INTO match_scores
			(score_id, site_id, target_study_id, therapeutic, phase, intervention,
			 geographic, overall, adjusted, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		score.ID, score.SiteID, score.TargetStudyID, score.Therapeutic, score.Phase,
		score.Intervention, score.Geographic, score.Overall, score.Adjusted, score.ComputedAt.UTC())
	if err != nil {
		if isUniqueConstraintError(err) {
			return scoring.ErrDuplicateScore
		}
		return fmt.Errorf("failed to insert score: %w", err)
	}
	return nil
}

// ListScores returns a site's score history, oldest first.
func (db *DB) ListScores(ctx context.Context, siteID string) ([]models.MatchScore, error) {
	ctx, cancel := queryContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT
			score_id, site_id, target_study_id, therapeutic, phase, intervention,
			geographic, overall, adjusted, computed_at
		FROM match_scores WHERE site_id = ?
		ORDER BY computed_at, score_id`, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	defer closeWithLog(rows, db.logger, "rows")

	var scores []models.MatchScore
	for rows.Next() {
		var s models.MatchScore
		if err := rows.Scan(&s.ID, &s.SiteID, &s.TargetStudyID, &s.Therapeutic, &s.Phase,
			&s.Intervention, &s.Geographic, &s.Overall, &s.Adjusted, &s.ComputedAt); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		s.ComputedAt = s.ComputedAt.UTC()
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scores: %w", err)
	}
	return scores, nil
}

// CountScores returns the number of stored scores.
func (db *DB) CountScores(ctx context.Context) (int, error) {
	ctx, cancel := queryContext(ctx)
	defer cancel()

	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM match_scores`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count scores: %w", err)
	}
	return int(n), nil
}
