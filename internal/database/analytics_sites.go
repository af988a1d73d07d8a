// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tomtom215/siteselect/internal/models"
	"github.com/tomtom215/siteselect/internal/scoring"
)

var _ scoring.MetricsProvider = (*DB)(nil)

// experienceQuery aggregates a site's links the same way
// scoring.AggregateExperience does: status by case-insensitive substring,
// first match wins in completed, terminated, withdrawn order.
const experienceQuery = `
SELECT
	COUNT(*) AS total,
	COUNT(*) FILTER (WHERE lower(overall_status) LIKE '%completed%') AS completed,
	COUNT(*) FILTER (WHERE lower(overall_status) NOT LIKE '%completed%'
		AND lower(overall_status) LIKE '%terminated%') AS terminated,
	COUNT(*) FILTER (WHERE lower(overall_status) NOT LIKE '%completed%'
		AND lower(overall_status) NOT LIKE '%terminated%'
		AND lower(overall_status) LIKE '%withdrawn%') AS withdrawn,
	CAST(COALESCE(SUM(enrollment) FILTER (WHERE enrollment > 0), 0) AS BIGINT) AS enrollment,
	AVG(date_diff('second', start_date, completion_date) / 86400.0)
		FILTER (WHERE start_date IS NOT NULL
			AND completion_date IS NOT NULL
			AND completion_date >= start_date) AS avg_days
FROM site_links
WHERE site_id = ?`

// SiteMetrics computes a site's trial experience from its stored links.
// Investigator and data-quality metrics are not tracked and stay nil.
func (db *DB) SiteMetrics(ctx context.Context, siteID string) (*models.SiteMetrics, error) {
	ctx, cancel := queryContext(ctx)
	defer cancel()

	var (
		total, completed, terminated, withdrawn, enrollment int64
		avgDays                                             sql.NullFloat64
	)
	err := db.conn.QueryRowContext(ctx, experienceQuery, siteID).
		Scan(&total, &completed, &terminated, &withdrawn, &enrollment, &avgDays)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate experience for %s: %w", siteID, err)
	}

	exp := models.SiteExperience{
		TotalStudies:    int(total),
		Completed:       int(completed),
		Terminated:      int(terminated),
		Withdrawn:       int(withdrawn),
		TotalEnrollment: int(enrollment),
	}
	if total > 0 {
		exp.AvgEnrollment = float64(enrollment) / float64(total)
		exp.CompletionRatio = float64(completed) / float64(total)
	}
	if avgDays.Valid {
		exp.AvgDurationDays = avgDays.Float64
	}
	return &models.SiteMetrics{Experience: &exp}, nil
}
