// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/siteselect/internal/models"
	"github.com/tomtom215/siteselect/internal/registry"
)

// InsertLink records a site-study link and reports whether it was new. The
// site must exist.
func (db *DB) InsertLink(ctx context.Context, link models.SiteLink) (bool, error) {
	ctx, cancel := queryContext(ctx)
	defer cancel()

	var inserted bool
	err := conflictRetry.Do(ctx, func(ctx context.Context) error {
		var err error
		inserted, err = db.insertLink(ctx, link)
		return err
	})
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return false, registry.ErrNotFound
		}
		return false, fmt.Errorf("failed to insert link %s/%s: %w", link.SiteID, link.NCTID, err)
	}
	return inserted, nil
}

func (db *DB) insertLink(ctx context.Context, link models.SiteLink) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM sites WHERE site_id = ?)`, link.SiteID).Scan(&exists)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, registry.ErrNotFound
	}

	result, err := db.conn.ExecContext(ctx, `INSERT INTO site_links
			(site_id, nct_id, overall_status, enrollment, start_date, completion_date, linked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		link.SiteID, link.NCTID, link.OverallStatus, int32(link.Enrollment), //nolint:gosec // enrollment counts fit int32
		nullTime(link.StartDate), nullTime(link.CompletionDate), link.LinkedAt.UTC())
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// ListLinks returns a site's links in the order they were recorded.
func (db *DB) ListLinks(ctx context.Context, siteID string) ([]models.SiteLink, error) {
	ctx, cancel := queryContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT
			site_id, nct_id, overall_status, enrollment, start_date, completion_date, linked_at
		FROM site_links WHERE site_id = ?
		ORDER BY linked_at, nct_id`, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer closeWithLog(rows, db.logger, "rows")

	var links []models.SiteLink
	for rows.Next() {
		var (
			l            models.SiteLink
			enrollment   int32
			start, compl sql.NullTime
		)
		if err := rows.Scan(&l.SiteID, &l.NCTID, &l.OverallStatus, &enrollment, &start, &compl, &l.LinkedAt); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		l.Enrollment = int(enrollment)
		l.StartDate = timePtr(start)
		l.CompletionDate = timePtr(compl)
		l.LinkedAt = l.LinkedAt.UTC()
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}
	return links, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
