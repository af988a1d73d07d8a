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

	"github.com/goccy/go-json"

	"github.com/tomtom215/siteselect/internal/models"
	"github.com/tomtom215/siteselect/internal/registry"
	"github.com/tomtom215/siteselect/internal/retry"
)

var _ registry.Store = (*DB)(nil)

// conflictRetry retries DuckDB write-write conflicts: 1ms, 2ms, 4ms.
var conflictRetry = retry.Policy{
	MaxAttempts:  3,
	InitialDelay: time.Millisecond,
	MaxDelay:     4 * time.Millisecond,
	Retryable:    isTransactionConflict,
}

const siteColumns = `site_id, display_name, normalized_name, city, region, country,
	latitude, longitude, institution_type, capacity, accreditation_status,
	conditions, phases, intervention_types, experience, created_at, updated_at`

// InsertSite stores a new site. A taken normalized name or ID returns
// registry.ErrConflict.
func (db *DB) InsertSite(ctx context.Context, site *models.Site) error {
	args, err := siteArgs(site)
	if err != nil {
		return err
	}

	ctx, cancel := queryContext(ctx)
	defer cancel()

	err = conflictRetry.Do(ctx, func(ctx context.Context) error {
		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO sites (`+siteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			args...)
		return err
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return registry.ErrConflict
		}
		return fmt.Errorf("failed to insert site: %w", err)
	}
	return nil
}

// UpdateSite overwrites a stored site. Changing the normalized name to one
// already taken returns registry.ErrConflict.
func (db *DB) UpdateSite(ctx context.Context, site *models.Site) error {
	args, err := siteArgs(site)
	if err != nil {
		return err
	}

	ctx, cancel := queryContext(ctx)
	defer cancel()

	err = conflictRetry.Do(ctx, func(ctx context.Context) error {
		return db.updateSite(ctx, site, args)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, registry.ErrNotFound):
		return registry.ErrNotFound
	case isUniqueConstraintError(err):
		return registry.ErrConflict
	default:
		return fmt.Errorf("failed to update site: %w", err)
	}
}

// updateSite only touches normalized_name when it changes, so ordinary
// profile updates never rewrite the unique index.
func (db *DB) updateSite(ctx context.Context, site *models.Site, args []any) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollbackQuietly(tx)

	var current string
	err = tx.QueryRowContext(ctx, `SELECT normalized_name FROM sites WHERE site_id = ?`, site.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.ErrNotFound
	}
	if err != nil {
		return err
	}

	if current != site.NormalizedName {
		if _, err := tx.ExecContext(ctx,
			`UPDATE sites SET normalized_name = ? WHERE site_id = ?`,
			site.NormalizedName, site.ID); err != nil {
			return err
		}
	}

	// args[0] is site_id and args[2] normalized_name; both are excluded.
	_, err = tx.ExecContext(ctx, `UPDATE sites SET
			display_name = ?, city = ?, region = ?, country = ?,
			latitude = ?, longitude = ?, institution_type = ?, capacity = ?,
			accreditation_status = ?, conditions = ?, phases = ?,
			intervention_types = ?, experience = ?, created_at = ?, updated_at = ?
		WHERE site_id = ?`,
		append(append([]any{args[1]}, args[3:]...), site.ID)...)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// GetSite returns the site with the given ID or registry.ErrNotFound.
func (db *DB) GetSite(ctx context.Context, id string) (*models.Site, error) {
	return db.querySite(ctx, `SELECT `+siteColumns+` FROM sites WHERE site_id = ?`, id)
}

// FindByNormalizedName returns the site registered under the normalized name
// or registry.ErrNotFound.
func (db *DB) FindByNormalizedName(ctx context.Context, normalizedName string) (*models.Site, error) {
	return db.querySite(ctx, `SELECT `+siteColumns+` FROM sites WHERE normalized_name = ?`, normalizedName)
}

func (db *DB) querySite(ctx context.Context, query string, arg any) (*models.Site, error) {
	ctx, cancel := queryContext(ctx)
	defer cancel()

	site, err := scanSite(db.conn.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, registry.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query site: %w", err)
	}
	return site, nil
}

// ListSites returns every site, oldest first.
func (db *DB) ListSites(ctx context.Context) ([]*models.Site, error) {
	ctx, cancel := queryContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT `+siteColumns+` FROM sites ORDER BY created_at, site_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer closeWithLog(rows, db.logger, "rows")

	var sites []*models.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sites: %w", err)
	}
	return sites, nil
}

// CountSites returns the number of registered sites.
func (db *DB) CountSites(ctx context.Context) (int, error) {
	ctx, cancel := queryContext(ctx)
	defer cancel()

	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM sites`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sites: %w", err)
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (*models.Site, error) {
	var (
		s                                 models.Site
		lat, lon                          sql.NullFloat64
		institution                       string
		capacity                          int32
		conditions, phases, interventions string
		experience                        sql.NullString
	)
	err := row.Scan(
		&s.ID, &s.DisplayName, &s.NormalizedName, &s.City, &s.Region, &s.Country,
		&lat, &lon, &institution, &capacity, &s.AccreditationStatus,
		&conditions, &phases, &interventions, &experience, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lat.Valid && lon.Valid {
		s.Coordinates = &models.Coordinates{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	s.InstitutionType = models.InstitutionType(institution)
	s.Capacity = int(capacity)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()

	for _, f := range []struct {
		raw string
		dst *[]string
	}{
		{conditions, &s.Conditions},
		{phases, &s.Phases},
		{interventions, &s.InterventionTypes},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("decode list column: %w", err)
		}
	}
	if experience.Valid && experience.String != "" {
		var exp models.SiteExperience
		if err := json.Unmarshal([]byte(experience.String), &exp); err != nil {
			return nil, fmt.Errorf("decode experience: %w", err)
		}
		s.Experience = &exp
	}
	return &s, nil
}

// siteArgs returns the column values in siteColumns order.
func siteArgs(s *models.Site) ([]any, error) {
	var lat, lon sql.NullFloat64
	if s.Coordinates != nil {
		lat = sql.NullFloat64{Float64: s.Coordinates.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: s.Coordinates.Longitude, Valid: true}
	}

	lists := make([]string, 3)
	for i, l := range [][]string{s.Conditions, s.Phases, s.InterventionTypes} {
		if l == nil {
			l = []string{}
		}
		b, err := json.Marshal(l)
		if err != nil {
			return nil, fmt.Errorf("encode list column: %w", err)
		}
		lists[i] = string(b)
	}

	var experience sql.NullString
	if s.Experience != nil {
		b, err := json.Marshal(s.Experience)
		if err != nil {
			return nil, fmt.Errorf("encode experience: %w", err)
		}
		experience = sql.NullString{String: string(b), Valid: true}
	}

	return []any{
		s.ID, s.DisplayName, s.NormalizedName, s.City, s.Region, s.Country,
		lat, lon, string(s.InstitutionType), int32(s.Capacity), s.AccreditationStatus, //nolint:gosec // capacity is an enrollment count
		lists[0], lists[1], lists[2], experience, s.CreatedAt.UTC(), s.UpdatedAt.UTC(),
	}, nil
}
