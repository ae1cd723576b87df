// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"redirclean/internal/models"
	"redirclean/internal/rewrite"
)

var (
	// ErrInvalidRedirect is returned by Create when a rule fails validation.
	ErrInvalidRedirect = errors.New("invalid redirect")

	// ErrDuplicateRedirect is returned by Create when a rule for the same
	// source URL already exists.
	ErrDuplicateRedirect = errors.New("redirect for this source already exists")
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// RedirectStore handles redirection rules. Its enabled rules are the
// default URL mapping for cleanup jobs.
type RedirectStore struct {
	db *sql.DB
}

// NewRedirectStore creates a new RedirectStore with the given database connection.
func NewRedirectStore(db *sql.DB) *RedirectStore {
	return &RedirectStore{db: db}
}

// List returns every rule ordered by position then id.
func (s *RedirectStore) List(ctx context.Context) ([]models.Redirect, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_url, target_url, status_code, enabled, position, created_at
		FROM redirects
		ORDER BY position, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list redirects: %w", err)
	}
	defer rows.Close()

	var list []models.Redirect
	for rows.Next() {
		var r models.Redirect
		if err := rows.Scan(&r.ID, &r.SourceURL, &r.TargetURL, &r.StatusCode, &r.Enabled, &r.Position, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan redirect: %w", err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

// Create validates and inserts a rule. A zero status code defaults to 301.
func (s *RedirectStore) Create(ctx context.Context, r *models.Redirect) (*models.Redirect, error) {
	if r.StatusCode == 0 {
		r.StatusCode = 301
	}
	if err := validateRedirect(r); err != nil {
		return nil, err
	}

	out := &models.Redirect{}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO redirects (source_url, target_url, status_code, enabled, position)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, source_url, target_url, status_code, enabled, position, created_at
	`, r.SourceURL, r.TargetURL, r.StatusCode, r.Enabled, r.Position).Scan(
		&out.ID, &out.SourceURL, &out.TargetURL, &out.StatusCode, &out.Enabled, &out.Position, &out.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateRedirect, r.SourceURL)
	}
	if err != nil {
		return nil, fmt.Errorf("create redirect: %w", err)
	}
	return out, nil
}

// Delete removes a rule. It returns sql.ErrNoRows if no rule has the id.
func (s *RedirectStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM redirects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete redirect: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete redirect rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Mapping returns the enabled rules as an ordered URL mapping.
func (s *RedirectStore) Mapping(ctx context.Context) (rewrite.Mapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_url, target_url
		FROM redirects
		WHERE enabled
		ORDER BY position, id
	`)
	if err != nil {
		return nil, fmt.Errorf("load redirect mapping: %w", err)
	}
	defer rows.Close()

	var pairs []rewrite.Pair
	for rows.Next() {
		var p rewrite.Pair
		if err := rows.Scan(&p.Old, &p.New); err != nil {
			return nil, fmt.Errorf("scan redirect mapping: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load redirect mapping: %w", err)
	}
	return rewrite.NewMapping(pairs...), nil
}

func validateRedirect(r *models.Redirect) error {
	switch {
	case !rewrite.IsURLLike(r.SourceURL):
		return fmt.Errorf("%w: source_url %q must start with /, http:// or https://", ErrInvalidRedirect, r.SourceURL)
	case !rewrite.IsURLLike(r.TargetURL):
		return fmt.Errorf("%w: target_url %q must start with /, http:// or https://", ErrInvalidRedirect, r.TargetURL)
	case r.SourceURL == r.TargetURL:
		return fmt.Errorf("%w: source and target are the same", ErrInvalidRedirect)
	case !models.ValidRedirectStatus(r.StatusCode):
		return fmt.Errorf("%w: status_code %d is not 301, 302, 307 or 308", ErrInvalidRedirect, r.StatusCode)
	}
	return nil
}
