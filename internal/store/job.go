// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"redirclean/internal/jobs"
	"redirclean/internal/models"
)

// JobStore persists cleanup jobs in the rewrite_jobs table as JSONB
// documents. Only the newest retention jobs are kept.
type JobStore struct {
	db        *sql.DB
	retention int
}

// NewJobStore creates a PostgreSQL job store keeping at most retention jobs.
func NewJobStore(db *sql.DB, retention int) *JobStore {
	if retention <= 0 {
		retention = jobs.DefaultRetention
	}
	return &JobStore{db: db, retention: retention}
}

// Save upserts the job document. Inserting a new job prunes the oldest
// jobs beyond the retention limit.
func (s *JobStore) Save(ctx context.Context, job *models.Job) error {
	doc, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	var inserted bool
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO rewrite_jobs (id, status, document, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0)
	`, job.ID, string(job.Status), doc, job.StartedAt, job.UpdatedAt).Scan(&inserted)
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}

	if inserted {
		s.prune(ctx)
	}
	return nil
}

// prune deletes jobs that fall outside the retention window. Failures are
// logged; the job itself was already saved.
func (s *JobStore) prune(ctx context.Context) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM rewrite_jobs
		WHERE id IN (
			SELECT id FROM rewrite_jobs
			ORDER BY started_at DESC, id DESC
			OFFSET $1
		)
	`, s.retention)
	if err != nil {
		slog.Warn("job store prune failed", "error", err)
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Debug("job store pruned old jobs", "count", n)
	}
}

// Load returns the stored job or jobs.ErrJobNotFound.
func (s *JobStore) Load(ctx context.Context, id string) (*models.Job, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT document FROM rewrite_jobs WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jobs.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}

	var job models.Job
	if err := json.Unmarshal(doc, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

// List returns up to limit jobs, most recently started first.
func (s *JobStore) List(ctx context.Context, limit int) ([]*models.Job, error) {
	if limit <= 0 || limit > s.retention {
		limit = s.retention
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document FROM rewrite_jobs
		ORDER BY started_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	list := []*models.Job{}
	for rows.Next() {
		var id string
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		var job models.Job
		if err := json.Unmarshal(doc, &job); err != nil {
			return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
		}
		list = append(list, &job)
	}
	return list, rows.Err()
}
