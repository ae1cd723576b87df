// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"redirclean/internal/jobs"
	"redirclean/internal/models"
	"redirclean/internal/rewrite"
)

// Content field names exposed to the rewriter.
const (
	FieldBody    = "body"
	FieldExcerpt = "excerpt"
)

// ContentStore handles content database operations and serves posts and
// pages to cleanup jobs. Items are paged by UUID.
type ContentStore struct {
	db *sql.DB
}

// NewContentStore creates a new ContentStore with the given database connection.
func NewContentStore(db *sql.DB) *ContentStore {
	return &ContentStore{db: db}
}

func (s *ContentStore) Kind() models.SourceKind { return models.KindPost }
func (s *ContentStore) Label() string           { return "Posts and pages" }

// Count returns the number of posts and pages.
func (s *ContentStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count content: %w", err)
	}
	return count, nil
}

// Page returns up to limit content items with ids after the cursor.
func (s *ContentStore) Page(ctx context.Context, after string, limit int) ([]jobs.Item, error) {
	cursor := uuid.Nil
	if after != "" {
		var err error
		if cursor, err = uuid.Parse(after); err != nil {
			return nil, fmt.Errorf("content cursor %q: %w", after, err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, title, slug, body, excerpt, status, created_at, updated_at
		FROM content
		WHERE id > $1
		ORDER BY id
		LIMIT $2
	`, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("page content: %w", err)
	}
	defer rows.Close()

	var items []jobs.Item
	for rows.Next() {
		var c models.Content
		if err := rows.Scan(
			&c.ID, &c.Type, &c.Title, &c.Slug, &c.Body, &c.Excerpt,
			&c.Status, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		items = append(items, contentItem(&c))
	}
	return items, rows.Err()
}

// Get returns the content item with the given id, or nil if it is gone.
func (s *ContentStore) Get(ctx context.Context, id string) (*jobs.Item, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("content id %q: %w", id, err)
	}
	c, err := s.FindByID(ctx, uid)
	if err != nil || c == nil {
		return nil, err
	}
	item := contentItem(c)
	return &item, nil
}

// Write saves the body and, when present, the excerpt of item.
func (s *ContentStore) Write(ctx context.Context, item jobs.Item) error {
	uid, err := uuid.Parse(item.ID)
	if err != nil {
		return fmt.Errorf("content id %q: %w", item.ID, err)
	}

	var body sql.NullString
	var excerpt sql.NullString
	for _, f := range item.Fields {
		switch f.Name {
		case FieldBody:
			body = sql.NullString{String: f.Value, Valid: true}
		case FieldExcerpt:
			excerpt = sql.NullString{String: f.Value, Valid: true}
		}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE content SET
			body = COALESCE($1, body),
			excerpt = COALESCE($2, excerpt),
			updated_at = NOW()
		WHERE id = $3
	`, body, excerpt, uid)
	if err != nil {
		return fmt.Errorf("update content: %w", err)
	}
	return expectOneRow(res, "content", item.ID)
}

// FindByID retrieves a content item by its UUID. Returns nil if not found.
func (s *ContentStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Content, error) {
	c := &models.Content{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, type, title, slug, body, excerpt, status, created_at, updated_at
		FROM content WHERE id = $1
	`, id).Scan(
		&c.ID, &c.Type, &c.Title, &c.Slug, &c.Body, &c.Excerpt,
		&c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find content by id: %w", err)
	}
	return c, nil
}

func contentItem(c *models.Content) jobs.Item {
	item := jobs.Item{
		Kind:   models.KindPost,
		ID:     c.ID.String(),
		Ref:    c.Slug,
		Fields: []jobs.Field{{Name: FieldBody, Value: c.Body, Mode: rewrite.ModeHTML}},
	}
	if c.Excerpt != nil {
		item.Fields = append(item.Fields, jobs.Field{Name: FieldExcerpt, Value: *c.Excerpt, Mode: rewrite.ModeHTML})
	}
	return item
}

// expectOneRow turns an UPDATE that matched nothing into an error.
func expectOneRow(res sql.Result, table, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s rows affected: %w", table, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", table, id, sql.ErrNoRows)
	}
	return nil
}
