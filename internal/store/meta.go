package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"redirclean/internal/jobs"
	"redirclean/internal/models"
	"redirclean/internal/rewrite"
)

// FieldMetaValue is the only rewritable field of a custom field.
const FieldMetaValue = "meta_value"

// MetaStore serves custom field values to cleanup jobs.
type MetaStore struct {
	db *sql.DB
}

// NewMetaStore creates a new MetaStore with the given database connection.
func NewMetaStore(db *sql.DB) *MetaStore {
	return &MetaStore{db: db}
}

func (s *MetaStore) Kind() models.SourceKind { return models.KindCustomField }
func (s *MetaStore) Label() string           { return "Custom fields" }

// Count returns the number of custom field rows.
func (s *MetaStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content_meta`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count content meta: %w", err)
	}
	return count, nil
}

// Page returns up to limit custom fields with ids after the cursor.
func (s *MetaStore) Page(ctx context.Context, after string, limit int) ([]jobs.Item, error) {
	cursor, err := parseCursor(after)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content_id, meta_key, meta_value, updated_at
		FROM content_meta
		WHERE id > $1
		ORDER BY id
		LIMIT $2
	`, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("page content meta: %w", err)
	}
	defer rows.Close()

	var items []jobs.Item
	for rows.Next() {
		var m models.ContentMeta
		if err := rows.Scan(&m.ID, &m.ContentID, &m.Key, &m.Value, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan content meta: %w", err)
		}
		items = append(items, metaItem(&m))
	}
	return items, rows.Err()
}

// Get returns a single custom field, or nil if it is gone.
func (s *MetaStore) Get(ctx context.Context, id string) (*jobs.Item, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("content meta id %q: %w", id, err)
	}

	var m models.ContentMeta
	err = s.db.QueryRowContext(ctx, `
		SELECT id, content_id, meta_key, meta_value, updated_at
		FROM content_meta WHERE id = $1
	`, n).Scan(&m.ID, &m.ContentID, &m.Key, &m.Value, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find content meta: %w", err)
	}
	item := metaItem(&m)
	return &item, nil
}

// Write saves the meta value of item.
func (s *MetaStore) Write(ctx context.Context, item jobs.Item) error {
	n, err := strconv.ParseInt(item.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("content meta id %q: %w", item.ID, err)
	}
	value, ok := item.Values()[FieldMetaValue]
	if !ok {
		return fmt.Errorf("content meta %s: no %s field", item.ID, FieldMetaValue)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE content_meta SET meta_value = $1, updated_at = NOW() WHERE id = $2
	`, value, n)
	if err != nil {
		return fmt.Errorf("update content meta: %w", err)
	}
	return expectOneRow(res, "content_meta", item.ID)
}

func metaItem(m *models.ContentMeta) jobs.Item {
	return jobs.Item{
		Kind:   models.KindCustomField,
		ID:     strconv.FormatInt(m.ID, 10),
		Ref:    m.Key,
		Fields: []jobs.Field{{Name: FieldMetaValue, Value: m.Value, Mode: rewrite.ModeAuto}},
	}
}

// parseCursor converts a numeric keyset cursor; the empty cursor is 0.
func parseCursor(after string) (int64, error) {
	if after == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(after, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cursor %q: %w", after, err)
	}
	return n, nil
}
