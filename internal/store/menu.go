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

// FieldURL is the rewritable link of a menu item.
const FieldURL = "url"

// MenuStore serves navigation menu links to cleanup jobs.
type MenuStore struct {
	db *sql.DB
}

// NewMenuStore creates a new MenuStore with the given database connection.
func NewMenuStore(db *sql.DB) *MenuStore {
	return &MenuStore{db: db}
}

func (s *MenuStore) Kind() models.SourceKind { return models.KindMenuItem }
func (s *MenuStore) Label() string           { return "Menus" }

// Count returns the number of menu items.
func (s *MenuStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM menu_items`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count menu items: %w", err)
	}
	return count, nil
}

// Page returns up to limit menu items with ids after the cursor.
func (s *MenuStore) Page(ctx context.Context, after string, limit int) ([]jobs.Item, error) {
	cursor, err := parseCursor(after)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, menu, title, url, position, updated_at
		FROM menu_items
		WHERE id > $1
		ORDER BY id
		LIMIT $2
	`, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("page menu items: %w", err)
	}
	defer rows.Close()

	var items []jobs.Item
	for rows.Next() {
		var m models.MenuItem
		if err := rows.Scan(&m.ID, &m.Menu, &m.Title, &m.URL, &m.Position, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		items = append(items, menuItem(&m))
	}
	return items, rows.Err()
}

// Get returns a single menu item, or nil if it is gone.
func (s *MenuStore) Get(ctx context.Context, id string) (*jobs.Item, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("menu item id %q: %w", id, err)
	}

	var m models.MenuItem
	err = s.db.QueryRowContext(ctx, `
		SELECT id, menu, title, url, position, updated_at
		FROM menu_items WHERE id = $1
	`, n).Scan(&m.ID, &m.Menu, &m.Title, &m.URL, &m.Position, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find menu item: %w", err)
	}
	item := menuItem(&m)
	return &item, nil
}

// Write saves the URL of item.
func (s *MenuStore) Write(ctx context.Context, item jobs.Item) error {
	n, err := strconv.ParseInt(item.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("menu item id %q: %w", item.ID, err)
	}
	url, ok := item.Values()[FieldURL]
	if !ok {
		return fmt.Errorf("menu item %s: no %s field", item.ID, FieldURL)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE menu_items SET url = $1, updated_at = NOW() WHERE id = $2
	`, url, n)
	if err != nil {
		return fmt.Errorf("update menu item: %w", err)
	}
	return expectOneRow(res, "menu_items", item.ID)
}

func menuItem(m *models.MenuItem) jobs.Item {
	return jobs.Item{
		Kind:   models.KindMenuItem,
		ID:     strconv.FormatInt(m.ID, 10),
		Ref:    m.Menu + "/" + m.Title,
		Fields: []jobs.Field{{Name: FieldURL, Value: m.URL, Mode: rewrite.ModeURL}},
	}
}
