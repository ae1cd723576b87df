package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"redirclean/internal/jobs"
	"redirclean/internal/models"
	"redirclean/internal/rewrite"
)

// WidgetStore serves widget settings to cleanup jobs. Each top-level string
// in a widget's settings object is a field; other values are left alone.
type WidgetStore struct {
	db *sql.DB
}

// NewWidgetStore creates a new WidgetStore with the given database connection.
func NewWidgetStore(db *sql.DB) *WidgetStore {
	return &WidgetStore{db: db}
}

func (s *WidgetStore) Kind() models.SourceKind { return models.KindWidget }
func (s *WidgetStore) Label() string           { return "Widgets" }

// Count returns the number of widgets.
func (s *WidgetStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM widgets`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count widgets: %w", err)
	}
	return count, nil
}

// Page returns up to limit widgets with ids after the cursor. A widget whose
// settings are not a JSON object is returned with Err set.
func (s *WidgetStore) Page(ctx context.Context, after string, limit int) ([]jobs.Item, error) {
	cursor, err := parseCursor(after)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, area, widget_type, settings::text, updated_at
		FROM widgets
		WHERE id > $1
		ORDER BY id
		LIMIT $2
	`, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("page widgets: %w", err)
	}
	defer rows.Close()

	var items []jobs.Item
	for rows.Next() {
		var w models.Widget
		if err := rows.Scan(&w.ID, &w.Area, &w.WidgetType, &w.Settings, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan widget: %w", err)
		}
		items = append(items, widgetItem(&w))
	}
	return items, rows.Err()
}

// Get returns a single widget, or nil if it is gone.
func (s *WidgetStore) Get(ctx context.Context, id string) (*jobs.Item, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("widget id %q: %w", id, err)
	}

	var w models.Widget
	err = s.db.QueryRowContext(ctx, `
		SELECT id, area, widget_type, settings::text, updated_at
		FROM widgets WHERE id = $1
	`, n).Scan(&w.ID, &w.Area, &w.WidgetType, &w.Settings, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find widget: %w", err)
	}
	item := widgetItem(&w)
	return &item, nil
}

// Write merges the item's string fields into the settings it was read with
// and saves the result.
func (s *WidgetStore) Write(ctx context.Context, item jobs.Item) error {
	n, err := strconv.ParseInt(item.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("widget id %q: %w", item.ID, err)
	}

	settings, err := mergeSettings(item.Raw, item.Fields)
	if err != nil {
		return fmt.Errorf("widget %s: %w", item.ID, err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE widgets SET settings = $1::jsonb, updated_at = NOW() WHERE id = $2
	`, settings, n)
	if err != nil {
		return fmt.Errorf("update widget: %w", err)
	}
	return expectOneRow(res, "widgets", item.ID)
}

func widgetItem(w *models.Widget) jobs.Item {
	item := jobs.Item{
		Kind: models.KindWidget,
		ID:   strconv.FormatInt(w.ID, 10),
		Ref:  w.Area + "/" + w.WidgetType,
		Raw:  w.Settings,
	}
	fields, err := settingsFields(w.Settings)
	if err != nil {
		item.Err = err
		return item
	}
	item.Fields = fields
	return item
}

// settingsFields decodes a settings object and returns its string values as
// auto-mode fields sorted by key.
func settingsFields(raw string) ([]jobs.Field, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("decode settings: not a JSON object")
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var fields []jobs.Field
	for _, k := range keys {
		var s string
		if err := json.Unmarshal(obj[k], &s); err != nil {
			continue
		}
		fields = append(fields, jobs.Field{Name: k, Value: s, Mode: rewrite.ModeAuto})
	}
	return fields, nil
}

// mergeSettings replaces the string values named by fields in raw and
// re-encodes the object. Values not named by a field are kept as they were.
func mergeSettings(raw string, fields []jobs.Field) (string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return "", fmt.Errorf("decode settings: %w", err)
	}
	if obj == nil {
		obj = make(map[string]json.RawMessage)
	}

	for _, f := range fields {
		v, err := marshalNoEscape(f.Value)
		if err != nil {
			return "", fmt.Errorf("encode setting %s: %w", f.Name, err)
		}
		obj[f.Name] = v
	}

	out, err := marshalNoEscape(obj)
	if err != nil {
		return "", fmt.Errorf("encode settings: %w", err)
	}
	return string(out), nil
}

// marshalNoEscape encodes v without escaping <, > and &.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
