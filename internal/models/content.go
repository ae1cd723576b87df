// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// ContentType distinguishes between posts and pages in the unified content table.
type ContentType string

const (
	ContentTypePost ContentType = "post"
	ContentTypePage ContentType = "page"
)

// ContentStatus represents the publishing state of a content item.
type ContentStatus string

const (
	ContentStatusDraft     ContentStatus = "draft"
	ContentStatusPublished ContentStatus = "published"
)

// Content represents a post or page. Posts and pages share the same table,
// differentiated by the Type field. Body and Excerpt are the rewritable parts.
type Content struct {
	ID        uuid.UUID     `json:"id"`
	Type      ContentType   `json:"type"`
	Title     string        `json:"title"`
	Slug      string        `json:"slug"`
	Body      string        `json:"body"`
	Excerpt   *string       `json:"excerpt,omitempty"`
	Status    ContentStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ContentMeta is a custom field attached to a content item.
type ContentMeta struct {
	ID        int64     `json:"id"`
	ContentID uuid.UUID `json:"content_id"`
	Key       string    `json:"meta_key"`
	Value     string    `json:"meta_value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MenuItem is a single link in a navigation menu.
type MenuItem struct {
	ID        int64     `json:"id"`
	Menu      string    `json:"menu"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Position  int       `json:"position"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Widget is a sidebar/footer block. Settings holds the widget's JSON
// configuration object.
type Widget struct {
	ID         int64     `json:"id"`
	Area       string    `json:"area"`
	WidgetType string    `json:"widget_type"`
	Settings   string    `json:"settings"`
	UpdatedAt  time.Time `json:"updated_at"`
}
