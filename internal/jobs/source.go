// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package jobs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"redirclean/internal/models"
	"redirclean/internal/rewrite"
)

// Field is one rewritable text value of a content item.
type Field struct {
	Name  string
	Value string
	Mode  rewrite.Mode
}

// Item is a single piece of rewritable content read from a Source.
// Raw carries the source's original payload when writing needs it (widget
// settings). Err is set when the payload could not be decoded; such items
// are recorded as errors and skipped.
type Item struct {
	Kind   models.SourceKind
	ID     string
	Ref    string
	Fields []Field
	Raw    string
	Err    error
}

// Values returns the field values keyed by field name.
func (it *Item) Values() map[string]string {
	vals := make(map[string]string, len(it.Fields))
	for _, f := range it.Fields {
		vals[f.Name] = f.Value
	}
	return vals
}

// Digest hashes the item's field values. Rollback compares digests to see
// whether an item changed after the job wrote it.
func (it *Item) Digest() string {
	return digestValues(it.Values())
}

func digestValues(vals map[string]string) string {
	names := make([]string, 0, len(vals))
	for name := range vals {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(vals[name]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Source reads and writes one kind of content in id order.
type Source interface {
	// Kind returns the content kind this source serves.
	Kind() models.SourceKind
	// Label is the human-readable step name shown while the source is active.
	Label() string
	// Count returns the number of items the source currently holds.
	Count(ctx context.Context) (int, error)
	// Page returns up to limit items with ids greater than after, ascending.
	Page(ctx context.Context, after string, limit int) ([]Item, error)
	// Get returns a single item, or nil if it no longer exists.
	Get(ctx context.Context, id string) (*Item, error)
	// Write persists the item's field values.
	Write(ctx context.Context, item Item) error
}

// Sources maps each content kind to its source.
type Sources map[models.SourceKind]Source

// NewSources builds a Sources table from the given sources.
func NewSources(srcs ...Source) Sources {
	table := make(Sources, len(srcs))
	for _, s := range srcs {
		table[s.Kind()] = s
	}
	return table
}

// MappingProvider supplies the default URL mapping for new jobs.
type MappingProvider interface {
	Mapping(ctx context.Context) (rewrite.Mapping, error)
}

// PageInvalidator purges rendered pages after content changes.
type PageInvalidator interface {
	InvalidatePage(ctx context.Context, slug string)
	InvalidateAll(ctx context.Context)
}

// Archiver stores a finished job report outside the job store.
type Archiver interface {
	ArchiveJob(ctx context.Context, job *models.Job) error
}
