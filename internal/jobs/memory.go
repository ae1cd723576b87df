// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"redirclean/internal/models"
	"redirclean/internal/rewrite"
)

// MemorySource is an in-memory Source. Every item has a single field
// named "value". IDs are compared as strings, so callers should use
// fixed-width ids to get numeric order.
type MemorySource struct {
	mu     sync.Mutex
	kind   models.SourceKind
	label  string
	mode   rewrite.Mode
	items  map[string]string
	refs   map[string]string
	broken map[string]error

	// WriteErr, when set, is returned by every Write.
	WriteErr error
	// Writes counts successful writes.
	Writes int
}

// NewMemorySource creates an empty source of the given kind.
func NewMemorySource(kind models.SourceKind, label string, mode rewrite.Mode) *MemorySource {
	return &MemorySource{
		kind:   kind,
		label:  label,
		mode:   mode,
		items:  make(map[string]string),
		refs:   make(map[string]string),
		broken: make(map[string]error),
	}
}

// Put adds or replaces an item.
func (s *MemorySource) Put(id, ref, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = value
	s.refs[id] = ref
}

// Break marks an item as unreadable; it is returned with Err set.
func (s *MemorySource) Break(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broken[id] = err
}

// Value returns the stored value of an item.
func (s *MemorySource) Value(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id]
}

func (s *MemorySource) Kind() models.SourceKind { return s.kind }
func (s *MemorySource) Label() string           { return s.label }

func (s *MemorySource) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items), nil
}

func (s *MemorySource) Page(_ context.Context, after string, limit int) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		if id > after {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}

	items := make([]Item, 0, len(ids))
	for _, id := range ids {
		items = append(items, s.item(id))
	}
	return items, nil
}

func (s *MemorySource) Get(_ context.Context, id string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return nil, nil
	}
	it := s.item(id)
	return &it, nil
}

func (s *MemorySource) Write(_ context.Context, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.WriteErr != nil {
		return s.WriteErr
	}
	if _, ok := s.items[item.ID]; !ok {
		return fmt.Errorf("%s %s: not found", s.kind, item.ID)
	}
	for _, f := range item.Fields {
		if f.Name == "value" {
			s.items[item.ID] = f.Value
		}
	}
	s.Writes++
	return nil
}

func (s *MemorySource) item(id string) Item {
	it := Item{
		Kind:   s.kind,
		ID:     id,
		Ref:    s.refs[id],
		Fields: []Field{{Name: "value", Value: s.items[id], Mode: s.mode}},
	}
	if err, ok := s.broken[id]; ok {
		it.Fields = nil
		it.Err = err
	}
	return it
}

// StaticMapping is a MappingProvider that always returns the same mapping.
type StaticMapping rewrite.Mapping

// Mapping returns the static mapping.
func (m StaticMapping) Mapping(_ context.Context) (rewrite.Mapping, error) {
	return rewrite.Mapping(m), nil
}
