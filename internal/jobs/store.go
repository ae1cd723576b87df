// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"redirclean/internal/models"
)

// DefaultRetention is how many jobs the recent-jobs index keeps.
const DefaultRetention = 50

// Store persists jobs. Each Save replaces the whole record for the job id.
type Store interface {
	Save(ctx context.Context, job *models.Job) error
	// Load returns ErrJobNotFound if the id is unknown.
	Load(ctx context.Context, id string) (*models.Job, error)
	// List returns up to limit jobs, most recently started first.
	List(ctx context.Context, limit int) ([]*models.Job, error)
}

// MemoryStore is an in-process Store. Records are kept serialized so
// callers never share job values with the store.
type MemoryStore struct {
	mu        sync.Mutex
	records   map[string][]byte
	recent    []string
	retention int
}

// NewMemoryStore creates an empty MemoryStore that keeps at most
// retention jobs in its recent index.
func NewMemoryStore(retention int) *MemoryStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryStore{
		records:   make(map[string][]byte),
		retention: retention,
	}
}

// Save stores job and moves it to the front of the recent index.
func (s *MemoryStore) Save(_ context.Context, job *models.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.records[job.ID]
	s.records[job.ID] = payload
	if !exists {
		s.recent = append([]string{job.ID}, s.recent...)
		for len(s.recent) > s.retention {
			evicted := s.recent[len(s.recent)-1]
			s.recent = s.recent[:len(s.recent)-1]
			delete(s.records, evicted)
		}
	}
	return nil
}

// Load returns a copy of the stored job.
func (s *MemoryStore) Load(_ context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	payload, ok := s.records[id]
	s.mu.Unlock()

	if !ok {
		return nil, ErrJobNotFound
	}
	var job models.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

// List returns the most recent jobs first.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]*models.Job, error) {
	s.mu.Lock()
	ids := append([]string(nil), s.recent...)
	s.mu.Unlock()

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	jobs := make([]*models.Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
