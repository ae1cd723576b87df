// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"redirclean/internal/jobs"
	"redirclean/internal/models"
)

const (
	jobKeyPrefix  = "rewrite:job:"
	recentJobsKey = "rewrite:jobs:recent"
)

// JobStore persists jobs in Valkey: one JSON record per job plus a capped
// list of recent job ids, newest first.
type JobStore struct {
	client    *redis.Client
	retention int
}

// NewJobStore creates a Valkey job store keeping at most retention jobs.
func NewJobStore(client *redis.Client, retention int) *JobStore {
	if retention <= 0 {
		retention = jobs.DefaultRetention
	}
	return &JobStore{client: client, retention: retention}
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

// Save writes the job record. A job seen for the first time is pushed onto
// the recent index and jobs falling off the end of it are deleted.
func (s *JobStore) Save(ctx context.Context, job *models.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	exists, err := s.client.Exists(ctx, jobKey(job.ID)).Result()
	if err != nil {
		return fmt.Errorf("check job %s: %w", job.ID, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, jobKey(job.ID), payload, 0)
		if exists == 0 {
			pipe.LRem(ctx, recentJobsKey, 0, job.ID)
			pipe.LPush(ctx, recentJobsKey, job.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}

	if exists == 0 {
		s.evict(ctx)
	}
	return nil
}

// evict trims the recent index to the retention limit and deletes the
// records of jobs that fell off. Failures are logged; the job itself was
// already saved.
func (s *JobStore) evict(ctx context.Context) {
	stale, err := s.client.LRange(ctx, recentJobsKey, int64(s.retention), -1).Result()
	if err != nil {
		slog.Warn("job store eviction scan failed", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	keys := make([]string, len(stale))
	for i, id := range stale {
		keys[i] = jobKey(id)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.LTrim(ctx, recentJobsKey, 0, int64(s.retention-1))
		return nil
	})
	if err != nil {
		slog.Warn("job store eviction failed", "error", err)
		return
	}
	slog.Debug("job store evicted old jobs", "count", len(stale))
}

// Load returns the stored job or jobs.ErrJobNotFound.
func (s *JobStore) Load(ctx context.Context, id string) (*models.Job, error) {
	payload, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, jobs.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}

	var job models.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

// List returns up to limit jobs from the recent index, newest first.
// Ids whose record has disappeared are skipped.
func (s *JobStore) List(ctx context.Context, limit int) ([]*models.Job, error) {
	if limit <= 0 || limit > s.retention {
		limit = s.retention
	}

	ids, err := s.client.LRange(ctx, recentJobsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list recent jobs: %w", err)
	}
	if len(ids) == 0 {
		return []*models.Job{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = jobKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load recent jobs: %w", err)
	}

	list := make([]*models.Job, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var job models.Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return nil, fmt.Errorf("unmarshal job %s: %w", ids[i], err)
		}
		list = append(list, &job)
	}
	return list, nil
}
