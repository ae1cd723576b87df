// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package jobs runs URL cleanup jobs: it walks content sources in bounded
// batches, rewrites redirected URLs, persists progress after every batch
// and can roll a completed job back.
//
// Execution is driven by the caller. Each ProcessBatch call handles at
// most one batch and returns; the caller polls until the job is terminal.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"redirclean/internal/metrics"
	"redirclean/internal/models"
	"redirclean/internal/rewrite"
)

// maxPageFailures is how many times reading the same page may fail before
// the rest of that source is skipped.
const maxPageFailures = 3

// Runner creates jobs and processes their batches.
type Runner struct {
	store     Store
	sources   Sources
	redirects MappingProvider

	pages    PageInvalidator
	archiver Archiver
	metrics  *metrics.Metrics

	now   func() time.Time
	newID func() string

	// mu serializes batches and rollbacks within this process.
	mu sync.Mutex

	// pageFailures counts consecutive page read failures per job and kind.
	pageFailures map[string]int
}

// NewRunner creates a Runner. redirects supplies the mapping when Start is
// called without one and may be nil if callers always pass a mapping.
func NewRunner(store Store, sources Sources, redirects MappingProvider) *Runner {
	return &Runner{
		store:        store,
		sources:      sources,
		redirects:    redirects,
		now:          time.Now,
		newID:        uuid.NewString,
		pageFailures: make(map[string]int),
	}
}

// SetPageCache wires the page cache that is purged after content changes.
func (r *Runner) SetPageCache(pages PageInvalidator) {
	r.pages = pages
}

// SetArchiver wires the archive that receives finished job reports.
func (r *Runner) SetArchiver(archiver Archiver) {
	r.archiver = archiver
}

// SetMetrics wires the Prometheus counters.
func (r *Runner) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// Start validates opts, snapshots the URL mapping and stores a new queued
// job. When mapping is nil the redirects provider is asked for one.
func (r *Runner) Start(ctx context.Context, opts models.JobOptions, mapping rewrite.Mapping) (*models.Job, error) {
	if !opts.ContentTypes.Any() {
		return nil, fmt.Errorf("%w: no content types enabled", ErrInvalidOptions)
	}
	opts = opts.Normalized()

	if mapping == nil {
		if r.redirects == nil {
			return nil, fmt.Errorf("%w: no mapping given and no redirect provider configured", ErrInvalidOptions)
		}
		var err error
		mapping, err = r.redirects.Mapping(ctx)
		if err != nil {
			return nil, fmt.Errorf("load redirect mapping: %w", err)
		}
	}

	valid, rejected := mapping.Valid()
	for _, p := range rejected {
		slog.Warn("skipping mapping entry", "old", p.Old, "new", p.New, "reason", p.Problem())
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: mapping has no usable URL entries", ErrInvalidOptions)
	}

	now := r.now()
	job := &models.Job{
		ID:      r.newID(),
		Status:  models.JobQueued,
		Options: opts,
		Mapping: valid,
		Progress: models.Progress{
			CurrentStep: "Queued",
			Errors:      []string{},
		},
		StartedAt: now,
		UpdatedAt: now,
	}

	for _, kind := range models.SourceOrder {
		if !opts.ContentTypes.Enabled(kind) {
			continue
		}
		src, ok := r.sources[kind]
		if !ok {
			return nil, fmt.Errorf("%w: no source configured for %s", ErrInvalidOptions, kind)
		}
		n, err := src.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", kind, err)
		}
		job.Progress.TotalItems += n
		job.Cursor(kind)
	}

	if err := r.store.Save(ctx, job); err != nil {
		return nil, &StorageError{Op: "save", JobID: job.ID, Err: err}
	}

	r.metrics.Job("started")
	slog.Info("url cleanup job started",
		"job_id", job.ID,
		"total_items", job.Progress.TotalItems,
		"mappings", len(valid),
		"rejected_mappings", len(rejected),
		"batch_size", opts.BatchSize,
		"dry_run", opts.DryRun,
	)
	return job, nil
}

// Progress returns the stored state of a job.
func (r *Runner) Progress(ctx context.Context, id string) (*models.Job, error) {
	return r.store.Load(ctx, id)
}

// List returns the most recent jobs.
func (r *Runner) List(ctx context.Context, limit int) ([]*models.Job, error) {
	return r.store.List(ctx, limit)
}

// batchEffects collects what a batch touched so caches can be purged.
type batchEffects struct {
	slugs    []string
	purgeAll bool
}

// ProcessBatch runs the next batch of a job and returns its updated state.
// A terminal job is returned unchanged together with ErrJobTerminal. If the
// job state cannot be saved the job is marked failed and a *StorageError
// is returned alongside the failed job.
//
// Once started a batch runs to completion even if ctx is cancelled.
func (r *Runner) ProcessBatch(ctx context.Context, id string) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	started := r.now()

	job, err := r.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		r.metrics.Batch("rejected", 0)
		return job, fmt.Errorf("job %s is %s: %w", job.ID, job.Status, ErrJobTerminal)
	}

	if job.Status == models.JobQueued {
		if err := job.TransitionTo(models.JobProcessing, started); err != nil {
			return nil, err
		}
	}

	rw := rewrite.New(job.Options.URLHandling)
	effects := &batchEffects{}
	remaining := job.Options.BatchSize

	for _, kind := range models.SourceOrder {
		if remaining <= 0 {
			break
		}
		if !job.Options.ContentTypes.Enabled(kind) {
			continue
		}
		cur := job.Cursor(kind)
		if cur.Done {
			continue
		}

		src, ok := r.sources[kind]
		if !ok {
			job.Progress.AddError(fmt.Sprintf("%s: no source configured, skipped", kind))
			cur.Done = true
			continue
		}
		job.Progress.CurrentStep = src.Label()

		items, err := src.Page(ctx, cur.After, remaining)
		if err != nil {
			if r.pageFailed(job, kind, cur, err) {
				continue
			}
			break
		}
		delete(r.pageFailures, job.ID+"/"+string(kind))

		for _, item := range items {
			r.processItem(ctx, job, src, rw, item, effects)
			cur.After = item.ID
			cur.Processed++
			job.Progress.ProcessedItems++
		}

		if len(items) < remaining {
			cur.Done = true
		}
		remaining -= len(items)
	}

	if job.Progress.ProcessedItems > job.Progress.TotalItems {
		job.Progress.TotalItems = job.Progress.ProcessedItems
	}

	finished := r.now()
	if r.allSourcesDone(job) {
		if err := job.TransitionTo(models.JobCompleted, finished); err != nil {
			return nil, err
		}
		job.Progress.CurrentStep = "Completed"
	}
	job.UpdatedAt = finished

	if err := r.store.Save(ctx, job); err != nil {
		return r.failJob(ctx, job, err, started, finished)
	}

	r.metrics.Batch("ok", finished.Sub(started))
	r.applyEffects(ctx, job, effects)

	slog.Info("url cleanup batch processed",
		"job_id", job.ID,
		"status", job.Status,
		"processed", job.Progress.ProcessedItems,
		"total", job.Progress.TotalItems,
		"updated", job.Progress.UpdatedItems,
		"step", job.Progress.CurrentStep,
	)

	if job.Status == models.JobCompleted {
		r.metrics.Job("completed")
		r.archive(ctx, job)
		slog.Info("url cleanup job completed",
			"job_id", job.ID,
			"replacements", job.Results.TotalURLReplacements,
			"errors", len(job.Progress.Errors),
		)
	}
	return job, nil
}

// processItem rewrites one item and, unless the job is a dry run, writes
// it back. Failures are recorded on the job and the item is skipped.
func (r *Runner) processItem(ctx context.Context, job *models.Job, src Source, rw *rewrite.Rewriter, item Item, effects *batchEffects) {
	kind := string(item.Kind)

	if item.Err != nil {
		r.recordItemError(job, &ItemError{Kind: item.Kind, ID: item.ID, Op: "read", Err: item.Err})
		return
	}

	var changes []rewrite.Change
	byField := make(map[string][]rewrite.Change)
	updated := make([]Field, len(item.Fields))
	for i, f := range item.Fields {
		res := rw.Apply(f.Value, f.Mode, job.Mapping)
		changes = rewrite.MergeChanges(changes, res.Changes)
		if len(res.Changes) > 0 {
			byField[f.Name] = res.Changes
		}
		updated[i] = Field{Name: f.Name, Value: res.Content, Mode: f.Mode}
	}

	if len(changes) == 0 {
		r.metrics.Item(kind, 0, job.Options.DryRun)
		return
	}

	entry := models.LedgerEntry{
		Kind:    item.Kind,
		ItemID:  item.ID,
		Ref:     item.Ref,
		Changes: changes,
	}

	if !job.Options.DryRun {
		out := item
		out.Fields = updated
		if err := src.Write(ctx, out); err != nil {
			r.recordItemError(job, &ItemError{Kind: item.Kind, ID: item.ID, Op: "write", Err: err})
			return
		}
		entry.Before = item.Values()
		entry.AfterDigest = out.Digest()
		entry.FieldChanges = byField
		effects.note(item)
	}

	replacements := rewrite.CountReplacements(changes)
	job.Ledger = append(job.Ledger, entry)
	job.Progress.UpdatedItems++
	job.Results.AddUpdated(item.Kind, replacements)
	r.metrics.Item(kind, replacements, job.Options.DryRun)
}

func (r *Runner) recordItemError(job *models.Job, err *ItemError) {
	slog.Warn("url cleanup item skipped", "job_id", job.ID, "error", err)
	job.Progress.AddError(err.Error())
	r.metrics.ItemError(string(err.Kind))
}

// pageFailed records a page read failure. It returns true once the source
// has failed often enough to be skipped for the rest of the job.
func (r *Runner) pageFailed(job *models.Job, kind models.SourceKind, cur *models.Cursor, err error) bool {
	key := job.ID + "/" + string(kind)
	r.pageFailures[key]++
	failures := r.pageFailures[key]

	slog.Warn("url cleanup page read failed", "job_id", job.ID, "kind", kind, "after", cur.After, "attempt", failures, "error", err)
	job.Progress.AddError(fmt.Sprintf("%s: read page after %q: %v", kind, cur.After, err))

	if failures < maxPageFailures {
		return false
	}
	delete(r.pageFailures, key)
	cur.Done = true
	job.Progress.AddError(fmt.Sprintf("%s: giving up after %d failed reads, remaining items skipped", kind, failures))
	return true
}

func (r *Runner) allSourcesDone(job *models.Job) bool {
	for _, kind := range models.SourceOrder {
		if !job.Options.ContentTypes.Enabled(kind) {
			continue
		}
		if !job.Cursor(kind).Done {
			return false
		}
	}
	return true
}

// failJob marks the job failed after a save error and makes one attempt to
// persist the failed state.
func (r *Runner) failJob(ctx context.Context, job *models.Job, saveErr error, started, now time.Time) (*models.Job, error) {
	reason := fmt.Sprintf("save job state: %v", saveErr)
	if job.Status.Terminal() && job.Status != models.JobFailed {
		// The stored record still says processing.
		job.Status = models.JobProcessing
		job.CompletedAt = nil
	}
	if err := job.Fail(reason, now); err != nil {
		slog.Error("url cleanup job could not be marked failed", "job_id", job.ID, "error", err)
	}

	if err := r.store.Save(ctx, job); err != nil {
		slog.Error("url cleanup failed state not persisted", "job_id", job.ID, "error", err)
	}

	r.metrics.Batch("failed", now.Sub(started))
	r.metrics.Job("failed")
	slog.Error("url cleanup job failed", "job_id", job.ID, "error", saveErr)
	return job, &StorageError{Op: "save", JobID: job.ID, Err: saveErr}
}

func (e *batchEffects) note(item Item) {
	switch item.Kind {
	case models.KindPost:
		if item.Ref != "" {
			e.slugs = append(e.slugs, item.Ref)
		}
	default:
		// Custom fields, menus and widgets can show up on any page.
		e.purgeAll = true
	}
}

func (r *Runner) applyEffects(ctx context.Context, job *models.Job, e *batchEffects) {
	if r.pages == nil {
		return
	}
	if e.purgeAll {
		r.pages.InvalidateAll(ctx)
		return
	}
	for _, slug := range e.slugs {
		r.pages.InvalidatePage(ctx, slug)
	}
	if len(e.slugs) > 0 {
		slog.Debug("page cache purged for rewritten posts", "job_id", job.ID, "pages", len(e.slugs))
	}
}

func (r *Runner) archive(ctx context.Context, job *models.Job) {
	if r.archiver == nil {
		return
	}
	if err := r.archiver.ArchiveJob(ctx, job.Report()); err != nil {
		slog.Warn("url cleanup report not archived", "job_id", job.ID, "error", err)
	}
}

// IsClientError reports whether err was caused by the request rather than
// by the server.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidOptions) ||
		errors.Is(err, ErrJobNotFound) ||
		errors.Is(err, ErrJobTerminal) ||
		errors.Is(err, ErrNotRollbackable) ||
		errors.Is(err, ErrDryRunJob)
}
