// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"redirclean/internal/models"
	"redirclean/internal/rewrite"
)

// RollbackResult summarizes a rollback.
type RollbackResult struct {
	JobID         string   `json:"job_id"`
	ItemsRestored int      `json:"items_restored"`
	ItemsFailed   int      `json:"items_failed"`
	Errors        []string `json:"errors"`
}

// Rollback reverts every item a completed job changed, newest first.
//
// Items whose current content still matches what the job wrote are
// restored exactly from the ledger snapshot. Items edited since then get
// the job's replacements inverted on a best-effort basis; any replacement
// that cannot be fully reverted is reported in the result. Items already
// back at their pre-job content are left alone, so a rollback whose final
// save failed can be retried. The job moves to rolled_back even when some
// items fail.
func (r *Runner) Rollback(ctx context.Context, id string) (*RollbackResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx = context.WithoutCancel(ctx)

	job, err := r.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobCompleted {
		return nil, fmt.Errorf("job %s is %s: %w", job.ID, job.Status, ErrNotRollbackable)
	}
	if job.Options.DryRun {
		return nil, fmt.Errorf("job %s: %w", job.ID, ErrDryRunJob)
	}

	res := &RollbackResult{JobID: job.ID, Errors: []string{}}
	effects := &batchEffects{}

	for i := len(job.Ledger) - 1; i >= 0; i-- {
		entry := job.Ledger[i]
		errs := r.restore(ctx, entry, effects)
		if len(errs) == 0 {
			res.ItemsRestored++
			continue
		}
		res.ItemsFailed++
		for _, e := range errs {
			if len(res.Errors) < models.MaxJobErrors {
				res.Errors = append(res.Errors, e.Error())
			}
			slog.Warn("url cleanup rollback item", "job_id", job.ID, "error", e)
		}
	}

	now := r.now()
	job.Rollback = &models.RollbackInfo{
		RolledBackAt:  now,
		ItemsRestored: res.ItemsRestored,
		ItemsFailed:   res.ItemsFailed,
		Errors:        res.Errors,
	}
	if err := job.TransitionTo(models.JobRolledBack, now); err != nil {
		return nil, err
	}
	job.Progress.CurrentStep = "Rolled back"

	if err := r.store.Save(ctx, job); err != nil {
		slog.Error("url cleanup rollback not persisted", "job_id", job.ID, "error", err)
		return res, &StorageError{Op: "save", JobID: job.ID, Err: err}
	}

	r.applyEffects(ctx, job, effects)
	r.metrics.Job("rolled_back")
	r.archive(ctx, job)

	slog.Info("url cleanup job rolled back",
		"job_id", job.ID,
		"restored", res.ItemsRestored,
		"failed", res.ItemsFailed,
	)
	return res, nil
}

// restore reverts a single ledger entry and returns the problems found.
func (r *Runner) restore(ctx context.Context, entry models.LedgerEntry, effects *batchEffects) []error {
	itemErr := func(op string, err error) *ItemError {
		return &ItemError{Kind: entry.Kind, ID: entry.ItemID, Op: op, Err: err}
	}

	src, ok := r.sources[entry.Kind]
	if !ok {
		return []error{itemErr("rollback", fmt.Errorf("no source configured"))}
	}

	item, err := src.Get(ctx, entry.ItemID)
	if err != nil {
		return []error{itemErr("read", err)}
	}
	if item == nil {
		return []error{itemErr("rollback", fmt.Errorf("item no longer exists"))}
	}
	if item.Err != nil {
		return []error{itemErr("read", item.Err)}
	}

	// Already back at its pre-job content, e.g. when retrying a rollback
	// whose final save failed.
	if entry.Before != nil && item.Digest() == digestValues(entry.Before) {
		return nil
	}

	var errs []error
	out := *item
	out.Fields = make([]Field, len(item.Fields))
	copy(out.Fields, item.Fields)

	if entry.Before != nil && item.Digest() == entry.AfterDigest {
		for i, f := range out.Fields {
			if v, ok := entry.Before[f.Name]; ok {
				out.Fields[i].Value = v
			}
		}
	} else {
		errs = revertChanges(out.Fields, entry.FieldChanges, entry.Changes)
		for i, e := range errs {
			errs[i] = itemErr("rollback", e)
		}
	}

	if err := src.Write(ctx, out); err != nil {
		return append(errs, itemErr("write", err))
	}
	effects.note(out)
	return errs
}

// revertChanges applies the inverse of the recorded changes to fields in
// place and reports changes that could not be fully reverted. Each field is
// reverted with its own changes, last change first. Entries without
// per-field records fall back to inverting the merged list on every field.
func revertChanges(fields []Field, byField map[string][]rewrite.Change, merged []rewrite.Change) []error {
	// Slash collapsing cannot be undone, so only the replacements are
	// inverted.
	rw := rewrite.New(rewrite.Options{Relative: true, Absolute: true})

	var errs []error
	if len(byField) == 0 {
		for i := len(merged) - 1; i >= 0; i-- {
			c := merged[i]
			reverted := 0
			for j := range fields {
				reverted += invertChange(rw, &fields[j], c)
			}
			if reverted < c.Count {
				errs = append(errs, fmt.Errorf("reverted %d of %d replacements of %q with %q", reverted, c.Count, c.Old, c.New))
			}
		}
		return errs
	}

	for j := range fields {
		changes := byField[fields[j].Name]
		for i := len(changes) - 1; i >= 0; i-- {
			c := changes[i]
			if reverted := invertChange(rw, &fields[j], c); reverted < c.Count {
				errs = append(errs, fmt.Errorf("field %s: reverted %d of %d replacements of %q with %q", fields[j].Name, reverted, c.Count, c.Old, c.New))
			}
		}
	}
	return errs
}

func invertChange(rw *rewrite.Rewriter, f *Field, c rewrite.Change) int {
	res := rw.Apply(f.Value, f.Mode, rewrite.Mapping{{Old: c.New, New: c.Old}})
	f.Value = res.Content
	return res.Replacements()
}
