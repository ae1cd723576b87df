// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"errors"
	"fmt"
	"time"

	"redirclean/internal/rewrite"
)

// JobStatus is the lifecycle state of a URL cleanup job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobRolledBack JobStatus = "rolled_back"
)

// Terminal returns true once no further batches may run.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobRolledBack
}

// jobTransitions lists the allowed forward moves.
var jobTransitions = map[JobStatus][]JobStatus{
	JobQueued:     {JobProcessing, JobFailed},
	JobProcessing: {JobCompleted, JobFailed},
	JobCompleted:  {JobRolledBack},
}

// ErrInvalidTransition is returned when a status change would move a job
// backwards or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid job status transition")

// SourceKind tags the kind of content a job rewrites.
type SourceKind string

const (
	KindPost        SourceKind = "post"
	KindCustomField SourceKind = "custom_field"
	KindMenuItem    SourceKind = "menu_item"
	KindWidget      SourceKind = "widget"
)

// SourceOrder is the fixed order in which content types are processed.
var SourceOrder = []SourceKind{KindPost, KindCustomField, KindMenuItem, KindWidget}

// Batch size bounds.
const (
	DefaultBatchSize = 50
	MinBatchSize     = 10
	MaxBatchSize     = 200

	// MaxJobErrors caps the number of error messages kept on a job.
	MaxJobErrors = 200
)

// ContentTypes toggles which content sources a job walks.
type ContentTypes struct {
	Posts        bool `json:"posts"`
	CustomFields bool `json:"custom_fields"`
	Menus        bool `json:"menus"`
	Widgets      bool `json:"widgets"`
}

// Enabled reports whether kind is switched on.
func (c ContentTypes) Enabled(kind SourceKind) bool {
	switch kind {
	case KindPost:
		return c.Posts
	case KindCustomField:
		return c.CustomFields
	case KindMenuItem:
		return c.Menus
	case KindWidget:
		return c.Widgets
	}
	return false
}

// Any reports whether at least one content type is enabled.
func (c ContentTypes) Any() bool {
	return c.Posts || c.CustomFields || c.Menus || c.Widgets
}

// JobOptions is the processing configuration captured when a job starts.
// It never changes for the lifetime of the job.
type JobOptions struct {
	ContentTypes ContentTypes    `json:"content_types"`
	BatchSize    int             `json:"batch_size"`
	DryRun       bool            `json:"dry_run"`
	URLHandling  rewrite.Options `json:"url_handling"`
}

// DefaultJobOptions enables every content type and URL strategy.
func DefaultJobOptions() JobOptions {
	return JobOptions{
		ContentTypes: ContentTypes{Posts: true, CustomFields: true, Menus: true, Widgets: true},
		BatchSize:    DefaultBatchSize,
		URLHandling:  rewrite.DefaultOptions(),
	}
}

// Normalized returns a copy with the batch size defaulted and clamped.
func (o JobOptions) Normalized() JobOptions {
	switch {
	case o.BatchSize <= 0:
		o.BatchSize = DefaultBatchSize
	case o.BatchSize < MinBatchSize:
		o.BatchSize = MinBatchSize
	case o.BatchSize > MaxBatchSize:
		o.BatchSize = MaxBatchSize
	}
	return o
}

// Progress tracks how far a job has walked its sources.
type Progress struct {
	TotalItems     int      `json:"total_items"`
	ProcessedItems int      `json:"processed_items"`
	UpdatedItems   int      `json:"updated_items"`
	CurrentStep    string   `json:"current_step"`
	Errors         []string `json:"errors"`
	DroppedErrors  int      `json:"dropped_errors,omitempty"`
}

// AddError appends msg unless the error list is full.
func (p *Progress) AddError(msg string) {
	if len(p.Errors) >= MaxJobErrors {
		p.DroppedErrors++
		return
	}
	p.Errors = append(p.Errors, msg)
}

// Results counts updated items per content type.
type Results struct {
	PostsUpdated         int `json:"posts_updated"`
	CustomFieldsUpdated  int `json:"custom_fields_updated"`
	MenusUpdated         int `json:"menus_updated"`
	WidgetsUpdated       int `json:"widgets_updated"`
	TotalURLReplacements int `json:"total_url_replacements"`
}

// AddUpdated bumps the counter for kind.
func (r *Results) AddUpdated(kind SourceKind, replacements int) {
	switch kind {
	case KindPost:
		r.PostsUpdated++
	case KindCustomField:
		r.CustomFieldsUpdated++
	case KindMenuItem:
		r.MenusUpdated++
	case KindWidget:
		r.WidgetsUpdated++
	}
	r.TotalURLReplacements += replacements
}

// Cursor is the keyset position of a job inside one content source.
type Cursor struct {
	After     string `json:"after"`
	Done      bool   `json:"done"`
	Processed int    `json:"processed"`
}

// LedgerEntry records the changes made to one content item. Before holds
// the original field values and is only kept for real (non dry-run) jobs.
type LedgerEntry struct {
	Kind        SourceKind        `json:"kind"`
	ItemID      string            `json:"item_id"`
	Ref         string            `json:"ref,omitempty"`
	Changes     []rewrite.Change  `json:"changes"`
	Before      map[string]string `json:"before,omitempty"`
	AfterDigest string            `json:"after_digest,omitempty"`

	// FieldChanges holds the changes made to each field, in the order
	// they were applied. Rollback inverts each field on its own.
	FieldChanges map[string][]rewrite.Change `json:"field_changes,omitempty"`
}

// RollbackInfo describes the outcome of rolling a job back.
type RollbackInfo struct {
	RolledBackAt  time.Time `json:"rolled_back_at"`
	ItemsRestored int       `json:"items_restored"`
	ItemsFailed   int       `json:"items_failed"`
	Errors        []string  `json:"errors"`
}

// Job is a URL cleanup run and its persisted state.
type Job struct {
	ID          string                 `json:"id"`
	Status      JobStatus              `json:"status"`
	Progress    Progress               `json:"progress"`
	Results     Results                `json:"results"`
	Options     JobOptions             `json:"options"`
	Mapping     rewrite.Mapping        `json:"mapping"`
	Cursors     map[SourceKind]*Cursor `json:"cursors"`
	Ledger      []LedgerEntry          `json:"ledger,omitempty"`
	Rollback    *RollbackInfo          `json:"rollback,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Error       *string                `json:"error"`
}

// TransitionTo moves the job to next if the move is allowed. Entering
// completed or failed stamps CompletedAt.
func (j *Job) TransitionTo(next JobStatus, now time.Time) error {
	for _, allowed := range jobTransitions[j.Status] {
		if allowed != next {
			continue
		}
		j.Status = next
		j.UpdatedAt = now
		if next == JobCompleted || next == JobFailed {
			j.CompletedAt = &now
		}
		return nil
	}
	return fmt.Errorf("job %s: %s -> %s: %w", j.ID, j.Status, next, ErrInvalidTransition)
}

// Fail moves the job to failed and records the reason.
func (j *Job) Fail(reason string, now time.Time) error {
	if err := j.TransitionTo(JobFailed, now); err != nil {
		return err
	}
	j.Error = &reason
	return nil
}

// Cursor returns the cursor for kind, creating it if needed.
func (j *Job) Cursor(kind SourceKind) *Cursor {
	if j.Cursors == nil {
		j.Cursors = make(map[SourceKind]*Cursor)
	}
	c, ok := j.Cursors[kind]
	if !ok {
		c = &Cursor{}
		j.Cursors[kind] = c
	}
	return c
}

// Report returns a copy suitable for API responses and archives: the
// ledger keeps its change records but drops the content snapshots.
func (j *Job) Report() *Job {
	cp := *j
	if j.Ledger != nil {
		cp.Ledger = make([]LedgerEntry, len(j.Ledger))
		for i, e := range j.Ledger {
			e.Before = nil
			cp.Ledger[i] = e
		}
	}
	return &cp
}

// Summary returns a copy without the ledger, used for job listings.
func (j *Job) Summary() *Job {
	cp := *j
	cp.Ledger = nil
	return &cp
}
