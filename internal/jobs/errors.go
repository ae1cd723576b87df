// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package jobs

import (
	"errors"
	"fmt"

	"redirclean/internal/models"
)

var (
	// ErrJobNotFound is returned by stores when no job has the given id.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobTerminal is returned when a batch is requested for a job that
	// already completed, failed or was rolled back.
	ErrJobTerminal = errors.New("job is already finished")

	// ErrNotRollbackable is returned when rolling back a job that is not
	// completed.
	ErrNotRollbackable = errors.New("only completed jobs can be rolled back")

	// ErrDryRunJob is returned when rolling back a dry run.
	ErrDryRunJob = errors.New("dry-run jobs have nothing to roll back")

	// ErrInvalidOptions wraps every rejection of job options or mappings.
	ErrInvalidOptions = errors.New("invalid job options")
)

// StorageError reports that job state could not be persisted. It is fatal
// to the job.
type StorageError struct {
	Op    string
	JobID string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("job store %s %s: %v", e.Op, e.JobID, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ItemError describes a content item that could not be read, rewritten or
// written back. It is recorded on the job and the item is skipped.
type ItemError struct {
	Kind models.SourceKind
	ID   string
	Op   string
	Err  error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Kind, e.ID, e.Op, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}
