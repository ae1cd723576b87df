// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"redirclean/internal/jobs"
	"redirclean/internal/models"
	"redirclean/internal/rewrite"
	"redirclean/internal/storage"
)

// ReportReader fetches archived job reports.
type ReportReader interface {
	Report(ctx context.Context, jobID string, status models.JobStatus) (*models.Job, error)
}

// Jobs exposes the cleanup job runner over HTTP. Clients drive a job by
// calling Batch until the returned status is terminal.
type Jobs struct {
	runner    *jobs.Runner
	batchSize int
	reports   ReportReader
}

// NewJobs creates the job handlers. batchSize is the default for jobs
// started without one.
func NewJobs(runner *jobs.Runner, batchSize int) *Jobs {
	if batchSize <= 0 {
		batchSize = models.DefaultBatchSize
	}
	return &Jobs{runner: runner, batchSize: batchSize}
}

// SetReports enables the archived report endpoint.
func (h *Jobs) SetReports(rr ReportReader) {
	h.reports = rr
}

// startRequest is a JobOptions document plus an optional mapping. Omitted
// option fields keep their defaults; an omitted mapping means the enabled
// redirect rules.
type startRequest struct {
	models.JobOptions
	Mapping rewrite.Mapping `json:"mapping,omitempty"`
}

// Start queues a new job.
func (h *Jobs) Start(w http.ResponseWriter, r *http.Request) {
	req := startRequest{JobOptions: models.DefaultJobOptions()}
	req.BatchSize = h.batchSize
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validateMapping(req.Mapping); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	job, err := h.runner.Start(r.Context(), req.JobOptions, req.Mapping)
	if err != nil {
		h.fail(w, job, err)
		return
	}
	slog.Info("job queued via api", "job_id", job.ID, "dry_run", job.Options.DryRun)
	writeJSON(w, http.StatusCreated, job.Report())
}

// List returns recent jobs without their ledgers.
func (h *Jobs) List(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"), 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.runner.List(r.Context(), limit)
	if err != nil {
		h.fail(w, nil, err)
		return
	}

	out := make([]*models.Job, 0, len(list))
	for _, j := range list {
		out = append(out, j.Summary())
	}
	writeJSON(w, http.StatusOK, out)
}

// Get returns one job's progress.
func (h *Jobs) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.runner.Progress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, job.Report())
}

// Batch processes the next batch of a job.
func (h *Jobs) Batch(w http.ResponseWriter, r *http.Request) {
	job, err := h.runner.ProcessBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, job, err)
		return
	}
	writeJSON(w, http.StatusOK, job.Report())
}

// Rollback restores the content touched by a completed job.
func (h *Jobs) Rollback(w http.ResponseWriter, r *http.Request) {
	res, err := h.runner.Rollback(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var storageErr *jobs.StorageError
		if errors.As(err, &storageErr) && res != nil {
			slog.Error("rollback save failed", "job_id", storageErr.JobID, "error", err)
			writeJSON(w, http.StatusInternalServerError, res)
			return
		}
		h.fail(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Report returns the archived report of a job. The status query parameter
// picks the completion or rollback report and defaults to completed.
func (h *Jobs) Report(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		writeError(w, http.StatusNotFound, "report archive is not configured")
		return
	}

	status := models.JobCompleted
	if q := r.URL.Query().Get("status"); q != "" {
		status = models.JobStatus(q)
	}
	if status != models.JobCompleted && status != models.JobRolledBack {
		writeError(w, http.StatusBadRequest, "status must be completed or rolled_back")
		return
	}

	id := chi.URLParam(r, "id")
	report, err := h.reports.Report(r.Context(), id, status)
	if errors.Is(err, storage.ErrReportNotFound) {
		writeError(w, http.StatusNotFound, "no "+string(status)+" report archived for job "+id)
		return
	}
	if err != nil {
		slog.Error("report download failed", "job_id", id, "status", status, "error", err)
		writeError(w, http.StatusBadGateway, "report archive unavailable")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// fail maps runner errors to responses. When the runner hands back the
// job with the error, the job is the response body.
func (h *Jobs) fail(w http.ResponseWriter, job *models.Job, err error) {
	var storageErr *jobs.StorageError
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, jobs.ErrJobTerminal):
		if job != nil {
			writeJSON(w, http.StatusConflict, job.Report())
			return
		}
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, jobs.ErrNotRollbackable), errors.Is(err, jobs.ErrDryRunJob):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, jobs.ErrInvalidOptions):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &storageErr):
		slog.Error("job storage failed", "job_id", storageErr.JobID, "op", storageErr.Op, "error", err)
		if job != nil {
			writeJSON(w, http.StatusInternalServerError, job.Report())
			return
		}
		writeError(w, http.StatusInternalServerError, "job storage failed")
	default:
		slog.Error("job request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
