package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"redirclean/internal/models"
	"redirclean/internal/store"
)

// RedirectRepo is the redirect rule storage. *store.RedirectStore
// satisfies it.
type RedirectRepo interface {
	List(ctx context.Context) ([]models.Redirect, error)
	Create(ctx context.Context, r *models.Redirect) (*models.Redirect, error)
	Delete(ctx context.Context, id int64) error
}

// Redirects manages the redirect rules that make up the default mapping.
type Redirects struct {
	repo RedirectRepo
}

// NewRedirects creates the redirect handlers.
func NewRedirects(repo RedirectRepo) *Redirects {
	return &Redirects{repo: repo}
}

// List returns every rule.
func (h *Redirects) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.Context())
	if err != nil {
		slog.Error("list redirects failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if list == nil {
		list = []models.Redirect{}
	}
	writeJSON(w, http.StatusOK, list)
}

type redirectRequest struct {
	SourceURL  string `json:"source_url"`
	TargetURL  string `json:"target_url"`
	StatusCode int    `json:"status_code"`
	Enabled    *bool  `json:"enabled"`
	Position   int    `json:"position"`
}

// Create adds a rule. Rules are enabled unless the body says otherwise.
func (h *Redirects) Create(w http.ResponseWriter, r *http.Request) {
	var req redirectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule := &models.Redirect{
		SourceURL:  req.SourceURL,
		TargetURL:  req.TargetURL,
		StatusCode: req.StatusCode,
		Enabled:    req.Enabled == nil || *req.Enabled,
		Position:   req.Position,
	}

	created, err := h.repo.Create(r.Context(), rule)
	switch {
	case errors.Is(err, store.ErrInvalidRedirect):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrDuplicateRedirect):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		slog.Error("create redirect failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Delete removes a rule.
func (h *Redirects) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid redirect id")
		return
	}

	err = h.repo.Delete(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "redirect not found")
		return
	}
	if err != nil {
		slog.Error("delete redirect failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
