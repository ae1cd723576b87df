// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for the handler
// tests: in-memory job stores and sources, fake operator and redirect
// repositories, and sessions kept in miniredis.
package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"redirclean/internal/jobs"
	"redirclean/internal/middleware"
	"redirclean/internal/models"
	"redirclean/internal/rewrite"
	"redirclean/internal/session"
	"redirclean/internal/storage"
	"redirclean/internal/store"
)

// fakeOperators is an in-memory OperatorRepo.
type fakeOperators struct {
	mu  sync.Mutex
	ops map[uuid.UUID]*models.Operator
}

func newFakeOperators() *fakeOperators {
	return &fakeOperators{ops: make(map[uuid.UUID]*models.Operator)}
}

func (f *fakeOperators) add(t *testing.T, email, password string) *models.Operator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	op := &models.Operator{ID: uuid.New(), Email: email, PasswordHash: string(hash), DisplayName: "Ops"}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops[op.ID] = op
	return op
}

func (f *fakeOperators) get(id uuid.UUID) *models.Operator {
	f.mu.Lock()
	defer f.mu.Unlock()
	if op, ok := f.ops[id]; ok {
		cp := *op
		return &cp
	}
	return nil
}

func (f *fakeOperators) FindByEmail(_ context.Context, email string) (*models.Operator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, op := range f.ops {
		if op.Email == email {
			cp := *op
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeOperators) FindByID(_ context.Context, id uuid.UUID) (*models.Operator, error) {
	return f.get(id), nil
}

func (f *fakeOperators) SetTOTPSecret(_ context.Context, id uuid.UUID, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops[id].TOTPSecret = &secret
	return nil
}

func (f *fakeOperators) EnableTOTP(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops[id].TOTPEnabled = true
	return nil
}

func (f *fakeOperators) CheckPassword(o *models.Operator, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(o.PasswordHash), []byte(password)) == nil
}

// fakeRedirects is an in-memory RedirectRepo that applies the same rules
// as the PostgreSQL store.
type fakeRedirects struct {
	mu     sync.Mutex
	nextID int64
	rules  map[int64]models.Redirect
}

func newFakeRedirects() *fakeRedirects {
	return &fakeRedirects{rules: make(map[int64]models.Redirect)}
}

func (f *fakeRedirects) List(_ context.Context) ([]models.Redirect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Redirect, 0, len(f.rules))
	for _, r := range f.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRedirects) Create(_ context.Context, r *models.Redirect) (*models.Redirect, error) {
	if r.StatusCode == 0 {
		r.StatusCode = 301
	}
	if !rewrite.IsURLLike(r.SourceURL) || !rewrite.IsURLLike(r.TargetURL) || !models.ValidRedirectStatus(r.StatusCode) {
		return nil, fmt.Errorf("%w: bad rule", store.ErrInvalidRedirect)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rules {
		if existing.SourceURL == r.SourceURL {
			return nil, store.ErrDuplicateRedirect
		}
	}
	f.nextID++
	out := *r
	out.ID = f.nextID
	f.rules[out.ID] = out
	return &out, nil
}

func (f *fakeRedirects) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rules[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.rules, id)
	return nil
}

// Mapping makes fakeRedirects usable as the runner's mapping provider.
func (f *fakeRedirects) Mapping(ctx context.Context) (rewrite.Mapping, error) {
	list, _ := f.List(ctx)
	var pairs []rewrite.Pair
	for _, r := range list {
		if r.Enabled {
			pairs = append(pairs, rewrite.Pair{Old: r.SourceURL, New: r.TargetURL})
		}
	}
	return rewrite.NewMapping(pairs...), nil
}

// memReports archives job reports in memory and serves them back.
type memReports struct {
	mu      sync.Mutex
	reports map[string][]byte
	err     error
}

func newMemReports() *memReports {
	return &memReports{reports: map[string][]byte{}}
}

func (m *memReports) ArchiveJob(_ context.Context, job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[job.ID+"/"+string(job.Status)] = data
	return nil
}

func (m *memReports) Report(_ context.Context, jobID string, status models.JobStatus) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	data, ok := m.reports[jobID+"/"+string(status)]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", jobID, status, storage.ErrReportNotFound)
	}
	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// testEnv holds all dependencies for handler tests.
type testEnv struct {
	mux       chi.Router
	sessions  *session.Store
	valkey    *miniredis.Miniredis
	operators *fakeOperators
	redirects *fakeRedirects
	posts     *jobs.MemorySource
	store     *jobs.MemoryStore
	reports   *memReports
	jobs      *Jobs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	env := &testEnv{
		sessions:  session.NewStore(client, false),
		valkey:    mr,
		operators: newFakeOperators(),
		redirects: newFakeRedirects(),
		posts:     jobs.NewMemorySource(models.KindPost, "Posts and pages", rewrite.ModeHTML),
		store:     jobs.NewMemoryStore(0),
		reports:   newMemReports(),
	}
	menus := jobs.NewMemorySource(models.KindMenuItem, "Menus", rewrite.ModeURL)
	runner := jobs.NewRunner(env.store, jobs.NewSources(env.posts, menus), env.redirects)
	runner.SetArchiver(env.reports)

	auth := NewAuth(env.sessions, env.operators)
	jh := NewJobs(runner, 25)
	jh.SetReports(env.reports)
	env.jobs = jh
	rh := NewRedirects(env.redirects)

	r := chi.NewRouter()
	r.Use(middleware.LoadSession(env.sessions))
	r.Get("/api/auth/session", auth.Session)
	r.Post("/api/auth/login", auth.Login)
	r.Post("/api/auth/logout", auth.Logout)
	r.Post("/api/auth/totp/setup", auth.TOTPSetup)
	r.Post("/api/auth/totp/verify", auth.TOTPVerify)
	r.Get("/api/jobs", jh.List)
	r.Post("/api/jobs", jh.Start)
	r.Get("/api/jobs/{id}", jh.Get)
	r.Post("/api/jobs/{id}/batch", jh.Batch)
	r.Post("/api/jobs/{id}/rollback", jh.Rollback)
	r.Get("/api/jobs/{id}/report", jh.Report)
	r.Post("/api/rewrite/preview", Preview)
	r.Get("/api/redirects", rh.List)
	r.Post("/api/redirects", rh.Create)
	r.Delete("/api/redirects/{id}", rh.Delete)
	env.mux = r

	return env
}

// login opens a session directly in Valkey and returns its cookie.
func (e *testEnv) login(t *testing.T, op *models.Operator, twoFADone bool) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	_, err := e.sessions.Create(context.Background(), w, &session.Data{
		OperatorID: op.ID,
		Email:      op.Email,
		TwoFADone:  twoFADone,
	})
	if err != nil {
		t.Fatalf("session create: %v", err)
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

// do sends a JSON request through the test mux.
func (e *testEnv) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatalf("encode body: %v", err)
			}
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	e.mux.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}
