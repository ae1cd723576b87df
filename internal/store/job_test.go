package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"redirclean/internal/jobs"
	"redirclean/internal/models"
)

func testJob(id string) *models.Job {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.Job{
		ID:        id,
		Status:    models.JobQueued,
		Options:   models.DefaultJobOptions(),
		StartedAt: now,
		UpdatedAt: now,
	}
}

func TestJobStoreSaveInsertPrunes(t *testing.T) {
	db, mock := mockDB(t)
	s := NewJobStore(db, 10)

	job := testJob("job-1")
	mock.ExpectQuery(`INSERT INTO rewrite_jobs`).
		WithArgs("job-1", "queued", sqlmock.AnyArg(), job.StartedAt, job.UpdatedAt).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true))
	mock.ExpectExec(`DELETE FROM rewrite_jobs WHERE id IN`).
		WithArgs(10).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := s.Save(context.Background(), job); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestJobStoreSaveUpdateSkipsPrune(t *testing.T) {
	db, mock := mockDB(t)
	s := NewJobStore(db, 10)

	job := testJob("job-1")
	job.Status = models.JobProcessing
	mock.ExpectQuery(`INSERT INTO rewrite_jobs`).
		WithArgs("job-1", "processing", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(false))

	if err := s.Save(context.Background(), job); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestJobStoreSavePruneFailureIgnored(t *testing.T) {
	db, mock := mockDB(t)
	s := NewJobStore(db, 10)

	mock.ExpectQuery(`INSERT INTO rewrite_jobs`).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true))
	mock.ExpectExec(`DELETE FROM rewrite_jobs`).
		WillReturnError(errors.New("lock timeout"))

	if err := s.Save(context.Background(), testJob("job-1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestJobStoreLoad(t *testing.T) {
	db, mock := mockDB(t)
	s := NewJobStore(db, 10)

	doc, err := json.Marshal(testJob("job-7"))
	if err != nil {
		t.Fatal(err)
	}
	mock.ExpectQuery(`SELECT document FROM rewrite_jobs WHERE id = \$1`).
		WithArgs("job-7").
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(doc))
	mock.ExpectQuery(`SELECT document FROM rewrite_jobs WHERE id = \$1`).
		WithArgs("job-8").
		WillReturnRows(sqlmock.NewRows([]string{"document"}))

	job, err := s.Load(context.Background(), "job-7")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if job.ID != "job-7" || job.Status != models.JobQueued {
		t.Errorf("job = %+v", job)
	}

	if _, err := s.Load(context.Background(), "job-8"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}

func TestJobStoreListCapsLimit(t *testing.T) {
	db, mock := mockDB(t)
	s := NewJobStore(db, 3)

	rows := sqlmock.NewRows([]string{"id", "document"})
	for _, id := range []string{"job-3", "job-2", "job-1"} {
		doc, _ := json.Marshal(testJob(id))
		rows.AddRow(id, doc)
	}
	mock.ExpectQuery(`FROM rewrite_jobs ORDER BY started_at DESC, id DESC LIMIT \$1`).
		WithArgs(3).
		WillReturnRows(rows)

	list, err := s.List(context.Background(), 50)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 || list[0].ID != "job-3" || list[2].ID != "job-1" {
		t.Errorf("list = %v", list)
	}
}

// TestJobStoreRetention runs against PostgreSQL and checks that saving a
// new job beyond the retention window drops the oldest one.
func TestJobStoreRetention(t *testing.T) {
	db := testDB(t)
	s := NewJobStore(db, 2)
	ctx := context.Background()

	ids := []string{"store-test-job-a", "store-test-job-b", "store-test-job-c"}
	t.Cleanup(func() {
		for _, id := range ids {
			db.Exec("DELETE FROM rewrite_jobs WHERE id = $1", id)
		}
	})

	base := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	for i, id := range ids {
		job := testJob(id)
		job.StartedAt = base.Add(time.Duration(i) * time.Minute)
		job.UpdatedAt = job.StartedAt
		if err := s.Save(ctx, job); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	if _, err := s.Load(ctx, ids[0]); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("oldest job should be pruned, got err = %v", err)
	}
	got, err := s.Load(ctx, ids[2])
	if err != nil {
		t.Fatalf("Load newest: %v", err)
	}
	if !got.StartedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("started_at = %v", got.StartedAt)
	}
}
