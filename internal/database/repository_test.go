package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/counselrank/audit-service/internal/database"
	"github.com/counselrank/audit-service/internal/domain"
)

// runColumns lists the columns returned by audit_runs SELECT queries.
var runColumns = []string{
	"id", "project_id", "target_url", "state", "error", "totals", "config",
	"started_at", "finished_at", "created_at", "updated_at",
}

// pageColumns lists the columns returned by pages SELECT queries.
var pageColumns = []string{
	"id", "run_id", "url", "status_code", "content_type", "content_length",
	"response_time", "title", "meta_description", "word_count", "canonical_url",
	"robots_directives", "body_hash", "html_path", "screenshot_path",
	"indexable", "error", "created_at",
}

// findingColumns lists the columns returned by findings SELECT queries.
var findingColumns = []string{
	"id", "run_id", "page_id", "check_code", "category", "severity",
	"title", "description", "recommendation", "evidence",
	"impact_score", "effort", "created_at",
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	db := sqlx.NewDb(mockDB, "postgres")

	return db, mock, func() { mockDB.Close() }
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestRunRepository_Get(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := database.NewRunRepository(db)
	now := time.Now()

	mock.ExpectQuery("SELECT .+ FROM audit_runs WHERE id").
		WithArgs("run-1").
		WillReturnRows(
			sqlmock.NewRows(runColumns).AddRow(
				"run-1", "project-1", "https://example.com", domain.RunStatePending,
				nil, []byte(`{"pages_crawled": 3}`), []byte(`{"blocked_paths": ["/admin"]}`),
				nil, nil, now, now,
			),
		)

	run, err := repo.Get(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if run.TargetURL != "https://example.com" {
		t.Errorf("target_url = %s", run.TargetURL)
	}
	if run.Totals["pages_crawled"] != float64(3) {
		t.Errorf("totals pages_crawled = %v", run.Totals["pages_crawled"])
	}
	if paths := run.BlockedPaths(); len(paths) != 1 || paths[0] != "/admin" {
		t.Errorf("blocked paths = %v", paths)
	}

	expectationsMet(t, mock)
}

func TestRunRepository_Get_NotFound(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := database.NewRunRepository(db)

	mock.ExpectQuery("SELECT .+ FROM audit_runs WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(runColumns))

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, database.ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestRunRepository_UpdateState(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := database.NewRunRepository(db)

	mock.ExpectExec("UPDATE audit_runs").
		WithArgs(domain.RunStateCrawling, "run-1",
			domain.RunStateCrawling, domain.RunStateCompleted, domain.RunStateFailed).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateState(context.Background(), "run-1", domain.RunStateCrawling); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}

	expectationsMet(t, mock)
}

func TestRunRepository_UpdateState_NotFound(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := database.NewRunRepository(db)

	mock.ExpectExec("UPDATE audit_runs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateState(context.Background(), "missing", domain.RunStateCrawling)
	if !errors.Is(err, database.ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestRunRepository_MarkFailed(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := database.NewRunRepository(db)

	mock.ExpectExec("UPDATE audit_runs").
		WithArgs(domain.RunStateFailed, "crawl failed: boom", "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkFailed(context.Background(), "run-1", "crawl failed: boom"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}

	expectationsMet(t, mock)
}

func TestPageRepository_Create(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := database.NewPageRepository(db)
	now := time.Now()

	htmlPath := "artifacts/abc.html"
	page := &domain.Page{
		ID:               "page-1",
		RunID:            "run-1",
		URL:              "https://example.com/",
		StatusCode:       200,
		ContentType:      "text/html",
		ContentLength:    1024,
		ResponseTime:     0.125,
		Title:            "Example",
		MetaDescription:  "An example page",
		WordCount:        245,
		RobotsDirectives: pq.StringArray{"index", "follow"},
		BodyHash:         "abc123",
		HTMLPath:         &htmlPath,
		Indexable:        true,
	}

	mock.ExpectQuery("INSERT INTO pages").
		WithArgs(
			page.ID, page.RunID, page.URL, page.StatusCode, page.ContentType,
			page.ContentLength, page.ResponseTime, page.Title, page.MetaDescription,
			page.WordCount, nil, page.RobotsDirectives, page.BodyHash, &htmlPath, nil, true, nil,
		).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	if err := repo.Create(context.Background(), page); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !page.CreatedAt.Equal(now) {
		t.Errorf("created_at not populated")
	}

	expectationsMet(t, mock)
}

func TestPageRepository_ListByRun_Empty(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := database.NewPageRepository(db)

	mock.ExpectQuery("SELECT .+ FROM pages WHERE run_id").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(pageColumns))

	pages, err := repo.ListByRun(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("ListByRun() error = %v", err)
	}
	if pages == nil || len(pages) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", pages)
	}

	expectationsMet(t, mock)
}

func TestPageRepository_CountByRun(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := database.NewPageRepository(db)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := repo.CountByRun(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("CountByRun() error = %v", err)
	}
	if count != 42 {
		t.Errorf("count = %d, want 42", count)
	}

	expectationsMet(t, mock)
}

func TestFindingRepository_ReplaceForRun(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := database.NewFindingRepository(db)

	findings := []domain.Finding{
		{
			ID:          "f-1",
			RunID:       "run-1",
			PageID:      "page-1",
			CheckCode:   "onpage.title_tag",
			Category:    domain.CategoryOnPage,
			Severity:    domain.SeverityHigh,
			Title:       "Title Tag Issues",
			Description: "Page title tag is missing, too short, or too long",
			Evidence:    domain.JSONBMap{"issue": "missing_title"},
			ImpactScore: 10.0,
			Effort:      domain.EffortSmall,
			CreatedAt:   time.Now(),
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM findings WHERE run_id").
		WithArgs("run-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO findings").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.ReplaceForRun(context.Background(), "run-1", findings); err != nil {
		t.Fatalf("ReplaceForRun() error = %v", err)
	}

	expectationsMet(t, mock)
}

func TestFindingRepository_ReplaceForRun_RollsBackOnInsertError(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := database.NewFindingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM findings WHERE run_id").
		WithArgs("run-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO findings").
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := repo.ReplaceForRun(context.Background(), "run-1", []domain.Finding{{ID: "f-1"}})
	if err == nil {
		t.Fatal("expected insert error to propagate")
	}

	expectationsMet(t, mock)
}

func TestFindingRepository_ListByRun(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	repo := database.NewFindingRepository(db)
	now := time.Now()

	mock.ExpectQuery("SELECT .+ FROM findings WHERE run_id").
		WithArgs("run-1").
		WillReturnRows(
			sqlmock.NewRows(findingColumns).AddRow(
				"f-1", "run-1", "page-1", "technical.http_status_code",
				domain.CategoryTechnical, domain.SeverityCritical,
				"HTTP Status Code Issue", "Page returns a non-200 HTTP status code",
				nil, []byte(`{"status_code": 404}`), 10.0, domain.EffortMedium, now,
			),
		)

	findings, err := repo.ListByRun(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("ListByRun() error = %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].Evidence["status_code"] != float64(404) {
		t.Errorf("evidence status_code = %v", findings[0].Evidence["status_code"])
	}

	expectationsMet(t, mock)
}
