package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/counselrank/audit-service/internal/domain"
)

// PageRepository handles database operations for crawled pages.
type PageRepository struct {
	db *sqlx.DB
}

// NewPageRepository creates a new page repository.
func NewPageRepository(db *sqlx.DB) *PageRepository {
	return &PageRepository{db: db}
}

// Create inserts a new page row.
func (r *PageRepository) Create(ctx context.Context, page *domain.Page) error {
	query := `
		INSERT INTO pages (id, run_id, url, status_code, content_type, content_length,
		                   response_time, title, meta_description, word_count, canonical_url,
		                   robots_directives, body_hash, html_path, screenshot_path,
		                   indexable, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		page.ID,
		page.RunID,
		page.URL,
		page.StatusCode,
		page.ContentType,
		page.ContentLength,
		page.ResponseTime,
		page.Title,
		page.MetaDescription,
		page.WordCount,
		page.CanonicalURL,
		page.RobotsDirectives,
		page.BodyHash,
		page.HTMLPath,
		page.ScreenshotPath,
		page.Indexable,
		page.Error,
	).Scan(&page.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}

	return nil
}

// GetByID retrieves a page by its ID.
func (r *PageRepository) GetByID(ctx context.Context, id string) (*domain.Page, error) {
	var page domain.Page
	query := `
		SELECT id, run_id, url, status_code, content_type, content_length,
		       response_time, title, meta_description, word_count, canonical_url,
		       robots_directives, body_hash, html_path, screenshot_path,
		       indexable, error, created_at
		FROM pages
		WHERE id = $1
	`

	err := r.db.GetContext(ctx, &page, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrPageNotFound, id)
		}
		return nil, fmt.Errorf("failed to get page: %w", err)
	}

	return &page, nil
}

// ListByRun retrieves all pages of a run in crawl order.
func (r *PageRepository) ListByRun(ctx context.Context, runID string) ([]domain.Page, error) {
	var pages []domain.Page
	query := `
		SELECT id, run_id, url, status_code, content_type, content_length,
		       response_time, title, meta_description, word_count, canonical_url,
		       robots_directives, body_hash, html_path, screenshot_path,
		       indexable, error, created_at
		FROM pages
		WHERE run_id = $1
		ORDER BY created_at, id
	`

	err := r.db.SelectContext(ctx, &pages, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}

	if pages == nil {
		pages = []domain.Page{}
	}

	return pages, nil
}

// CountByRun returns the number of pages crawled for a run.
func (r *PageRepository) CountByRun(ctx context.Context, runID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM pages WHERE run_id = $1`

	err := r.db.GetContext(ctx, &count, query, runID)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}

	return count, nil
}

// DeleteByRun removes all pages of a run, for re-crawls.
func (r *PageRepository) DeleteByRun(ctx context.Context, runID string) (int, error) {
	query := `DELETE FROM pages WHERE run_id = $1`

	result, err := r.db.ExecContext(ctx, query, runID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete pages: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted pages: %w", err)
	}

	return int(n), nil
}
