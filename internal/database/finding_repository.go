package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/counselrank/audit-service/internal/domain"
)

// FindingRepository handles database operations for findings.
type FindingRepository struct {
	db *sqlx.DB
}

// NewFindingRepository creates a new finding repository.
func NewFindingRepository(db *sqlx.DB) *FindingRepository {
	return &FindingRepository{db: db}
}

// ReplaceForRun deletes a run's existing findings and inserts the new
// set in one transaction, so re-analysis never accumulates duplicates.
func (r *FindingRepository) ReplaceForRun(ctx context.Context, runID string, findings []domain.Finding) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err = tx.ExecContext(ctx, `DELETE FROM findings WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("failed to delete prior findings: %w", err)
	}

	query := `
		INSERT INTO findings (id, run_id, page_id, check_code, category, severity,
		                      title, description, recommendation, evidence,
		                      impact_score, effort, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	for i := range findings {
		finding := &findings[i]
		if _, err = tx.ExecContext(
			ctx,
			query,
			finding.ID,
			finding.RunID,
			finding.PageID,
			finding.CheckCode,
			finding.Category,
			finding.Severity,
			finding.Title,
			finding.Description,
			finding.Recommendation,
			finding.Evidence,
			finding.ImpactScore,
			finding.Effort,
			finding.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert finding %s: %w", finding.CheckCode, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit findings: %w", err)
	}

	return nil
}

// ListByRun retrieves all findings of a run in a stable order.
func (r *FindingRepository) ListByRun(ctx context.Context, runID string) ([]domain.Finding, error) {
	var findings []domain.Finding
	query := `
		SELECT id, run_id, page_id, check_code, category, severity,
		       title, description, recommendation, evidence,
		       impact_score, effort, created_at
		FROM findings
		WHERE run_id = $1
		ORDER BY check_code, page_id
	`

	err := r.db.SelectContext(ctx, &findings, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}

	if findings == nil {
		findings = []domain.Finding{}
	}

	return findings, nil
}

// CountBySeverity tallies a run's findings per severity.
func (r *FindingRepository) CountBySeverity(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT severity, COUNT(*) FROM findings WHERE run_id = $1 GROUP BY severity`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count findings: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var severity string
		var count int
		if err = rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("failed to scan severity count: %w", err)
		}
		counts[severity] = count
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read severity counts: %w", err)
	}

	return counts, nil
}
