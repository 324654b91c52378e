package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/counselrank/audit-service/internal/domain"
)

// RunRepository handles database operations for audit runs.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new audit run repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new audit run.
func (r *RunRepository) Create(ctx context.Context, run *domain.AuditRun) error {
	query := `
		INSERT INTO audit_runs (id, project_id, target_url, state, totals, config)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		run.ID,
		run.ProjectID,
		run.TargetURL,
		run.State,
		run.Totals,
		run.Config,
	).Scan(&run.CreatedAt, &run.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create audit run: %w", err)
	}

	return nil
}

// Get retrieves an audit run by its ID.
func (r *RunRepository) Get(ctx context.Context, id string) (*domain.AuditRun, error) {
	var run domain.AuditRun
	query := `
		SELECT id, project_id, target_url, state, error, totals, config,
		       started_at, finished_at, created_at, updated_at
		FROM audit_runs
		WHERE id = $1
	`

	err := r.db.GetContext(ctx, &run, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("failed to get audit run: %w", err)
	}

	return &run, nil
}

// UpdateState transitions the run to a new state. Entering the first
// pipeline stage stamps started_at; entering a terminal state stamps
// finished_at.
func (r *RunRepository) UpdateState(ctx context.Context, id, state string) error {
	query := `
		UPDATE audit_runs
		SET state = $1,
		    started_at = CASE WHEN $1 = $3 AND started_at IS NULL THEN NOW() ELSE started_at END,
		    finished_at = CASE WHEN $1 IN ($4, $5) THEN NOW() ELSE finished_at END,
		    updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, state, id,
		domain.RunStateCrawling, domain.RunStateCompleted, domain.RunStateFailed)

	return execRequireRows(result, err, fmt.Errorf("%w: %s", ErrRunNotFound, id))
}

// MarkFailed moves the run to the failed state with an error message
// and a finish timestamp.
func (r *RunRepository) MarkFailed(ctx context.Context, id, message string) error {
	query := `
		UPDATE audit_runs
		SET state = $1, error = $2, finished_at = NOW(), updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, domain.RunStateFailed, message, id)

	return execRequireRows(result, err, fmt.Errorf("%w: %s", ErrRunNotFound, id))
}

// SetError records an error message on the run without changing its
// state. Used for degraded-but-completed runs.
func (r *RunRepository) SetError(ctx context.Context, id, message string) error {
	query := `
		UPDATE audit_runs
		SET error = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, message, id)

	return execRequireRows(result, err, fmt.Errorf("%w: %s", ErrRunNotFound, id))
}

// UpdateTotals replaces the run's totals blob.
func (r *RunRepository) UpdateTotals(ctx context.Context, id string, totals domain.JSONBMap) error {
	query := `
		UPDATE audit_runs
		SET totals = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, totals, id)

	return execRequireRows(result, err, fmt.Errorf("%w: %s", ErrRunNotFound, id))
}

// ListByProject retrieves a project's runs, newest first.
func (r *RunRepository) ListByProject(ctx context.Context, projectID string, limit, offset int) ([]*domain.AuditRun, error) {
	var runs []*domain.AuditRun
	query := `
		SELECT id, project_id, target_url, state, error, totals, config,
		       started_at, finished_at, created_at, updated_at
		FROM audit_runs
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	err := r.db.SelectContext(ctx, &runs, query, projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit runs: %w", err)
	}

	if runs == nil {
		runs = []*domain.AuditRun{}
	}

	return runs, nil
}

// ClearStaleRuns fails runs stuck in a non-terminal state longer than
// the cutoff. Returns the number of runs failed.
func (r *RunRepository) ClearStaleRuns(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		UPDATE audit_runs
		SET state = $1, error = 'run exceeded maximum duration', finished_at = NOW(), updated_at = NOW()
		WHERE state NOT IN ($2, $3) AND created_at < $4
	`

	result, err := r.db.ExecContext(ctx, query,
		domain.RunStateFailed, domain.RunStateCompleted, domain.RunStateFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clear stale runs: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared runs: %w", err)
	}

	return int(n), nil
}
