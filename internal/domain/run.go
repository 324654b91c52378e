// Package domain provides domain models used across the audit pipeline.
package domain

import "time"

// AuditRun state constants. A run moves through the pipeline stages in
// order and ends in either completed or failed.
const (
	RunStatePending   = "pending"
	RunStateCrawling  = "crawling"
	RunStateAnalyzing = "analyzing"
	RunStateScoring   = "scoring"
	RunStateReporting = "reporting"
	RunStateCompleted = "completed"
	RunStateFailed    = "failed"
)

// AuditRun represents one execution of the audit pipeline against one target URL.
type AuditRun struct {
	ID        string   `db:"id"         json:"id"`
	ProjectID string   `db:"project_id" json:"project_id"`
	TargetURL string   `db:"target_url" json:"target_url"`
	State     string   `db:"state"      json:"state"`
	Error     *string  `db:"error"      json:"error,omitempty"`
	Totals    JSONBMap `db:"totals"     json:"totals"`
	Config    JSONBMap `db:"config"     json:"config"`

	StartedAt  *time.Time `db:"started_at"  json:"started_at,omitempty"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"  json:"updated_at"`
}

// IsTerminal reports whether the run has reached a final state.
func (r *AuditRun) IsTerminal() bool {
	return r.State == RunStateCompleted || r.State == RunStateFailed
}

// BlockedPaths returns the configured blocked path prefixes for the run, if any.
func (r *AuditRun) BlockedPaths() []string {
	return r.configStrings("blocked_paths")
}

// AllowedPaths returns the configured allowed path prefixes for the run, if any.
// An empty list means all paths are allowed.
func (r *AuditRun) AllowedPaths() []string {
	return r.configStrings("allowed_paths")
}

// configStrings reads a string list out of the run's config blob.
func (r *AuditRun) configStrings(key string) []string {
	raw, ok := r.Config[key]
	if !ok {
		return nil
	}

	items, ok := raw.([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, isStr := item.(string); isStr {
			out = append(out, s)
		}
	}
	return out
}
