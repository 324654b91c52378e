package domain

import "time"

// Finding severity levels, most severe first.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Finding categories.
const (
	CategoryTechnical = "technical"
	CategoryOnPage    = "onpage"
	CategoryLocal     = "local"
)

// Remediation effort levels.
const (
	EffortSmall  = "small"
	EffortMedium = "medium"
	EffortLarge  = "large"
)

// Finding is a single failed-check result attached to one page of a run.
// Immutable once created.
type Finding struct {
	ID     string `db:"id"      json:"id"`
	RunID  string `db:"run_id"  json:"run_id"`
	PageID string `db:"page_id" json:"page_id"`

	CheckCode      string   `db:"check_code"     json:"check_code"`
	Category       string   `db:"category"       json:"category"`
	Severity       string   `db:"severity"       json:"severity"`
	Title          string   `db:"title"          json:"title"`
	Description    string   `db:"description"    json:"description"`
	Recommendation *string  `db:"recommendation" json:"recommendation,omitempty"`
	Evidence       JSONBMap `db:"evidence"       json:"evidence"`
	ImpactScore    float64  `db:"impact_score"   json:"impact_score"`
	Effort         string   `db:"effort"         json:"effort"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SeverityRank returns a numeric rank for ordering, higher = more severe.
func SeverityRank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// IsCritical reports whether the finding has critical severity.
func (f *Finding) IsCritical() bool { return f.Severity == SeverityCritical }

// IsHigh reports whether the finding has high severity.
func (f *Finding) IsHigh() bool { return f.Severity == SeverityHigh }

// IsMedium reports whether the finding has medium severity.
func (f *Finding) IsMedium() bool { return f.Severity == SeverityMedium }

// IsLow reports whether the finding has low severity.
func (f *Finding) IsLow() bool { return f.Severity == SeverityLow }
