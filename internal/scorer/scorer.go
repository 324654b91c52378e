// Package scorer aggregates a run's findings into a scorecard: per
// category scores, an overall score, severity tallies, and prioritized
// remediation lists. Scoring is a pure function of the persisted
// findings and pages, so recomputing replaces the prior scorecard
// wholesale.
package scorer

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/counselrank/audit-service/internal/domain"
	"github.com/counselrank/audit-service/internal/logger"
)

const (
	topIssueLimit = 10
	quickWinLimit = 5

	// quickWinImpactThreshold is the minimum impact score for a
	// finding to count as a quick win.
	quickWinImpactThreshold = 5.0
)

// RunStore loads audit runs.
type RunStore interface {
	Get(ctx context.Context, id string) (*domain.AuditRun, error)
}

// PageStore loads a run's crawled pages.
type PageStore interface {
	ListByRun(ctx context.Context, runID string) ([]domain.Page, error)
}

// FindingStore loads a run's findings.
type FindingStore interface {
	ListByRun(ctx context.Context, runID string) ([]domain.Finding, error)
}

// Issue is one finding summarized for the scorecard's top-issues list.
type Issue struct {
	CheckCode   string  `json:"check_code"`
	PageID      string  `json:"page_id"`
	Title       string  `json:"title"`
	Severity    string  `json:"severity"`
	ImpactScore float64 `json:"impact_score"`
	Effort      string  `json:"effort"`
}

// QuickWin is a high-impact, low-effort finding prioritized for
// remediation.
type QuickWin struct {
	CheckCode      string  `json:"check_code"`
	PageID         string  `json:"page_id"`
	Title          string  `json:"title"`
	ImpactScore    float64 `json:"impact_score"`
	Effort         string  `json:"effort"`
	Recommendation string  `json:"recommendation"`
}

// Scorecard is the run-level scoring summary. It carries no timestamp
// so that scoring the same findings twice yields identical values.
type Scorecard struct {
	RunID            string             `json:"run_id"`
	OverallScore     float64            `json:"overall_score"`
	CategoryScores   map[string]float64 `json:"category_scores"`
	Metrics          map[string]float64 `json:"metrics"`
	TotalFindings    int                `json:"total_findings"`
	CriticalFindings int                `json:"critical_findings"`
	HighFindings     int                `json:"high_findings"`
	MediumFindings   int                `json:"medium_findings"`
	LowFindings      int                `json:"low_findings"`
	TopIssues        []Issue            `json:"top_issues"`
	QuickWins        []QuickWin         `json:"quick_wins"`
}

// Comparison holds two scorecards and their deltas (run2 minus run1).
type Comparison struct {
	Run1              *Scorecard         `json:"run1"`
	Run2              *Scorecard         `json:"run2"`
	OverallScoreDelta float64            `json:"overall_score_delta"`
	CategoryDeltas    map[string]float64 `json:"category_deltas"`
	FindingsDelta     int                `json:"findings_delta"`
}

// Service computes scorecards from persisted findings.
type Service struct {
	runs     RunStore
	pages    PageStore
	findings FindingStore
	weights  Weights
	logger   logger.Interface
}

// NewService builds a scorer with validated weights.
func NewService(runs RunStore, pages PageStore, findings FindingStore, weights Weights, log logger.Interface) (*Service, error) {
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring weights: %w", err)
	}

	return &Service{
		runs:     runs,
		pages:    pages,
		findings: findings,
		weights:  weights,
		logger:   log.WithComponent("scorer"),
	}, nil
}

// Score computes the scorecard for a run. Read-only; callable
// independently for recomputation or reporting.
func (s *Service) Score(ctx context.Context, runID string) (*Scorecard, error) {
	run, err := s.runs.Get(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}

	s.logger.Info("starting score calculation", "run_id", runID)

	findings, err := s.findings.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load findings: %w", err)
	}

	pages, err := s.pages.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}

	card := &Scorecard{
		RunID:          runID,
		CategoryScores: s.categoryScores(findings),
		Metrics:        s.metrics(run, pages),
		TotalFindings:  len(findings),
		TopIssues:      s.topIssues(findings),
		QuickWins:      s.quickWins(findings),
	}
	card.OverallScore = s.overallScore(card.CategoryScores)

	for _, finding := range findings {
		switch finding.Severity {
		case domain.SeverityCritical:
			card.CriticalFindings++
		case domain.SeverityHigh:
			card.HighFindings++
		case domain.SeverityMedium:
			card.MediumFindings++
		case domain.SeverityLow:
			card.LowFindings++
		}
	}

	s.logger.Info("completed score calculation",
		"run_id", runID,
		"overall_score", card.OverallScore,
		"total_findings", card.TotalFindings)

	return card, nil
}

// ScoreCategory computes a single category's score for a run.
func (s *Service) ScoreCategory(ctx context.Context, runID, category string) (float64, error) {
	if _, ok := s.weights.Categories[category]; !ok {
		return 0, fmt.Errorf("unknown category %q", category)
	}

	findings, err := s.findings.ListByRun(ctx, runID)
	if err != nil {
		return 0, fmt.Errorf("load findings: %w", err)
	}

	var categoryFindings []domain.Finding
	for _, finding := range findings {
		if finding.Category == category {
			categoryFindings = append(categoryFindings, finding)
		}
	}

	return s.categoryScore(categoryFindings, category), nil
}

// CompareRuns scores two runs and reports the deltas between them.
func (s *Service) CompareRuns(ctx context.Context, runID1, runID2 string) (*Comparison, error) {
	card1, err := s.Score(ctx, runID1)
	if err != nil {
		return nil, fmt.Errorf("score run %s: %w", runID1, err)
	}

	card2, err := s.Score(ctx, runID2)
	if err != nil {
		return nil, fmt.Errorf("score run %s: %w", runID2, err)
	}

	deltas := make(map[string]float64, len(s.weights.Categories))
	for category := range s.weights.Categories {
		deltas[category] = round1(card2.CategoryScores[category] - card1.CategoryScores[category])
	}

	return &Comparison{
		Run1:              card1,
		Run2:              card2,
		OverallScoreDelta: round1(card2.OverallScore - card1.OverallScore),
		CategoryDeltas:    deltas,
		FindingsDelta:     card2.TotalFindings - card1.TotalFindings,
	}, nil
}

func (s *Service) categoryScores(findings []domain.Finding) map[string]float64 {
	scores := make(map[string]float64, len(s.weights.Categories))
	for category := range s.weights.Categories {
		var categoryFindings []domain.Finding
		for _, finding := range findings {
			if finding.Category == category {
				categoryFindings = append(categoryFindings, finding)
			}
		}
		scores[category] = s.categoryScore(categoryFindings, category)
	}

	return scores
}

// categoryScore starts from the category's full weight, deducts a
// severity-and-impact weighted amount per finding (each deduction
// capped at the full weight), clamps at zero, and converts to a 0-100
// percentage rounded to one decimal.
func (s *Service) categoryScore(findings []domain.Finding, category string) float64 {
	if len(findings) == 0 {
		return 100.0
	}

	maxWeight := s.weights.Categories[category]

	totalDeduction := 0.0
	for _, finding := range findings {
		deduction := s.weights.severityWeight(finding.Severity) * finding.ImpactScore / 10
		totalDeduction += math.Min(deduction, maxWeight)
	}

	score := math.Max(0, maxWeight-totalDeduction)

	return round1(score / maxWeight * 100)
}

func (s *Service) overallScore(categoryScores map[string]float64) float64 {
	// Sum in sorted key order so repeated invocations accumulate the
	// floats identically.
	categories := make([]string, 0, len(categoryScores))
	for category := range categoryScores {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	totalWeight := 0.0
	weightedScore := 0.0
	for _, category := range categories {
		weight := s.weights.Categories[category]
		totalWeight += weight
		weightedScore += categoryScores[category] / 100 * weight
	}

	if totalWeight == 0 {
		return 0
	}

	return round1(weightedScore / totalWeight * 100)
}

func (s *Service) metrics(run *domain.AuditRun, pages []domain.Page) map[string]float64 {
	totalPages := len(pages)

	successfulPages := 0
	indexablePages := 0
	totalResponseTime := 0.0
	totalContentLength := 0
	for _, page := range pages {
		if page.IsSuccessful() {
			successfulPages++
		}
		if page.Indexable {
			indexablePages++
		}
		totalResponseTime += page.ResponseTime
		totalContentLength += page.ContentLength
	}

	metrics := map[string]float64{
		"total_pages":           float64(totalPages),
		"successful_pages":      float64(successfulPages),
		"indexable_pages":       float64(indexablePages),
		"success_rate":          0,
		"indexability_rate":     0,
		"average_response_time": 0,
		"total_content_length":  float64(totalContentLength),
		"check_errors":          totalsNumber(run.Totals, "check_errors"),
	}

	if totalPages > 0 {
		metrics["success_rate"] = round1(float64(successfulPages) / float64(totalPages) * 100)
		metrics["indexability_rate"] = round1(float64(indexablePages) / float64(totalPages) * 100)
		metrics["average_response_time"] = round3(totalResponseTime / float64(totalPages))
	}

	return metrics
}

func (s *Service) topIssues(findings []domain.Finding) []Issue {
	ordered := make([]domain.Finding, len(findings))
	copy(ordered, findings)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if domain.SeverityRank(a.Severity) != domain.SeverityRank(b.Severity) {
			return domain.SeverityRank(a.Severity) > domain.SeverityRank(b.Severity)
		}
		if a.ImpactScore != b.ImpactScore {
			return a.ImpactScore > b.ImpactScore
		}
		if a.CheckCode != b.CheckCode {
			return a.CheckCode < b.CheckCode
		}
		return a.PageID < b.PageID
	})

	if len(ordered) > topIssueLimit {
		ordered = ordered[:topIssueLimit]
	}

	issues := make([]Issue, 0, len(ordered))
	for _, finding := range ordered {
		issues = append(issues, Issue{
			CheckCode:   finding.CheckCode,
			PageID:      finding.PageID,
			Title:       finding.Title,
			Severity:    finding.Severity,
			ImpactScore: finding.ImpactScore,
			Effort:      finding.Effort,
		})
	}

	return issues
}

func (s *Service) quickWins(findings []domain.Finding) []QuickWin {
	var candidates []domain.Finding
	for _, finding := range findings {
		lowEffort := finding.Effort == domain.EffortSmall || finding.Effort == domain.EffortMedium
		if lowEffort && finding.ImpactScore >= quickWinImpactThreshold {
			candidates = append(candidates, finding)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.ImpactScore != b.ImpactScore {
			return a.ImpactScore > b.ImpactScore
		}
		if a.CheckCode != b.CheckCode {
			return a.CheckCode < b.CheckCode
		}
		return a.PageID < b.PageID
	})

	if len(candidates) > quickWinLimit {
		candidates = candidates[:quickWinLimit]
	}

	wins := make([]QuickWin, 0, len(candidates))
	for _, finding := range candidates {
		win := QuickWin{
			CheckCode:   finding.CheckCode,
			PageID:      finding.PageID,
			Title:       finding.Title,
			ImpactScore: finding.ImpactScore,
			Effort:      finding.Effort,
		}
		if finding.Recommendation != nil {
			win.Recommendation = *finding.Recommendation
		}
		wins = append(wins, win)
	}

	return wins
}

// totalsNumber reads a numeric value out of a totals blob, tolerating
// the types JSON decoding produces.
func totalsNumber(totals domain.JSONBMap, key string) float64 {
	switch value := totals[key].(type) {
	case float64:
		return value
	case int:
		return float64(value)
	case int64:
		return float64(value)
	default:
		return 0
	}
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}

func round3(value float64) float64 {
	return math.Round(value*1000) / 1000
}
