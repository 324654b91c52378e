// Package analyzer runs every applicable check against every page of a
// run and persists the findings. A failing check never aborts the
// analysis: panics are recovered, logged, and counted, and the check
// contributes no finding for that page.
package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/counselrank/audit-service/internal/checks"
	"github.com/counselrank/audit-service/internal/domain"
	"github.com/counselrank/audit-service/internal/logger"
	"github.com/counselrank/audit-service/internal/metrics"
)

// RunStore loads runs and persists their totals.
type RunStore interface {
	Get(ctx context.Context, id string) (*domain.AuditRun, error)
	UpdateTotals(ctx context.Context, id string, totals domain.JSONBMap) error
}

// PageStore loads a run's crawled pages.
type PageStore interface {
	ListByRun(ctx context.Context, runID string) ([]domain.Page, error)
}

// FindingStore persists findings. ReplaceForRun swaps a run's findings
// wholesale so re-analysis never accumulates duplicates.
type FindingStore interface {
	ReplaceForRun(ctx context.Context, runID string, findings []domain.Finding) error
}

// ArtifactLoader reads stored page bodies.
type ArtifactLoader interface {
	Load(ctx context.Context, path string) ([]byte, error)
}

// FindingIndexer pushes findings to a search index. Optional.
type FindingIndexer interface {
	IndexFindings(ctx context.Context, runID string, findings []domain.Finding) error
}

// Service orchestrates check execution over a run's pages.
type Service struct {
	runs      RunStore
	pages     PageStore
	findings  FindingStore
	artifacts ArtifactLoader
	indexer   FindingIndexer
	registry  []checks.Check
	metrics   *metrics.Metrics
	logger    logger.Interface
}

// NewService builds an analyzer over the static check registry.
// indexer may be nil.
func NewService(
	runs RunStore,
	pages PageStore,
	findings FindingStore,
	artifacts ArtifactLoader,
	indexer FindingIndexer,
	m *metrics.Metrics,
	log logger.Interface,
) *Service {
	return &Service{
		runs:      runs,
		pages:     pages,
		findings:  findings,
		artifacts: artifacts,
		indexer:   indexer,
		registry:  checks.Registry(),
		metrics:   m,
		logger:    log.WithComponent("analyzer"),
	}
}

// AvailableChecks lists the metadata of every registered check.
func (s *Service) AvailableChecks() []checks.Metadata {
	metas := make([]checks.Metadata, 0, len(s.registry))
	for _, check := range s.registry {
		metas = append(metas, check.Meta())
	}
	return metas
}

// RunCheck runs a single check by code against one subject. Returns
// nil when the check is unknown, not applicable, or passes.
func (s *Service) RunCheck(checkCode string, subject *checks.Subject) *checks.Result {
	for _, check := range s.registry {
		if check.Meta().Code != checkCode {
			continue
		}
		if !check.Applicable(subject) {
			return nil
		}
		return s.runOne(check, subject)
	}
	return nil
}

// AnalyzeRun runs all applicable checks against every page of the run,
// replaces the run's findings, and updates its totals. Returns the
// persisted findings.
func (s *Service) AnalyzeRun(ctx context.Context, runID string) ([]domain.Finding, error) {
	run, err := s.runs.Get(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}

	pages, err := s.pages.ListByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}

	s.logger.Info("starting audit run analysis",
		"run_id", runID,
		"pages_count", len(pages))

	checkErrorsBefore := s.metrics.CheckErrorCount()

	allFindings := make([]domain.Finding, 0)
	for i := range pages {
		page := &pages[i]
		subject := s.buildSubject(ctx, page)
		allFindings = append(allFindings, s.analyzePage(run.ID, page, subject)...)
	}

	if err := s.findings.ReplaceForRun(ctx, runID, allFindings); err != nil {
		return nil, fmt.Errorf("persist findings: %w", err)
	}
	s.metrics.RecordFindings(len(allFindings))

	checkErrors := s.metrics.CheckErrorCount() - checkErrorsBefore
	if err := s.updateRunTotals(ctx, run, allFindings, checkErrors); err != nil {
		return nil, fmt.Errorf("update run totals: %w", err)
	}

	if s.indexer != nil {
		if err := s.indexer.IndexFindings(ctx, runID, allFindings); err != nil {
			// Indexing is best-effort; the findings are already
			// persisted in the database.
			s.logger.WithError(err).Warn("failed to index findings", "run_id", runID)
		}
	}

	s.logger.Info("completed audit run analysis",
		"run_id", runID,
		"total_findings", len(allFindings),
		"check_errors", checkErrors)

	return allFindings, nil
}

// analyzePage runs every applicable check against one page.
func (s *Service) analyzePage(runID string, page *domain.Page, subject *checks.Subject) []domain.Finding {
	var findings []domain.Finding
	for _, check := range s.registry {
		if !check.Applicable(subject) {
			continue
		}

		result := s.runOne(check, subject)
		if result == nil {
			continue
		}

		findings = append(findings, newFinding(runID, page.ID, result))
	}

	s.logger.Debug("analyzed page",
		"run_id", runID,
		"page_url", page.URL,
		"findings_count", len(findings))

	return findings
}

// runOne executes a single check, converting a panic into a logged,
// counted check error with no finding.
func (s *Service) runOne(check checks.Check, subject *checks.Subject) (result *checks.Result) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.RecordCheckError()
			s.logger.Error("check panicked",
				"check_code", check.Meta().Code,
				"page_url", subject.Page.URL,
				"panic", fmt.Sprintf("%v", r))
			result = nil
		}
	}()

	return check.Run(subject)
}

// buildSubject pairs a page with the parsed document of its stored
// HTML body when one is available.
func (s *Service) buildSubject(ctx context.Context, page *domain.Page) *checks.Subject {
	subject := &checks.Subject{Page: page}
	if !page.IsHTML() || page.HTMLPath == nil || s.artifacts == nil {
		return subject
	}

	body, err := s.artifacts.Load(ctx, *page.HTMLPath)
	if err != nil {
		s.logger.WithError(err).Warn("failed to load page artifact",
			"page_url", page.URL,
			"html_path", *page.HTMLPath)
		return subject
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		s.logger.WithError(err).Warn("failed to parse page artifact",
			"page_url", page.URL)
		return subject
	}

	subject.Doc = doc
	return subject
}

func (s *Service) updateRunTotals(ctx context.Context, run *domain.AuditRun, findings []domain.Finding, checkErrors int64) error {
	counts := map[string]int{
		"total":                 len(findings),
		domain.SeverityCritical: 0,
		domain.SeverityHigh:     0,
		domain.SeverityMedium:   0,
		domain.SeverityLow:      0,
	}
	for i := range findings {
		counts[findings[i].Severity]++
	}

	totals := run.Totals
	if totals == nil {
		totals = domain.JSONBMap{}
	}
	totals["findings"] = counts
	totals["check_errors"] = checkErrors

	return s.runs.UpdateTotals(ctx, run.ID, totals)
}

func newFinding(runID, pageID string, result *checks.Result) domain.Finding {
	finding := domain.Finding{
		ID:          uuid.NewString(),
		RunID:       runID,
		PageID:      pageID,
		CheckCode:   result.Code,
		Category:    result.Category,
		Severity:    result.Severity,
		Title:       result.Title,
		Description: result.Description,
		Evidence:    result.Evidence,
		ImpactScore: result.ImpactScore,
		Effort:      result.Effort,
		CreatedAt:   time.Now().UTC(),
	}
	if result.Recommendation != "" {
		recommendation := result.Recommendation
		finding.Recommendation = &recommendation
	}
	return finding
}
