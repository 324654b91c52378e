package common

import (
	"context"
	"fmt"

	"github.com/counselrank/audit-service/internal/domain"
	"github.com/counselrank/audit-service/internal/scorer"
)

// RunCrawlStage crawls the run's target site. The crawl service owns
// the state transition to crawling and the pages_crawled totals.
func RunCrawlStage(ctx context.Context, deps *CommandDeps, p *Pipeline, runID string) error {
	run, err := p.Runs.Get(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}

	svc := NewCrawlerService(deps, p, run)
	if err := svc.CrawlRun(ctx, run); err != nil {
		return fmt.Errorf("crawl run %s: %w", runID, err)
	}
	return nil
}

// RunAnalyzeStage marks the run analyzing and executes every
// applicable check against its crawled pages.
func RunAnalyzeStage(ctx context.Context, deps *CommandDeps, p *Pipeline, runID string) error {
	svc, err := NewAnalyzerService(deps, p)
	if err != nil {
		return err
	}

	if err := p.Runs.UpdateState(ctx, runID, domain.RunStateAnalyzing); err != nil {
		return fmt.Errorf("mark run analyzing: %w", err)
	}

	if _, err := svc.AnalyzeRun(ctx, runID); err != nil {
		return fmt.Errorf("analyze run %s: %w", runID, err)
	}
	return nil
}

// RunScoreStage scores the run's findings, embeds the scorecard into
// the run totals, and completes the run.
func RunScoreStage(ctx context.Context, deps *CommandDeps, p *Pipeline, runID string) (*scorer.Scorecard, error) {
	svc, err := NewScorerService(deps, p)
	if err != nil {
		return nil, err
	}

	if err := p.Runs.UpdateState(ctx, runID, domain.RunStateScoring); err != nil {
		return nil, fmt.Errorf("mark run scoring: %w", err)
	}

	card, err := svc.Score(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("score run %s: %w", runID, err)
	}

	run, err := p.Runs.Get(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}

	totals := run.Totals
	if totals == nil {
		totals = domain.JSONBMap{}
	}
	totals["scores"] = map[string]any{
		"overall":    card.OverallScore,
		"categories": card.CategoryScores,
		"metrics":    card.Metrics,
	}
	totals["quick_wins"] = card.QuickWins

	if err := p.Runs.UpdateTotals(ctx, runID, totals); err != nil {
		return nil, fmt.Errorf("store scorecard: %w", err)
	}
	if err := p.Runs.UpdateState(ctx, runID, domain.RunStateCompleted); err != nil {
		return nil, fmt.Errorf("complete run: %w", err)
	}

	return card, nil
}
