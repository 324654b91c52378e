package common

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/counselrank/audit-service/internal/analyzer"
	"github.com/counselrank/audit-service/internal/crawler"
	"github.com/counselrank/audit-service/internal/database"
	"github.com/counselrank/audit-service/internal/domain"
	"github.com/counselrank/audit-service/internal/index"
	"github.com/counselrank/audit-service/internal/metrics"
	"github.com/counselrank/audit-service/internal/scorer"
	"github.com/counselrank/audit-service/internal/storage"
)

// Pipeline bundles the repositories and stores shared by the stage
// commands. Close releases the database connection.
type Pipeline struct {
	DB        *sqlx.DB
	Runs      *database.RunRepository
	Pages     *database.PageRepository
	Findings  *database.FindingRepository
	Artifacts *storage.ArtifactStore
	Metrics   *metrics.Metrics
}

// NewPipeline opens the database and artifact store described by the
// configuration and wires the repositories over them.
func NewPipeline(deps *CommandDeps) (*Pipeline, error) {
	cfg := deps.Config

	db, err := database.NewPostgresConnection(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	artifacts, err := storage.NewArtifactStore(cfg.Storage.ArtifactDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open artifact store: %w", err)
	}

	return &Pipeline{
		DB:        db,
		Runs:      database.NewRunRepository(db),
		Pages:     database.NewPageRepository(db),
		Findings:  database.NewFindingRepository(db),
		Artifacts: artifacts,
		Metrics:   metrics.New(),
	}, nil
}

// Close releases the pipeline's database connection.
func (p *Pipeline) Close() error {
	return p.DB.Close()
}

// NewCrawlerService builds a crawl service for one run, combining the
// configured budgets with the run's own path scope.
func NewCrawlerService(deps *CommandDeps, p *Pipeline, run *domain.AuditRun) *crawler.Service {
	cfg := deps.Config.Crawler

	fetcher := crawler.NewFetcher(crawler.FetcherConfig{
		UserAgent: cfg.UserAgent,
	})
	robots := crawler.NewRobotsChecker(fetcher.Client(), cfg.UserAgent, 0)

	return crawler.NewService(fetcher, robots, p.Runs, p.Pages, p.Artifacts, deps.Logger, p.Metrics, crawler.Options{
		MaxPages:     cfg.MaxPages,
		Concurrency:  cfg.Concurrency,
		CrawlDelay:   cfg.CrawlDelay,
		MaxDuration:  cfg.MaxDuration,
		BlockedPaths: run.BlockedPaths(),
		AllowedPaths: run.AllowedPaths(),
		StoreHTML:    cfg.StoreHTML,
	})
}

// NewAnalyzerService builds the analyzer, attaching the Elasticsearch
// finding indexer when one is configured.
func NewAnalyzerService(deps *CommandDeps, p *Pipeline) (*analyzer.Service, error) {
	var indexer analyzer.FindingIndexer
	if deps.Config.Elasticsearch.Enabled {
		es := deps.Config.Elasticsearch
		fi, err := index.NewFindingIndexer(index.Config{
			Addresses: es.Addresses,
			Username:  es.Username,
			Password:  es.Password,
			APIKey:    es.APIKey,
			Index:     es.Index,
		}, deps.Logger)
		if err != nil {
			return nil, fmt.Errorf("create finding indexer: %w", err)
		}
		indexer = fi
	}

	return analyzer.NewService(p.Runs, p.Pages, p.Findings, p.Artifacts, indexer, p.Metrics, deps.Logger), nil
}

// NewScorerService builds the scorer from the configured weights.
func NewScorerService(deps *CommandDeps, p *Pipeline) (*scorer.Service, error) {
	svc, err := scorer.NewService(p.Runs, p.Pages, p.Findings, deps.Config.Scoring, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("create scorer: %w", err)
	}
	return svc, nil
}
