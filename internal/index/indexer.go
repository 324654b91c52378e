// Package index pushes findings to Elasticsearch so the reporting UI
// can search them. Indexing is best-effort: the database remains the
// source of truth.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/counselrank/audit-service/internal/domain"
	"github.com/counselrank/audit-service/internal/logger"
)

// DefaultFindingsIndex is the index findings are written to.
const DefaultFindingsIndex = "audit-findings"

// Config holds Elasticsearch connection settings.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	APIKey    string
	Index     string
}

// FindingIndexer writes findings to an Elasticsearch index.
type FindingIndexer struct {
	client *es.Client
	index  string
	logger logger.Interface
}

// NewFindingIndexer builds an indexer from connection settings.
func NewFindingIndexer(cfg Config, log logger.Interface) (*FindingIndexer, error) {
	client, err := es.NewClient(es.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	index := cfg.Index
	if index == "" {
		index = DefaultFindingsIndex
	}

	return &FindingIndexer{
		client: client,
		index:  index,
		logger: log.WithComponent("index"),
	}, nil
}

// IndexFindings writes a run's findings, one document per finding,
// keyed by finding ID so re-analysis overwrites prior documents.
func (i *FindingIndexer) IndexFindings(ctx context.Context, runID string, findings []domain.Finding) error {
	for idx := range findings {
		finding := &findings[idx]

		body, err := json.Marshal(finding)
		if err != nil {
			return fmt.Errorf("failed to marshal finding %s: %w", finding.ID, err)
		}

		res, err := i.client.Index(
			i.index,
			bytes.NewReader(body),
			i.client.Index.WithContext(ctx),
			i.client.Index.WithDocumentID(finding.ID),
		)
		if err != nil {
			return fmt.Errorf("failed to index finding %s: %w", finding.ID, err)
		}

		if res.IsError() {
			msg := res.String()
			res.Body.Close()
			return fmt.Errorf("error indexing finding %s: %s", finding.ID, msg)
		}
		res.Body.Close()
	}

	i.logger.Debug("indexed findings",
		"run_id", runID,
		"count", len(findings),
		"index", i.index)

	return nil
}

// Ping verifies the cluster is reachable.
func (i *FindingIndexer) Ping(ctx context.Context) error {
	res, err := i.client.Ping(i.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping error: %s", res.String())
	}

	return nil
}
