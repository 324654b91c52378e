package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/counselrank/audit-service/internal/checks"
	"github.com/counselrank/audit-service/internal/domain"
	"github.com/counselrank/audit-service/internal/logger"
	"github.com/counselrank/audit-service/internal/metrics"
)

type mockRunStore struct {
	run        *domain.AuditRun
	getErr     error
	lastTotals domain.JSONBMap
}

func (m *mockRunStore) Get(_ context.Context, _ string) (*domain.AuditRun, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.run, nil
}

func (m *mockRunStore) UpdateTotals(_ context.Context, _ string, totals domain.JSONBMap) error {
	m.lastTotals = totals
	return nil
}

type mockPageStore struct {
	pages []domain.Page
}

func (m *mockPageStore) ListByRun(_ context.Context, _ string) ([]domain.Page, error) {
	return m.pages, nil
}

type mockFindingStore struct {
	replaced []domain.Finding
	err      error
}

func (m *mockFindingStore) ReplaceForRun(_ context.Context, _ string, findings []domain.Finding) error {
	if m.err != nil {
		return m.err
	}
	m.replaced = findings
	return nil
}

type mockArtifactLoader struct {
	bodies map[string][]byte
}

func (m *mockArtifactLoader) Load(_ context.Context, path string) ([]byte, error) {
	body, ok := m.bodies[path]
	if !ok {
		return nil, errors.New("artifact not found")
	}
	return body, nil
}

type mockIndexer struct {
	indexed []domain.Finding
	err     error
}

func (m *mockIndexer) IndexFindings(_ context.Context, _ string, findings []domain.Finding) error {
	if m.err != nil {
		return m.err
	}
	m.indexed = findings
	return nil
}

type panickingCheck struct{}

func (panickingCheck) Meta() checks.Metadata {
	return checks.Metadata{
		Code:     "technical.always_panics",
		Category: domain.CategoryTechnical,
		Severity: domain.SeverityLow,
	}
}

func (panickingCheck) Applicable(_ *checks.Subject) bool { return true }

func (panickingCheck) Run(_ *checks.Subject) *checks.Result {
	panic("boom")
}

// cleanHTML passes every registered check when paired with a matching
// Page row.
const cleanHTML = `<html><head>
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Experienced Family Law Attorneys In Springfield</title>
<script type="application/ld+json">{"@type":"LocalBusiness","name":"Springfield Family Law"}</script>
</head><body>
<h1>Family Law Attorneys</h1>
<img src="office.jpg" alt="Our office">
</body></html>`

const shortTitleHTML = `<html><head>
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Contact</title>
<script type="application/ld+json">{"@type":"LocalBusiness"}</script>
</head><body><h1>Contact Us</h1></body></html>`

func goodPageFields(page *domain.Page) {
	page.StatusCode = 200
	page.ContentType = "text/html; charset=utf-8"
	page.MetaDescription = "Springfield family law attorneys handling divorce, custody, and support cases with over twenty years of combined courtroom experience."
	page.Indexable = true
}

func strPtr(s string) *string { return &s }

func newTestAnalyzer(runStore *mockRunStore, pageStore *mockPageStore, findingStore *mockFindingStore, artifacts *mockArtifactLoader, indexer FindingIndexer, m *metrics.Metrics) *Service {
	return NewService(runStore, pageStore, findingStore, artifacts, indexer, m, logger.NewNoOp())
}

func TestAnalyzeRunThreePages(t *testing.T) {
	goodPage := domain.Page{
		ID:       "page-good",
		RunID:    "run-1",
		URL:      "https://example.com/",
		Title:    "Experienced Family Law Attorneys In Springfield",
		HTMLPath: strPtr("good.html"),
	}
	goodPageFields(&goodPage)

	shortTitlePage := domain.Page{
		ID:       "page-short",
		RunID:    "run-1",
		URL:      "https://example.com/contact",
		Title:    "Contact",
		HTMLPath: strPtr("short.html"),
	}
	goodPageFields(&shortTitlePage)

	notFoundPage := domain.Page{
		ID:          "page-missing",
		RunID:       "run-1",
		URL:         "https://example.com/gone",
		StatusCode:  404,
		ContentType: "text/plain",
	}

	runStore := &mockRunStore{run: &domain.AuditRun{ID: "run-1", State: domain.RunStateAnalyzing}}
	pageStore := &mockPageStore{pages: []domain.Page{goodPage, shortTitlePage, notFoundPage}}
	findingStore := &mockFindingStore{}
	artifacts := &mockArtifactLoader{bodies: map[string][]byte{
		"good.html":  []byte(cleanHTML),
		"short.html": []byte(shortTitleHTML),
	}}

	service := newTestAnalyzer(runStore, pageStore, findingStore, artifacts, nil, metrics.New())

	findings, err := service.AnalyzeRun(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("AnalyzeRun: %v", err)
	}

	if len(findings) != 2 {
		for _, f := range findings {
			t.Logf("finding: %s on %s (%v)", f.CheckCode, f.PageID, f.Evidence)
		}
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}

	byCode := make(map[string]domain.Finding)
	for _, finding := range findings {
		byCode[finding.CheckCode] = finding
	}

	title, ok := byCode["onpage.title_tag"]
	if !ok {
		t.Fatal("expected a title tag finding")
	}
	if title.PageID != "page-short" {
		t.Errorf("title finding on page %s, want page-short", title.PageID)
	}
	if title.Severity != domain.SeverityHigh {
		t.Errorf("title finding severity %s, want high", title.Severity)
	}

	status, ok := byCode["technical.http_status_code"]
	if !ok {
		t.Fatal("expected an http status finding")
	}
	if status.PageID != "page-missing" {
		t.Errorf("status finding on page %s, want page-missing", status.PageID)
	}
	if status.Evidence["status_code"] != 404 {
		t.Errorf("status evidence = %v, want 404", status.Evidence["status_code"])
	}

	if len(findingStore.replaced) != 2 {
		t.Errorf("persisted %d findings, want 2", len(findingStore.replaced))
	}

	counts, ok := runStore.lastTotals["findings"].(map[string]int)
	if !ok {
		t.Fatalf("totals findings blob missing: %v", runStore.lastTotals)
	}
	if counts["total"] != 2 || counts["critical"] != 1 || counts["high"] != 1 {
		t.Errorf("totals counts = %v", counts)
	}
	if runStore.lastTotals["check_errors"] != int64(0) {
		t.Errorf("check_errors = %v, want 0", runStore.lastTotals["check_errors"])
	}
}

func TestAnalyzeRunContinuesPastPanickingCheck(t *testing.T) {
	page := domain.Page{
		ID:          "page-1",
		RunID:       "run-1",
		URL:         "https://example.com/gone",
		StatusCode:  404,
		ContentType: "text/plain",
	}

	runStore := &mockRunStore{run: &domain.AuditRun{ID: "run-1"}}
	pageStore := &mockPageStore{pages: []domain.Page{page}}
	findingStore := &mockFindingStore{}
	m := metrics.New()

	service := newTestAnalyzer(runStore, pageStore, findingStore, nil, nil, m)
	service.registry = append([]checks.Check{panickingCheck{}}, service.registry...)

	findings, err := service.AnalyzeRun(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("AnalyzeRun: %v", err)
	}

	if len(findings) != 1 {
		t.Fatalf("expected the status finding despite the panic, got %d findings", len(findings))
	}
	if findings[0].CheckCode != "technical.http_status_code" {
		t.Errorf("finding code = %s", findings[0].CheckCode)
	}

	if got := m.CheckErrorCount(); got != 1 {
		t.Errorf("check error count = %d, want 1", got)
	}
	if runStore.lastTotals["check_errors"] != int64(1) {
		t.Errorf("totals check_errors = %v, want 1", runStore.lastTotals["check_errors"])
	}
}

func TestAnalyzeRunMissingArtifactSkipsDocChecks(t *testing.T) {
	page := domain.Page{
		ID:       "page-1",
		RunID:    "run-1",
		URL:      "https://example.com/",
		Title:    "Experienced Family Law Attorneys In Springfield",
		HTMLPath: strPtr("missing.html"),
	}
	goodPageFields(&page)

	runStore := &mockRunStore{run: &domain.AuditRun{ID: "run-1"}}
	pageStore := &mockPageStore{pages: []domain.Page{page}}
	findingStore := &mockFindingStore{}
	artifacts := &mockArtifactLoader{bodies: map[string][]byte{}}

	service := newTestAnalyzer(runStore, pageStore, findingStore, artifacts, nil, metrics.New())

	findings, err := service.AnalyzeRun(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("AnalyzeRun: %v", err)
	}

	// Document-gated checks (mobile friendly, h1, alt text, schema)
	// must be skipped, not failed, when the stored body is gone.
	for _, finding := range findings {
		t.Errorf("unexpected finding %s: %v", finding.CheckCode, finding.Evidence)
	}
}

func TestAnalyzeRunIndexerFailureIsNonFatal(t *testing.T) {
	page := domain.Page{
		ID:          "page-1",
		RunID:       "run-1",
		URL:         "https://example.com/gone",
		StatusCode:  500,
		ContentType: "text/plain",
	}

	runStore := &mockRunStore{run: &domain.AuditRun{ID: "run-1"}}
	pageStore := &mockPageStore{pages: []domain.Page{page}}
	findingStore := &mockFindingStore{}
	indexer := &mockIndexer{err: errors.New("elasticsearch unavailable")}

	service := newTestAnalyzer(runStore, pageStore, findingStore, nil, indexer, metrics.New())

	findings, err := service.AnalyzeRun(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("AnalyzeRun should tolerate indexer failure: %v", err)
	}
	if len(findings) != 1 {
		t.Errorf("expected 1 finding, got %d", len(findings))
	}
}

func TestAvailableChecks(t *testing.T) {
	service := newTestAnalyzer(&mockRunStore{}, &mockPageStore{}, &mockFindingStore{}, nil, nil, metrics.New())

	metas := service.AvailableChecks()
	if len(metas) != 9 {
		t.Fatalf("expected 9 checks, got %d", len(metas))
	}

	seen := make(map[string]bool)
	for _, meta := range metas {
		if meta.Code == "" || meta.Category == "" || meta.Severity == "" {
			t.Errorf("incomplete metadata: %+v", meta)
		}
		if seen[meta.Code] {
			t.Errorf("duplicate check code %s", meta.Code)
		}
		seen[meta.Code] = true
	}
}

func TestRunCheck(t *testing.T) {
	service := newTestAnalyzer(&mockRunStore{}, &mockPageStore{}, &mockFindingStore{}, nil, nil, metrics.New())

	page := &domain.Page{URL: "https://example.com/gone", StatusCode: 404, ContentType: "text/html"}
	subject := &checks.Subject{Page: page}

	result := service.RunCheck("technical.http_status_code", subject)
	if result == nil {
		t.Fatal("expected a result for a 404 page")
	}

	if got := service.RunCheck("technical.unknown", subject); got != nil {
		t.Errorf("unknown check should return nil, got %v", got)
	}
}
