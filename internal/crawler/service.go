package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/counselrank/audit-service/internal/domain"
	"github.com/counselrank/audit-service/internal/logger"
	"github.com/counselrank/audit-service/internal/metrics"
)

// Crawl budget defaults, matching the platform's per-audit limits.
const (
	DefaultMaxPages    = 200
	DefaultConcurrency = 4
	DefaultCrawlDelay  = 1 * time.Second
	DefaultMaxDuration = 30 * time.Minute
)

// RunStore is the audit-run persistence the crawler needs.
type RunStore interface {
	UpdateState(ctx context.Context, id, state string) error
	UpdateTotals(ctx context.Context, id string, totals domain.JSONBMap) error
	SetError(ctx context.Context, id, message string) error
}

// PageStore persists crawled pages.
type PageStore interface {
	Create(ctx context.Context, page *domain.Page) error
}

// ArtifactStore persists fetched HTML bodies, returning an opaque path.
type ArtifactStore interface {
	Store(ctx context.Context, runID string, body []byte) (string, error)
}

// RobotsPolicy answers robots.txt questions: whether a URL may be
// crawled, and which sitemap URLs the host declares.
type RobotsPolicy interface {
	IsAllowed(ctx context.Context, rawURL string) (bool, error)
	Sitemaps(ctx context.Context, rawURL string) []string
}

// PageFetcher fetches a single URL.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) FetchedResource
}

// Options are the run-scoped crawl settings.
type Options struct {
	MaxPages     int
	Concurrency  int
	CrawlDelay   time.Duration
	MaxDuration  time.Duration
	BlockedPaths []string
	AllowedPaths []string
	StoreHTML    bool
}

// withDefaults fills unset option fields.
func (o Options) withDefaults() Options {
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = DefaultMaxDuration
	}
	return o
}

// Scope is the boundary a crawl must stay within.
type Scope struct {
	SeedHost     string
	AllowedPaths []string
	BlockedPaths []string
}

// Service drives the breadth-first crawl of one audit run.
type Service struct {
	fetcher   PageFetcher
	robots    RobotsPolicy
	runs      RunStore
	pages     PageStore
	artifacts ArtifactStore
	log       logger.Interface
	metrics   *metrics.Metrics
	opts      Options
}

// NewService creates a crawl service.
func NewService(
	fetcher PageFetcher,
	robots RobotsPolicy,
	runs RunStore,
	pages PageStore,
	artifacts ArtifactStore,
	log logger.Interface,
	m *metrics.Metrics,
	opts Options,
) *Service {
	return &Service{
		fetcher:   fetcher,
		robots:    robots,
		runs:      runs,
		pages:     pages,
		artifacts: artifacts,
		log:       log,
		metrics:   m,
		opts:      opts.withDefaults(),
	}
}

// ShouldCrawl reports whether the URL is inside the crawl's scope and
// policy: same host as the seed, not on a blocked path, on an allowed
// path when an allowlist is configured, and permitted by robots.txt.
// Policy rejections are silent skips, never errors.
func (s *Service) ShouldCrawl(ctx context.Context, rawURL string, scope *Scope) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}

	if !strings.EqualFold(parsed.Host, scope.SeedHost) {
		return false
	}

	path := parsed.Path
	if path == "" {
		path = "/"
	}

	for _, blocked := range scope.BlockedPaths {
		if strings.HasPrefix(path, blocked) {
			return false
		}
	}

	if len(scope.AllowedPaths) > 0 {
		allowed := false
		for _, prefix := range scope.AllowedPaths {
			if strings.HasPrefix(path, prefix) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	permitted, robotsErr := s.robots.IsAllowed(ctx, rawURL)
	if robotsErr != nil {
		s.log.Warn("robots check failed", "url", rawURL, "error", robotsErr.Error())
		return false
	}

	return permitted
}

// CrawlRun traverses the run's target site breadth-first, persisting one
// Page per visited URL. Single-fetch failures never abort the crawl; a
// run where no page fetched successfully completes with the aggregate
// failure recorded on the run's error field.
func (s *Service) CrawlRun(ctx context.Context, run *domain.AuditRun) error {
	seed, err := url.Parse(run.TargetURL)
	if err != nil || seed.Host == "" {
		return fmt.Errorf("invalid target url %q", run.TargetURL)
	}

	if stateErr := s.runs.UpdateState(ctx, run.ID, domain.RunStateCrawling); stateErr != nil {
		return fmt.Errorf("update run state: %w", stateErr)
	}

	scope := &Scope{
		SeedHost:     seed.Host,
		AllowedPaths: append(s.opts.AllowedPaths, run.AllowedPaths()...),
		BlockedPaths: append(s.opts.BlockedPaths, run.BlockedPaths()...),
	}

	// The duration budget bounds fetching only. Persistence runs on the
	// caller's context so that totals and page rows written after the
	// budget expires still succeed: exhausting the budget is a normal
	// stop, not a failure.
	crawlCtx, cancel := context.WithTimeout(ctx, s.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	frontier := NewFrontier(run.TargetURL)

	// Seed the frontier with the sitemap URLs robots.txt declares, the
	// same way anchor-discovered URLs enter it.
	for _, sitemapURL := range s.robots.Sitemaps(crawlCtx, run.TargetURL) {
		if SameHost(sitemapURL, run.TargetURL) {
			frontier.Push(sitemapURL)
		}
	}

	var pagesCrawled, pagesSucceeded int

	for pagesCrawled < s.opts.MaxPages {
		if crawlCtx.Err() != nil {
			s.log.Warn("crawl budget exhausted", "run_id", run.ID, "pages_crawled", pagesCrawled)
			break
		}

		batch := s.nextBatch(crawlCtx, frontier, scope, s.opts.MaxPages-pagesCrawled)
		if len(batch) == 0 {
			break
		}

		resources := s.fetchBatch(crawlCtx, batch)

		for i := range resources {
			resource := &resources[i]

			// A fetch cut short by the expiring budget produced a
			// synthetic context error, not a page outcome. Drop it.
			if resource.Error != "" && crawlCtx.Err() != nil {
				continue
			}

			if persistErr := s.persistPage(ctx, run.ID, resource); persistErr != nil {
				return fmt.Errorf("persist page %s: %w", resource.URL, persistErr)
			}
			pagesCrawled++

			if resource.Error != "" {
				s.metrics.RecordFetchError()
				s.log.Info("page fetch failed", "url", resource.URL, "error", resource.Error)
				continue
			}

			s.metrics.RecordPageFetched()
			pagesSucceeded++

			if resource.IsHTML() {
				for _, discovered := range DiscoverURLs(resource) {
					if SameHost(discovered, run.TargetURL) {
						frontier.Push(discovered)
					}
				}
			}
		}

		if s.opts.CrawlDelay > 0 && frontier.Len() > 0 {
			select {
			case <-crawlCtx.Done():
			case <-time.After(s.opts.CrawlDelay):
			}
		}
	}

	totals := domain.JSONBMap{
		"pages_crawled":          pagesCrawled,
		"pages_succeeded":        pagesSucceeded,
		"urls_discovered":        frontier.SeenCount(),
		"crawl_duration_seconds": time.Since(start).Seconds(),
	}

	if totalsErr := s.runs.UpdateTotals(ctx, run.ID, totals); totalsErr != nil {
		return fmt.Errorf("update run totals: %w", totalsErr)
	}

	if pagesSucceeded == 0 {
		if errErr := s.runs.SetError(ctx, run.ID, "no content crawled: all page fetches failed"); errErr != nil {
			return fmt.Errorf("record crawl error: %w", errErr)
		}
	}

	s.log.Info("crawl completed",
		"run_id", run.ID,
		"pages_crawled", pagesCrawled,
		"pages_succeeded", pagesSucceeded,
		"duration", time.Since(start),
	)

	return nil
}

// nextBatch pops up to limit in-scope URLs from the frontier, capped at
// the configured concurrency.
func (s *Service) nextBatch(ctx context.Context, frontier *Frontier, scope *Scope, limit int) []string {
	size := s.opts.Concurrency
	if limit < size {
		size = limit
	}

	batch := make([]string, 0, size)
	for len(batch) < size {
		next, ok := frontier.Pop()
		if !ok {
			break
		}
		if !s.ShouldCrawl(ctx, next, scope) {
			continue
		}
		batch = append(batch, next)
	}

	return batch
}

// fetchBatch fetches a batch of URLs concurrently, preserving order.
func (s *Service) fetchBatch(ctx context.Context, urls []string) []FetchedResource {
	resources := make([]FetchedResource, len(urls))

	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(idx int, fetchURL string) {
			defer wg.Done()
			resources[idx] = s.fetcher.Fetch(ctx, fetchURL)
		}(i, u)
	}
	wg.Wait()

	return resources
}

// persistPage projects a fetched resource into a Page row, storing the
// HTML body as an artifact when configured.
func (s *Service) persistPage(ctx context.Context, runID string, resource *FetchedResource) error {
	page := &domain.Page{
		ID:               uuid.NewString(),
		RunID:            runID,
		URL:              resource.URL,
		StatusCode:       resource.StatusCode,
		ContentType:      resource.ContentType,
		ContentLength:    resource.ContentLength,
		ResponseTime:     resource.ResponseTime.Seconds(),
		RobotsDirectives: resource.RobotsDirectives,
		BodyHash:         resource.BodyHash(),
		Indexable:        resource.IsIndexable(),
		CreatedAt:        time.Now().UTC(),
	}

	if resource.CanonicalURL != "" {
		canonical := resource.CanonicalURL
		page.CanonicalURL = &canonical
	}

	if resource.Error != "" {
		fetchErr := resource.Error
		page.Error = &fetchErr
	}

	if resource.IsHTML() && len(resource.Body) > 0 {
		extractPageContent(page, resource.Body)

		if s.opts.StoreHTML {
			path, storeErr := s.artifacts.Store(ctx, runID, resource.Body)
			if storeErr != nil {
				s.log.Warn("store html artifact failed", "url", resource.URL, "error", storeErr.Error())
			} else {
				page.HTMLPath = &path
			}
		}
	}

	return s.pages.Create(ctx, page)
}

// extractPageContent fills title, meta description, and body word count
// from the HTML body.
func extractPageContent(page *domain.Page, body []byte) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return
	}

	page.Title = strings.TrimSpace(doc.Find("title").First().Text())

	if desc, exists := doc.Find("meta[name='description']").Attr("content"); exists {
		page.MetaDescription = strings.TrimSpace(desc)
	}

	page.WordCount = len(strings.Fields(doc.Find("body").Text()))
}
