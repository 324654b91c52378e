package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// defaultRobotsTTL is how long a host's robots.txt stays cached.
const defaultRobotsTTL = 24 * time.Hour

// maxRobotsBytes limits the size of robots.txt responses we will read.
const maxRobotsBytes = 512 * 1024

// RobotsChecker fetches, parses, and caches robots.txt rules per host.
// Missing or errored robots.txt results in allow-all, per standard
// crawling practice.
type RobotsChecker struct {
	httpClient *http.Client
	userAgent  string
	ttl        time.Duration

	mu    sync.RWMutex
	cache map[string]*robotsEntry // keyed by lowercase host
}

type robotsEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
	allowAll  bool
}

// NewRobotsChecker creates a RobotsChecker with the given client and agent.
func NewRobotsChecker(httpClient *http.Client, userAgent string, ttl time.Duration) *RobotsChecker {
	if ttl <= 0 {
		ttl = defaultRobotsTTL
	}

	return &RobotsChecker{
		httpClient: httpClient,
		userAgent:  userAgent,
		ttl:        ttl,
		cache:      make(map[string]*robotsEntry),
	}
}

// IsAllowed reports whether the URL's path is allowed for our user agent
// by the host's robots.txt, fetching and caching it when needed.
func (c *RobotsChecker) IsAllowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("robots: parse url: %w", err)
	}

	host := strings.ToLower(parsed.Host)
	if host == "" {
		return false, fmt.Errorf("robots: empty host in url %q", rawURL)
	}

	entry := c.cached(host)
	if entry == nil {
		entry = c.fetchAndCache(ctx, host, parsed.Scheme)
	}

	if entry.allowAll {
		return true, nil
	}

	return entry.data.TestAgent(parsed.Path, c.userAgent), nil
}

// Sitemaps returns the sitemap URLs the host's robots.txt declares,
// fetching and caching the file when needed. A missing or unparseable
// robots.txt yields none.
func (c *RobotsChecker) Sitemaps(ctx context.Context, rawURL string) []string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}

	host := strings.ToLower(parsed.Host)
	if host == "" {
		return nil
	}

	entry := c.cached(host)
	if entry == nil {
		entry = c.fetchAndCache(ctx, host, parsed.Scheme)
	}

	if entry.allowAll || entry.data == nil {
		return nil
	}
	return entry.data.Sitemaps
}

// CrawlDelay returns the crawl-delay robots.txt specifies for our agent
// on the host, or 0 when none is set or the host is not cached.
func (c *RobotsChecker) CrawlDelay(host string) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.cache[strings.ToLower(host)]
	if !ok || entry.allowAll || entry.data == nil {
		return 0
	}

	group := entry.data.FindGroup(c.userAgent)
	if group == nil {
		return 0
	}

	return group.CrawlDelay
}

// cached returns the host's entry when present and fresh.
func (c *RobotsChecker) cached(host string) *robotsEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.cache[host]
	if !ok || time.Since(entry.fetchedAt) > c.ttl {
		return nil
	}
	return entry
}

// fetchAndCache retrieves and parses robots.txt for the host. Any fetch
// or parse failure caches an allow-all entry.
func (c *RobotsChecker) fetchAndCache(ctx context.Context, host, scheme string) *robotsEntry {
	if scheme == "" {
		scheme = "https"
	}

	entry := &robotsEntry{fetchedAt: time.Now(), allowAll: true}

	body, statusCode, err := c.fetchRobots(ctx, scheme+"://"+host+"/robots.txt")
	if err == nil && statusCode >= 200 && statusCode < 300 {
		if data, parseErr := robotstxt.FromBytes(body); parseErr == nil {
			entry.data = data
			entry.allowAll = false
		}
	}

	c.mu.Lock()
	c.cache[host] = entry
	c.mu.Unlock()

	return entry
}

// fetchRobots performs the HTTP GET for a robots.txt URL.
func (c *RobotsChecker) fetchRobots(ctx context.Context, robotsURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("robots: create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("robots: fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("robots: read body: %w", err)
	}

	return body, resp.StatusCode, nil
}
