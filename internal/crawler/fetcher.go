package crawler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Fetcher defaults.
const (
	DefaultUserAgent   = "CounselRank-SEO-Audit/1.0 (+https://counselrank.legal/audit-service)"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10 MB
)

// Fetcher issues single-page HTTP GETs and wraps the outcome in a
// FetchedResource. It never returns an error: transport failures are
// captured on the resource itself.
type Fetcher struct {
	httpClient  *http.Client
	userAgent   string
	maxBodySize int64
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	UserAgent   string
	Timeout     time.Duration
	MaxBodySize int64
}

// NewFetcher creates a Fetcher with the given configuration.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}

	return &Fetcher{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		userAgent:   cfg.UserAgent,
		maxBodySize: cfg.MaxBodySize,
	}
}

// Client exposes the fetcher's HTTP client so collaborators (the robots
// checker) can share its transport and timeout.
func (f *Fetcher) Client() *http.Client {
	return f.httpClient
}

// Fetch performs one GET against the URL and always returns a resource.
// DNS, timeout, and TLS failures produce a resource with StatusCode 0
// and a non-empty Error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) FetchedResource {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return failedResource(rawURL, err, time.Since(start))
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return failedResource(rawURL, err, time.Since(start))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return failedResource(rawURL, err, time.Since(start))
	}

	resource := FetchedResource{
		URL:           rawURL,
		StatusCode:    resp.StatusCode,
		ContentType:   contentType(resp.Header),
		Body:          body,
		Headers:       resp.Header,
		ResponseTime:  time.Since(start),
		ContentLength: len(body),
	}

	resource.RobotsDirectives = robotsDirectives(resp.Header, body, resource.IsHTML())
	if resource.IsHTML() {
		resource.CanonicalURL = canonicalURL(body, rawURL)
	}

	return resource
}

// failedResource wraps a transport error into a resource value.
func failedResource(rawURL string, err error, elapsed time.Duration) FetchedResource {
	return FetchedResource{
		URL:          rawURL,
		StatusCode:   0,
		ContentType:  "text/plain",
		Headers:      http.Header{},
		ResponseTime: elapsed,
		Error:        err.Error(),
	}
}

// contentType returns the response content type, defaulting to a binary
// type when the server sent none.
func contentType(headers http.Header) string {
	ct := headers.Get("Content-Type")
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}

// robotsDirectives merges directives from the X-Robots-Tag header and,
// for HTML responses, the meta robots tag.
func robotsDirectives(headers http.Header, body []byte, isHTML bool) []string {
	var raw []string

	for _, value := range headers.Values("X-Robots-Tag") {
		raw = append(raw, strings.Split(value, ",")...)
	}

	if isHTML {
		if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
			if content, exists := doc.Find("meta[name='robots']").Attr("content"); exists {
				raw = append(raw, strings.Split(content, ",")...)
			}
		}
	}

	seen := make(map[string]struct{}, len(raw))
	directives := make([]string, 0, len(raw))
	for _, d := range raw {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		directives = append(directives, d)
	}

	return directives
}

// canonicalURL extracts the rel=canonical link from an HTML body,
// resolved against the page URL. Returns "" when absent.
func canonicalURL(body []byte, baseURL string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	href, exists := doc.Find("link[rel='canonical']").Attr("href")
	if !exists {
		return ""
	}

	return ResolveURL(href, baseURL)
}
