package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchSuccess(t *testing.T) {
	const page = `<html><head>
		<title>Family Law | Example Firm</title>
		<link rel="canonical" href="/family-law">
		<meta name="robots" content="noindex, nofollow">
	</head><body>ok</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "test-agent" {
			t.Errorf("User-Agent = %q, want test-agent", got)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Robots-Tag", "noarchive")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(page))
	}))
	defer server.Close()

	fetcher := NewFetcher(FetcherConfig{UserAgent: "test-agent"})
	resource := fetcher.Fetch(context.Background(), server.URL+"/practice/family-law")

	if resource.Error != "" {
		t.Fatalf("unexpected fetch error: %s", resource.Error)
	}
	if resource.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resource.StatusCode)
	}
	if !resource.IsHTML() {
		t.Errorf("IsHTML() = false for content type %q", resource.ContentType)
	}
	if !resource.IsSuccessful() {
		t.Error("IsSuccessful() = false for 200 response")
	}
	if resource.ContentLength != len(page) {
		t.Errorf("ContentLength = %d, want %d", resource.ContentLength, len(page))
	}
	if resource.ResponseTime <= 0 {
		t.Error("ResponseTime should be positive")
	}

	wantCanonical := server.URL + "/family-law"
	if resource.CanonicalURL != wantCanonical {
		t.Errorf("CanonicalURL = %q, want %q", resource.CanonicalURL, wantCanonical)
	}

	for _, directive := range []string{"noarchive", "noindex", "nofollow"} {
		if !resource.HasRobotsDirective(directive) {
			t.Errorf("missing robots directive %q, got %v", directive, resource.RobotsDirectives)
		}
	}
	if resource.IsIndexable() {
		t.Error("IsIndexable() = true for a noindex page")
	}
}

func TestFetchNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	fetcher := NewFetcher(FetcherConfig{})
	resource := fetcher.Fetch(context.Background(), server.URL+"/missing")

	if resource.Error != "" {
		t.Fatalf("HTTP error statuses are not fetch errors, got %s", resource.Error)
	}
	if !resource.IsClientError() {
		t.Errorf("IsClientError() = false for status %d", resource.StatusCode)
	}
	if resource.IsIndexable() {
		t.Error("IsIndexable() = true for a 404")
	}
}

func TestFetchUnreachableHost(t *testing.T) {
	fetcher := NewFetcher(FetcherConfig{Timeout: 2 * time.Second})
	resource := fetcher.Fetch(context.Background(), "http://127.0.0.1:1/unreachable")

	if resource.Error == "" {
		t.Fatal("expected a transport error for an unreachable host")
	}
	if resource.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for transport failure", resource.StatusCode)
	}
	if resource.URL != "http://127.0.0.1:1/unreachable" {
		t.Errorf("URL = %q, want the requested URL preserved", resource.URL)
	}
}

func TestFetchBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer server.Close()

	fetcher := NewFetcher(FetcherConfig{MaxBodySize: 1024})
	resource := fetcher.Fetch(context.Background(), server.URL)

	if resource.Error != "" {
		t.Fatalf("unexpected fetch error: %s", resource.Error)
	}
	if len(resource.Body) != 1024 {
		t.Errorf("body length = %d, want truncated to 1024", len(resource.Body))
	}
}

func TestFetchDefaultContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.Write([]byte{0x1f, 0x8b})
	}))
	defer server.Close()

	fetcher := NewFetcher(FetcherConfig{})
	resource := fetcher.Fetch(context.Background(), server.URL)

	if resource.ContentType != "application/octet-stream" {
		t.Errorf("ContentType = %q, want application/octet-stream fallback", resource.ContentType)
	}
}
