package crawler

import (
	"reflect"
	"testing"
)

func htmlResource(url, body string) *FetchedResource {
	return &FetchedResource{
		URL:         url,
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(body),
	}
}

func TestDiscoverURLs(t *testing.T) {
	resource := htmlResource("https://example.com/", `<html><body>
		<a href="/page1">Page 1</a>
		<a href="https://example.com/page2">Page 2</a>
		<a href="/page1">Duplicate</a>
		<a href="/page1#section">Fragment duplicate</a>
		<a href="mailto:info@example.com">Mail</a>
		<a href="javascript:void(0)">JS</a>
		<a href="https://other.com/external">External</a>
	</body></html>`)

	got := DiscoverURLs(resource)
	want := []string{
		"https://example.com/page1",
		"https://example.com/page2",
		"https://other.com/external",
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("DiscoverURLs() = %v, want %v", got, want)
	}
}

func TestDiscoverURLsResolvesRelativeAgainstPage(t *testing.T) {
	resource := htmlResource("https://example.com/blog/post-1", `<a href="post-2">Next</a>`)

	got := DiscoverURLs(resource)
	want := []string{"https://example.com/blog/post-2"}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("DiscoverURLs() = %v, want %v", got, want)
	}
}

func TestDiscoverURLsNonHTML(t *testing.T) {
	resource := &FetchedResource{
		URL:         "https://example.com/report.pdf",
		StatusCode:  200,
		ContentType: "application/pdf",
		Body:        []byte("%PDF-1.4"),
	}

	if got := DiscoverURLs(resource); got != nil {
		t.Errorf("DiscoverURLs on PDF = %v, want nil", got)
	}
}

func TestDiscoverURLsEmptyBody(t *testing.T) {
	resource := htmlResource("https://example.com/", "")
	if got := DiscoverURLs(resource); got != nil {
		t.Errorf("DiscoverURLs on empty body = %v, want nil", got)
	}
}
