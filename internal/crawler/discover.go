package crawler

import (
	"bytes"
	"sort"

	"github.com/PuerkitoBio/goquery"
)

// DiscoverURLs parses anchor hrefs out of an HTML resource, resolves
// them against the resource URL, and returns the deduplicated set of
// well-formed absolute http(s) URLs in sorted order. Non-HTML resources
// yield nothing.
func DiscoverURLs(resource *FetchedResource) []string {
	if !resource.IsHTML() || len(resource.Body) == 0 {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resource.Body))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, exists := sel.Attr("href")
		if !exists {
			return
		}

		resolved := ResolveURL(href, resource.URL)
		if resolved == "" {
			return
		}

		seen[resolved] = struct{}{}
	})

	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	return urls
}
