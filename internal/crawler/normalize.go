package crawler

import (
	"net/url"
	"strings"
)

// The crawler uses two distinct URL rules:
//
//   - the stored URL (recorded on FetchedResource and Page rows) is the
//     URL exactly as fetched: trailing slash, query, and fragment are
//     preserved untouched;
//   - the visited-set dedupe key lowercases scheme and host, drops the
//     fragment, and right-trims the path's trailing slash, so that
//     https://Example.com/about/ and https://example.com/about#team
//     count as one visit.

// DedupeKey returns the canonical visited-set key for a URL. Invalid
// URLs map to themselves so they still dedupe exactly.
func DedupeKey(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	parsed.Fragment = ""
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)

	path := strings.TrimRight(parsed.Path, "/")
	if path == "" {
		path = "/"
	}
	parsed.Path = path

	return parsed.String()
}

// ResolveURL resolves href against base, returning an absolute http(s)
// URL with the fragment dropped, or "" when the link is unusable
// (empty, malformed, or a non-web scheme such as mailto or javascript).
func ResolveURL(href, base string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := baseURL.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	if resolved.Host == "" {
		return ""
	}

	resolved.Fragment = ""
	return resolved.String()
}

// SameHost reports whether two URLs share a host, ignoring case.
func SameHost(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	return strings.EqualFold(ua.Host, ub.Host)
}
