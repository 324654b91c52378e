// Package crawler implements the website audit crawler: fetching pages
// under politeness constraints, discovering same-scope URLs, and driving
// the breadth-first traversal for an audit run.
package crawler

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

// FetchedResource is the immutable outcome of one fetch attempt.
// Transport failures are captured in Error with StatusCode 0; a
// FetchedResource is produced for every attempt, never an error return.
type FetchedResource struct {
	URL              string
	StatusCode       int
	ContentType      string
	Body             []byte
	Headers          http.Header
	ResponseTime     time.Duration
	ContentLength    int
	CanonicalURL     string
	RobotsDirectives []string
	ScreenshotPath   string
	HTMLPath         string
	Error            string
}

// IsSuccessful reports whether the fetch returned a 2xx status.
func (r *FetchedResource) IsSuccessful() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsRedirect reports whether the fetch returned a 3xx status.
func (r *FetchedResource) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

// IsClientError reports whether the fetch returned a 4xx status.
func (r *FetchedResource) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

// IsServerError reports whether the fetch returned a 5xx status.
func (r *FetchedResource) IsServerError() bool {
	return r.StatusCode >= 500 && r.StatusCode < 600
}

// IsHTML reports whether the response content type is HTML.
func (r *FetchedResource) IsHTML() bool {
	return strings.Contains(r.ContentType, "text/html")
}

// IsXML reports whether the response content type is XML.
func (r *FetchedResource) IsXML() bool {
	return strings.Contains(r.ContentType, "xml")
}

// Header returns a response header value with case-insensitive lookup.
func (r *FetchedResource) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}

// HasRobotsDirective reports whether the resource carries the given
// robots directive (from meta robots or X-Robots-Tag).
func (r *FetchedResource) HasRobotsDirective(directive string) bool {
	for _, d := range r.RobotsDirectives {
		if strings.EqualFold(d, directive) {
			return true
		}
	}
	return false
}

// BodyHash returns the hex-encoded SHA-256 digest of the response body,
// used for change detection across runs.
func (r *FetchedResource) BodyHash() string {
	h := sha256.Sum256(r.Body)
	return hex.EncodeToString(h[:])
}

// IsIndexable reports whether the fetched page is indexable by search
// engines: a successful HTML response without a noindex directive.
func (r *FetchedResource) IsIndexable() bool {
	return r.IsSuccessful() && r.IsHTML() && !r.HasRobotsDirective("noindex")
}
