package domain

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// HTTP status class bounds used by the Page predicates.
const (
	statusSuccessLow  = 200
	statusRedirectLow = 300
	statusClientLow   = 400
	statusServerLow   = 500
	statusServerHigh  = 600
)

// Page is the persisted projection of the latest fetch of one URL within
// one audit run. Created during crawl, read-only during analysis.
type Page struct {
	ID    string `db:"id"     json:"id"`
	RunID string `db:"run_id" json:"run_id"`
	URL   string `db:"url"    json:"url"`

	StatusCode    int     `db:"status_code"    json:"status_code"`
	ContentType   string  `db:"content_type"   json:"content_type"`
	ContentLength int     `db:"content_length" json:"content_length"`
	ResponseTime  float64 `db:"response_time"  json:"response_time"`

	Title            string         `db:"title"             json:"title"`
	MetaDescription  string         `db:"meta_description"  json:"meta_description"`
	WordCount        int            `db:"word_count"        json:"word_count"`
	CanonicalURL     *string        `db:"canonical_url"     json:"canonical_url,omitempty"`
	RobotsDirectives pq.StringArray `db:"robots_directives" json:"robots_directives"`
	BodyHash         string         `db:"body_hash"         json:"body_hash"`

	HTMLPath       *string `db:"html_path"       json:"html_path,omitempty"`
	ScreenshotPath *string `db:"screenshot_path" json:"screenshot_path,omitempty"`

	Indexable bool    `db:"indexable" json:"indexable"`
	Error     *string `db:"error"     json:"error,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IsSuccessful reports whether the page returned a 2xx status.
func (p *Page) IsSuccessful() bool {
	return p.StatusCode >= statusSuccessLow && p.StatusCode < statusRedirectLow
}

// IsRedirect reports whether the page returned a 3xx status.
func (p *Page) IsRedirect() bool {
	return p.StatusCode >= statusRedirectLow && p.StatusCode < statusClientLow
}

// IsClientError reports whether the page returned a 4xx status.
func (p *Page) IsClientError() bool {
	return p.StatusCode >= statusClientLow && p.StatusCode < statusServerLow
}

// IsServerError reports whether the page returned a 5xx status.
func (p *Page) IsServerError() bool {
	return p.StatusCode >= statusServerLow && p.StatusCode < statusServerHigh
}

// IsHTML reports whether the page's content type is HTML.
func (p *Page) IsHTML() bool {
	return strings.Contains(p.ContentType, "text/html")
}

// HasRobotsDirective reports whether the page carries the given directive.
func (p *Page) HasRobotsDirective(directive string) bool {
	for _, d := range p.RobotsDirectives {
		if strings.EqualFold(strings.TrimSpace(d), directive) {
			return true
		}
	}
	return false
}
