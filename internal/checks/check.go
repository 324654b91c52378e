// Package checks implements the audit rule framework: an extensible set
// of independent, stateless checks that each inspect one crawled page
// and report a finding when the page fails the rule.
package checks

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/counselrank/audit-service/internal/domain"
)

// Metadata describes a check's static weight and identity. Severity,
// effort, and impact are per-check constants, not computed per page;
// the scorer consumes them later.
type Metadata struct {
	// Code is the stable identifier, format "<category>.<short_name>",
	// unique across all registered checks.
	Code           string  `json:"code"`
	Category       string  `json:"category"`
	Severity       string  `json:"severity"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Recommendation string  `json:"recommendation"`
	Effort         string  `json:"effort"`
	ImpactScore    float64 `json:"impact_score"`
}

// Subject is what a check inspects: the persisted page row plus the
// parsed document of its stored HTML body. Doc is nil when the body is
// unavailable (non-HTML pages, failed fetches, missing artifacts);
// checks that need the raw markup must gate on it in Applicable.
type Subject struct {
	Page *domain.Page
	Doc  *goquery.Document
}

// HasDoc reports whether the subject carries parsed HTML.
func (s *Subject) HasDoc() bool {
	return s.Doc != nil
}

// Result is a failed check: the check's metadata plus page-specific
// diagnostic evidence. A passing check produces no Result.
type Result struct {
	Metadata
	Evidence map[string]any
}

// Check is one stateless audit rule. Run must be pure given a Subject:
// no randomness, no network calls, no shared mutable state.
type Check interface {
	Meta() Metadata
	Applicable(subject *Subject) bool
	Run(subject *Subject) *Result
}

// Registry returns all registered checks in a fixed order. Registration
// is explicit and static; there is no runtime discovery.
func Registry() []Check {
	return []Check{
		// Technical
		httpStatusCodeCheck{},
		httpsCheck{},
		mobileFriendlyCheck{},
		robotsDirectivesCheck{},
		// On-page
		titleTagCheck{},
		metaDescriptionCheck{},
		h1TagCheck{},
		imageAltTextCheck{},
		// Local
		localBusinessSchemaCheck{},
	}
}

// fail builds a Result for a check with the given evidence.
func fail(meta Metadata, evidence map[string]any) *Result {
	return &Result{Metadata: meta, Evidence: evidence}
}

// htmlOnly is the applicability gate shared by on-page checks that read
// derived page fields but not the raw body.
func htmlOnly(subject *Subject) bool {
	return subject.Page.IsHTML()
}

// htmlWithDoc gates checks that need the raw HTML document.
func htmlWithDoc(subject *Subject) bool {
	return subject.Page.IsHTML() && subject.HasDoc()
}
