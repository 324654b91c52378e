package checks

import (
	"net/url"
	"strings"

	"github.com/counselrank/audit-service/internal/domain"
)

// httpStatusCodeCheck fails any page that did not return a 2xx status.
type httpStatusCodeCheck struct{}

func (httpStatusCodeCheck) Meta() Metadata {
	return Metadata{
		Code:           "technical.http_status_code",
		Category:       domain.CategoryTechnical,
		Severity:       domain.SeverityCritical,
		Title:          "HTTP Status Code Issue",
		Description:    "Page returns a non-200 HTTP status code that may impact SEO",
		Recommendation: "Ensure all important pages return a 200 OK status code. Fix redirects, server errors, or client errors as appropriate.",
		Effort:         domain.EffortMedium,
		ImpactScore:    10.0,
	}
}

// Applicable always: status applies to every content type.
func (httpStatusCodeCheck) Applicable(_ *Subject) bool { return true }

func (c httpStatusCodeCheck) Run(subject *Subject) *Result {
	page := subject.Page
	if page.IsSuccessful() {
		return nil
	}

	return fail(c.Meta(), map[string]any{
		"status_code": page.StatusCode,
		"url":         page.URL,
	})
}

// httpsCheck fails pages served over a non-https scheme.
type httpsCheck struct{}

func (httpsCheck) Meta() Metadata {
	return Metadata{
		Code:           "technical.https",
		Category:       domain.CategoryTechnical,
		Severity:       domain.SeverityCritical,
		Title:          "Page Not Served Over HTTPS",
		Description:    "Page is served over an insecure connection, which hurts rankings and user trust",
		Recommendation: "Serve all pages over HTTPS with a valid certificate and redirect HTTP traffic permanently.",
		Effort:         domain.EffortLarge,
		ImpactScore:    9.0,
	}
}

func (httpsCheck) Applicable(_ *Subject) bool { return true }

func (c httpsCheck) Run(subject *Subject) *Result {
	parsed, err := url.Parse(subject.Page.URL)
	if err != nil || parsed.Scheme == "https" {
		return nil
	}

	return fail(c.Meta(), map[string]any{
		"url":    subject.Page.URL,
		"scheme": parsed.Scheme,
	})
}

// mobileFriendlyCheck fails HTML pages missing a responsive viewport
// meta tag.
type mobileFriendlyCheck struct{}

func (mobileFriendlyCheck) Meta() Metadata {
	return Metadata{
		Code:           "technical.mobile_friendly",
		Category:       domain.CategoryTechnical,
		Severity:       domain.SeverityHigh,
		Title:          "Mobile-Friendly Issues",
		Description:    "Page may not be mobile-friendly, which impacts mobile search rankings",
		Recommendation: "Add responsive viewport meta tag and ensure the page layout adapts to mobile screens.",
		Effort:         domain.EffortMedium,
		ImpactScore:    6.0,
	}
}

func (mobileFriendlyCheck) Applicable(subject *Subject) bool { return htmlWithDoc(subject) }

func (c mobileFriendlyCheck) Run(subject *Subject) *Result {
	viewport, exists := subject.Doc.Find("meta[name='viewport']").Attr("content")
	if !exists {
		return fail(c.Meta(), map[string]any{
			"url":              subject.Page.URL,
			"missing_viewport": true,
		})
	}

	if !strings.Contains(strings.ToLower(viewport), "width=device-width") {
		return fail(c.Meta(), map[string]any{
			"url":                     subject.Page.URL,
			"non_responsive_viewport": viewport,
		})
	}

	return nil
}

// robotsDirectivesCheck fails pages whose robots directives prevent
// indexing or link following.
type robotsDirectivesCheck struct{}

func (robotsDirectivesCheck) Meta() Metadata {
	return Metadata{
		Code:           "technical.robots_directives",
		Category:       domain.CategoryTechnical,
		Severity:       domain.SeverityHigh,
		Title:          "Robots Directives Blocking Indexing",
		Description:    "Page has robots directives that prevent search engine indexing",
		Recommendation: "Remove or modify robots directives (noindex, nofollow) to allow search engines to index and follow links on this page.",
		Effort:         domain.EffortSmall,
		ImpactScore:    8.0,
	}
}

func (robotsDirectivesCheck) Applicable(subject *Subject) bool { return htmlOnly(subject) }

func (c robotsDirectivesCheck) Run(subject *Subject) *Result {
	page := subject.Page
	if len(page.RobotsDirectives) == 0 {
		return nil
	}

	var blocking []string
	for _, directive := range []string{"noindex", "nofollow"} {
		if page.HasRobotsDirective(directive) {
			blocking = append(blocking, directive)
		}
	}

	if len(blocking) == 0 {
		return nil
	}

	return fail(c.Meta(), map[string]any{
		"url":                 page.URL,
		"robots_directives":   []string(page.RobotsDirectives),
		"blocking_directives": blocking,
	})
}
