package checks

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/counselrank/audit-service/internal/domain"
)

const (
	titleMinLength = 30
	titleMaxLength = 60

	metaDescriptionMinLength = 120
	metaDescriptionMaxLength = 160

	// missingAltThreshold is the fraction of images without alt text
	// above which the page fails.
	missingAltThreshold = 0.5
)

// titleTagCheck fails pages with a missing title or one outside the
// recommended length range.
type titleTagCheck struct{}

func (titleTagCheck) Meta() Metadata {
	return Metadata{
		Code:           "onpage.title_tag",
		Category:       domain.CategoryOnPage,
		Severity:       domain.SeverityHigh,
		Title:          "Title Tag Issues",
		Description:    "Page title tag is missing, too short, or too long",
		Recommendation: "Write a unique, descriptive title between 30 and 60 characters that includes the page's primary keyword.",
		Effort:         domain.EffortSmall,
		ImpactScore:    10.0,
	}
}

func (titleTagCheck) Applicable(subject *Subject) bool { return htmlOnly(subject) }

func (c titleTagCheck) Run(subject *Subject) *Result {
	title := strings.TrimSpace(subject.Page.Title)
	if title == "" {
		return fail(c.Meta(), map[string]any{
			"url":   subject.Page.URL,
			"issue": "missing_title",
		})
	}

	length := utf8.RuneCountInString(title)

	var issues []string
	if length < titleMinLength {
		issues = append(issues, "too_short")
	}
	if length > titleMaxLength {
		issues = append(issues, "too_long")
	}

	if len(issues) == 0 {
		return nil
	}

	return fail(c.Meta(), map[string]any{
		"url":          subject.Page.URL,
		"title":        title,
		"title_length": length,
		"issues":       issues,
	})
}

// metaDescriptionCheck fails pages with a missing meta description or
// one outside the recommended length range.
type metaDescriptionCheck struct{}

func (metaDescriptionCheck) Meta() Metadata {
	return Metadata{
		Code:           "onpage.meta_description",
		Category:       domain.CategoryOnPage,
		Severity:       domain.SeverityMedium,
		Title:          "Meta Description Issues",
		Description:    "Page meta description is missing, too short, or too long",
		Recommendation: "Write a compelling meta description between 120 and 160 characters that summarizes the page and encourages clicks.",
		Effort:         domain.EffortSmall,
		ImpactScore:    6.0,
	}
}

func (metaDescriptionCheck) Applicable(subject *Subject) bool { return htmlOnly(subject) }

func (c metaDescriptionCheck) Run(subject *Subject) *Result {
	description := strings.TrimSpace(subject.Page.MetaDescription)
	if description == "" {
		return fail(c.Meta(), map[string]any{
			"url":   subject.Page.URL,
			"issue": "missing_meta_description",
		})
	}

	length := utf8.RuneCountInString(description)

	var issues []string
	if length < metaDescriptionMinLength {
		issues = append(issues, "too_short")
	}
	if length > metaDescriptionMaxLength {
		issues = append(issues, "too_long")
	}

	if len(issues) == 0 {
		return nil
	}

	return fail(c.Meta(), map[string]any{
		"url":                subject.Page.URL,
		"description_length": length,
		"issues":             issues,
	})
}

// h1TagCheck fails pages without exactly one h1 heading.
type h1TagCheck struct{}

func (h1TagCheck) Meta() Metadata {
	return Metadata{
		Code:           "onpage.h1_tag",
		Category:       domain.CategoryOnPage,
		Severity:       domain.SeverityHigh,
		Title:          "H1 Tag Issues",
		Description:    "Page is missing an H1 tag or has multiple H1 tags",
		Recommendation: "Use exactly one H1 tag per page that clearly describes the page's main topic.",
		Effort:         domain.EffortSmall,
		ImpactScore:    6.0,
	}
}

func (h1TagCheck) Applicable(subject *Subject) bool { return htmlWithDoc(subject) }

func (c h1TagCheck) Run(subject *Subject) *Result {
	headings := subject.Doc.Find("h1")
	count := headings.Length()

	if count == 1 {
		return nil
	}

	if count == 0 {
		return fail(c.Meta(), map[string]any{
			"url":   subject.Page.URL,
			"issue": "missing_h1",
		})
	}

	var texts []string
	headings.Each(func(_ int, sel *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(sel.Text()))
	})

	return fail(c.Meta(), map[string]any{
		"url":      subject.Page.URL,
		"issue":    "multiple_h1",
		"h1_count": count,
		"h1_tags":  texts,
	})
}

// imageAltTextCheck fails pages where the majority of images lack alt
// text.
type imageAltTextCheck struct{}

func (imageAltTextCheck) Meta() Metadata {
	return Metadata{
		Code:           "onpage.image_alt_text",
		Category:       domain.CategoryOnPage,
		Severity:       domain.SeverityMedium,
		Title:          "Images Missing Alt Text",
		Description:    "A significant portion of images on the page lack alt text",
		Recommendation: "Add descriptive alt text to all meaningful images to improve accessibility and image search visibility.",
		Effort:         domain.EffortMedium,
		ImpactScore:    5.0,
	}
}

func (imageAltTextCheck) Applicable(subject *Subject) bool { return htmlWithDoc(subject) }

func (c imageAltTextCheck) Run(subject *Subject) *Result {
	images := subject.Doc.Find("img")
	total := images.Length()
	if total == 0 {
		return nil
	}

	missing := 0
	images.Each(func(_ int, sel *goquery.Selection) {
		alt, exists := sel.Attr("alt")
		if !exists || strings.TrimSpace(alt) == "" {
			missing++
		}
	})

	ratio := float64(missing) / float64(total)
	if ratio <= missingAltThreshold {
		return nil
	}

	return fail(c.Meta(), map[string]any{
		"url":                    subject.Page.URL,
		"total_images":           total,
		"missing_alt_count":      missing,
		"missing_alt_percentage": ratio * 100,
	})
}
