package checks

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/counselrank/audit-service/internal/domain"
)

func htmlPage(url string) *domain.Page {
	return &domain.Page{
		URL:         url,
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
	}
}

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}

	return doc
}

func TestRegistryCodesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, check := range Registry() {
		code := check.Meta().Code
		if seen[code] {
			t.Errorf("duplicate check code %q", code)
		}
		seen[code] = true
	}

	if len(seen) != 9 {
		t.Errorf("expected 9 registered checks, got %d", len(seen))
	}
}

func TestHTTPStatusCodeCheck(t *testing.T) {
	check := httpStatusCodeCheck{}

	tests := []struct {
		name       string
		statusCode int
		wantFail   bool
	}{
		{name: "ok", statusCode: 200, wantFail: false},
		{name: "created", statusCode: 201, wantFail: false},
		{name: "redirect", statusCode: 301, wantFail: true},
		{name: "not found", statusCode: 404, wantFail: true},
		{name: "server error", statusCode: 500, wantFail: true},
		{name: "fetch failure", statusCode: 0, wantFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := htmlPage("https://example.com/page")
			page.StatusCode = tt.statusCode

			result := check.Run(&Subject{Page: page})
			if (result != nil) != tt.wantFail {
				t.Errorf("status %d: got result %v, want fail %v", tt.statusCode, result, tt.wantFail)
			}

			if result != nil {
				if result.Evidence["status_code"] != tt.statusCode {
					t.Errorf("evidence status_code = %v, want %d", result.Evidence["status_code"], tt.statusCode)
				}
			}
		})
	}
}

func TestHTTPStatusCodeCheckApplicableToNonHTML(t *testing.T) {
	page := htmlPage("https://example.com/report.pdf")
	page.ContentType = "application/pdf"

	if !(httpStatusCodeCheck{}).Applicable(&Subject{Page: page}) {
		t.Error("status check should apply to every content type")
	}
}

func TestHTTPSCheck(t *testing.T) {
	check := httpsCheck{}

	secure := check.Run(&Subject{Page: htmlPage("https://example.com/")})
	if secure != nil {
		t.Errorf("https page should pass, got %v", secure)
	}

	insecure := check.Run(&Subject{Page: htmlPage("http://example.com/")})
	if insecure == nil {
		t.Fatal("http page should fail")
	}
	if insecure.Evidence["scheme"] != "http" {
		t.Errorf("evidence scheme = %v, want http", insecure.Evidence["scheme"])
	}
}

func TestMobileFriendlyCheck(t *testing.T) {
	check := mobileFriendlyCheck{}

	tests := []struct {
		name     string
		html     string
		wantFail bool
		wantKey  string
	}{
		{
			name:     "responsive viewport",
			html:     `<html><head><meta name="viewport" content="width=device-width, initial-scale=1"></head></html>`,
			wantFail: false,
		},
		{
			name:     "missing viewport",
			html:     `<html><head><title>t</title></head></html>`,
			wantFail: true,
			wantKey:  "missing_viewport",
		},
		{
			name:     "fixed width viewport",
			html:     `<html><head><meta name="viewport" content="width=1024"></head></html>`,
			wantFail: true,
			wantKey:  "non_responsive_viewport",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject := &Subject{Page: htmlPage("https://example.com/"), Doc: docFrom(t, tt.html)}

			result := check.Run(subject)
			if (result != nil) != tt.wantFail {
				t.Fatalf("got result %v, want fail %v", result, tt.wantFail)
			}

			if result != nil {
				if _, ok := result.Evidence[tt.wantKey]; !ok {
					t.Errorf("evidence missing key %q: %v", tt.wantKey, result.Evidence)
				}
			}
		})
	}
}

func TestRobotsDirectivesCheck(t *testing.T) {
	check := robotsDirectivesCheck{}

	tests := []struct {
		name       string
		directives []string
		wantFail   bool
	}{
		{name: "no directives", directives: nil, wantFail: false},
		{name: "benign directives", directives: []string{"index", "follow"}, wantFail: false},
		{name: "noindex", directives: []string{"noindex"}, wantFail: true},
		{name: "nofollow", directives: []string{"nofollow"}, wantFail: true},
		{name: "both", directives: []string{"noindex", "nofollow"}, wantFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := htmlPage("https://example.com/")
			page.RobotsDirectives = tt.directives

			result := check.Run(&Subject{Page: page})
			if (result != nil) != tt.wantFail {
				t.Errorf("directives %v: got result %v, want fail %v", tt.directives, result, tt.wantFail)
			}
		})
	}
}

func TestTitleTagCheck(t *testing.T) {
	check := titleTagCheck{}

	t.Run("missing title", func(t *testing.T) {
		page := htmlPage("https://example.com/")
		page.Title = "   "

		result := check.Run(&Subject{Page: page})
		if result == nil {
			t.Fatal("blank title should fail")
		}
		if result.Evidence["issue"] != "missing_title" {
			t.Errorf("evidence issue = %v, want missing_title", result.Evidence["issue"])
		}
	})

	t.Run("too short", func(t *testing.T) {
		page := htmlPage("https://example.com/")
		page.Title = "Short title"

		result := check.Run(&Subject{Page: page})
		if result == nil {
			t.Fatal("short title should fail")
		}
		issues, ok := result.Evidence["issues"].([]string)
		if !ok || len(issues) != 1 || issues[0] != "too_short" {
			t.Errorf("evidence issues = %v, want [too_short]", result.Evidence["issues"])
		}
	})

	t.Run("too long", func(t *testing.T) {
		page := htmlPage("https://example.com/")
		page.Title = strings.Repeat("a", 61)

		result := check.Run(&Subject{Page: page})
		if result == nil {
			t.Fatal("long title should fail")
		}
		issues, _ := result.Evidence["issues"].([]string)
		if len(issues) != 1 || issues[0] != "too_long" {
			t.Errorf("evidence issues = %v, want [too_long]", result.Evidence["issues"])
		}
	})

	t.Run("length counts runes not bytes", func(t *testing.T) {
		page := htmlPage("https://example.com/")
		page.Title = strings.Repeat("é", 45)

		if result := check.Run(&Subject{Page: page}); result != nil {
			t.Errorf("45-rune title should pass, got %v", result.Evidence)
		}
	})

	t.Run("in range", func(t *testing.T) {
		page := htmlPage("https://example.com/")
		page.Title = "A perfectly reasonable page title here"

		if result := check.Run(&Subject{Page: page}); result != nil {
			t.Errorf("in-range title should pass, got %v", result.Evidence)
		}
	})
}

func TestMetaDescriptionCheck(t *testing.T) {
	check := metaDescriptionCheck{}

	t.Run("missing", func(t *testing.T) {
		page := htmlPage("https://example.com/")

		result := check.Run(&Subject{Page: page})
		if result == nil {
			t.Fatal("missing description should fail")
		}
		if result.Evidence["issue"] != "missing_meta_description" {
			t.Errorf("evidence issue = %v", result.Evidence["issue"])
		}
	})

	t.Run("boundaries", func(t *testing.T) {
		tests := []struct {
			length   int
			wantFail bool
		}{
			{length: 119, wantFail: true},
			{length: 120, wantFail: false},
			{length: 160, wantFail: false},
			{length: 161, wantFail: true},
		}

		for _, tt := range tests {
			page := htmlPage("https://example.com/")
			page.MetaDescription = strings.Repeat("x", tt.length)

			result := check.Run(&Subject{Page: page})
			if (result != nil) != tt.wantFail {
				t.Errorf("length %d: got result %v, want fail %v", tt.length, result, tt.wantFail)
			}
		}
	})
}

func TestH1TagCheck(t *testing.T) {
	check := h1TagCheck{}

	t.Run("single h1 passes", func(t *testing.T) {
		subject := &Subject{
			Page: htmlPage("https://example.com/"),
			Doc:  docFrom(t, `<html><body><h1>Welcome</h1></body></html>`),
		}
		if result := check.Run(subject); result != nil {
			t.Errorf("single h1 should pass, got %v", result.Evidence)
		}
	})

	t.Run("missing h1", func(t *testing.T) {
		subject := &Subject{
			Page: htmlPage("https://example.com/"),
			Doc:  docFrom(t, `<html><body><h2>Only h2</h2></body></html>`),
		}
		result := check.Run(subject)
		if result == nil {
			t.Fatal("missing h1 should fail")
		}
		if result.Evidence["issue"] != "missing_h1" {
			t.Errorf("evidence issue = %v, want missing_h1", result.Evidence["issue"])
		}
	})

	t.Run("multiple h1", func(t *testing.T) {
		subject := &Subject{
			Page: htmlPage("https://example.com/"),
			Doc:  docFrom(t, `<html><body><h1>First</h1><h1>Second</h1></body></html>`),
		}
		result := check.Run(subject)
		if result == nil {
			t.Fatal("multiple h1 should fail")
		}
		if result.Evidence["issue"] != "multiple_h1" {
			t.Errorf("evidence issue = %v, want multiple_h1", result.Evidence["issue"])
		}
		if result.Evidence["h1_count"] != 2 {
			t.Errorf("evidence h1_count = %v, want 2", result.Evidence["h1_count"])
		}
	})
}

func TestImageAltTextCheck(t *testing.T) {
	check := imageAltTextCheck{}

	tests := []struct {
		name     string
		html     string
		wantFail bool
	}{
		{
			name:     "no images",
			html:     `<html><body><p>text only</p></body></html>`,
			wantFail: false,
		},
		{
			name:     "all images have alt",
			html:     `<html><body><img src="a.png" alt="A"><img src="b.png" alt="B"></body></html>`,
			wantFail: false,
		},
		{
			name:     "exactly half missing passes",
			html:     `<html><body><img src="a.png" alt="A"><img src="b.png"></body></html>`,
			wantFail: false,
		},
		{
			name:     "majority missing fails",
			html:     `<html><body><img src="a.png" alt="A"><img src="b.png"><img src="c.png" alt=" "></body></html>`,
			wantFail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject := &Subject{Page: htmlPage("https://example.com/"), Doc: docFrom(t, tt.html)}

			result := check.Run(subject)
			if (result != nil) != tt.wantFail {
				t.Errorf("got result %v, want fail %v", result, tt.wantFail)
			}
		})
	}
}

func TestLocalBusinessSchemaCheck(t *testing.T) {
	check := localBusinessSchemaCheck{}

	t.Run("localbusiness as string type", func(t *testing.T) {
		html := `<html><head><script type="application/ld+json">
			{"@context":"https://schema.org","@type":"LocalBusiness","name":"Acme Law"}
		</script></head></html>`
		subject := &Subject{Page: htmlPage("https://example.com/"), Doc: docFrom(t, html)}

		if result := check.Run(subject); result != nil {
			t.Errorf("LocalBusiness schema should pass, got %v", result.Evidence)
		}
	})

	t.Run("localbusiness in type array", func(t *testing.T) {
		html := `<html><head><script type="application/ld+json">
			{"@type":["Organization","LocalBusiness"]}
		</script></head></html>`
		subject := &Subject{Page: htmlPage("https://example.com/"), Doc: docFrom(t, html)}

		if result := check.Run(subject); result != nil {
			t.Errorf("array @type containing LocalBusiness should pass, got %v", result.Evidence)
		}
	})

	t.Run("other schema only fails with types in evidence", func(t *testing.T) {
		html := `<html><head><script type="application/ld+json">
			{"@type":"Organization"}
		</script></head></html>`
		subject := &Subject{Page: htmlPage("https://example.com/"), Doc: docFrom(t, html)}

		result := check.Run(subject)
		if result == nil {
			t.Fatal("page without LocalBusiness schema should fail")
		}
		types, _ := result.Evidence["schema_types_found"].([]string)
		if len(types) != 1 || types[0] != "Organization" {
			t.Errorf("schema_types_found = %v, want [Organization]", result.Evidence["schema_types_found"])
		}
	})

	t.Run("malformed json ignored", func(t *testing.T) {
		html := `<html><head><script type="application/ld+json">{not json</script></head></html>`
		subject := &Subject{Page: htmlPage("https://example.com/"), Doc: docFrom(t, html)}

		if result := check.Run(subject); result == nil {
			t.Fatal("page with only malformed schema should fail")
		}
	})

	t.Run("no schema at all fails", func(t *testing.T) {
		subject := &Subject{
			Page: htmlPage("https://example.com/"),
			Doc:  docFrom(t, `<html><body><p>no schema</p></body></html>`),
		}
		if result := check.Run(subject); result == nil {
			t.Fatal("page without schema should fail")
		}
	})
}

func TestApplicabilityGates(t *testing.T) {
	pdfPage := htmlPage("https://example.com/doc.pdf")
	pdfPage.ContentType = "application/pdf"

	htmlNoDoc := &Subject{Page: htmlPage("https://example.com/")}
	htmlWithDocSubject := &Subject{
		Page: htmlPage("https://example.com/"),
		Doc:  docFrom(t, `<html></html>`),
	}
	pdfSubject := &Subject{Page: pdfPage}

	for _, check := range Registry() {
		code := check.Meta().Code
		switch code {
		case "technical.http_status_code", "technical.https":
			if !check.Applicable(pdfSubject) {
				t.Errorf("%s should apply to non-HTML pages", code)
			}
		case "technical.mobile_friendly", "onpage.h1_tag", "onpage.image_alt_text", "local.business_schema":
			if check.Applicable(pdfSubject) {
				t.Errorf("%s should not apply to non-HTML pages", code)
			}
			if check.Applicable(htmlNoDoc) {
				t.Errorf("%s should not apply without a parsed document", code)
			}
			if !check.Applicable(htmlWithDocSubject) {
				t.Errorf("%s should apply to HTML pages with a document", code)
			}
		default:
			if check.Applicable(pdfSubject) {
				t.Errorf("%s should not apply to non-HTML pages", code)
			}
			if !check.Applicable(htmlNoDoc) {
				t.Errorf("%s should apply to HTML pages without a document", code)
			}
		}
	}
}
