package checks

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/counselrank/audit-service/internal/domain"
)

// localBusinessSchemaCheck fails pages without LocalBusiness
// structured data in JSON-LD.
type localBusinessSchemaCheck struct{}

func (localBusinessSchemaCheck) Meta() Metadata {
	return Metadata{
		Code:           "local.business_schema",
		Category:       domain.CategoryLocal,
		Severity:       domain.SeverityHigh,
		Title:          "Missing LocalBusiness Schema",
		Description:    "Page lacks LocalBusiness structured data markup for local search visibility",
		Recommendation: "Add LocalBusiness schema markup (JSON-LD) with business name, address, phone number, and hours to improve local search presence.",
		Effort:         domain.EffortMedium,
		ImpactScore:    8.0,
	}
}

func (localBusinessSchemaCheck) Applicable(subject *Subject) bool { return htmlWithDoc(subject) }

func (c localBusinessSchemaCheck) Run(subject *Subject) *Result {
	var typesFound []string
	found := false

	subject.Doc.Find("script[type='application/ld+json']").Each(func(_ int, sel *goquery.Selection) {
		var payload map[string]any
		if err := json.Unmarshal([]byte(sel.Text()), &payload); err != nil {
			return
		}

		for _, schemaType := range schemaTypes(payload["@type"]) {
			typesFound = append(typesFound, schemaType)
			if strings.EqualFold(schemaType, "LocalBusiness") {
				found = true
			}
		}
	})

	if found {
		return nil
	}

	return fail(c.Meta(), map[string]any{
		"url":                subject.Page.URL,
		"schema_types_found": typesFound,
	})
}

// schemaTypes normalizes a JSON-LD @type value, which may be a single
// string or an array of strings.
func schemaTypes(value any) []string {
	switch typed := value.(type) {
	case string:
		return []string{typed}
	case []any:
		var types []string
		for _, entry := range typed {
			if name, ok := entry.(string); ok {
				types = append(types, name)
			}
		}
		return types
	default:
		return nil
	}
}
