package scorer

import (
	"fmt"
	"math"

	"github.com/counselrank/audit-service/internal/domain"
)

// Weights holds the scoring model: how much each category contributes
// to the overall score, and how heavily each severity deducts from a
// category.
type Weights struct {
	Categories map[string]float64 `mapstructure:"categories"`
	Severities map[string]float64 `mapstructure:"severities"`
}

// DefaultWeights returns the standard scoring model.
func DefaultWeights() Weights {
	return Weights{
		Categories: map[string]float64{
			domain.CategoryTechnical: 40,
			domain.CategoryOnPage:    35,
			domain.CategoryLocal:     25,
		},
		Severities: map[string]float64{
			domain.SeverityCritical: 10,
			domain.SeverityHigh:     7,
			domain.SeverityMedium:   4,
			domain.SeverityLow:      1,
		},
	}
}

// Validate checks that category weights sum to 100 and severity
// weights are positive and strictly decreasing from critical to low.
func (w Weights) Validate() error {
	sum := 0.0
	for category, weight := range w.Categories {
		if weight <= 0 {
			return fmt.Errorf("category weight for %q must be positive, got %v", category, weight)
		}
		sum += weight
	}
	if math.Abs(sum-100) > 1e-9 {
		return fmt.Errorf("category weights must sum to 100, got %v", sum)
	}

	order := []string{
		domain.SeverityCritical,
		domain.SeverityHigh,
		domain.SeverityMedium,
		domain.SeverityLow,
	}
	previous := math.Inf(1)
	for _, severity := range order {
		weight, ok := w.Severities[severity]
		if !ok {
			return fmt.Errorf("missing severity weight for %q", severity)
		}
		if weight <= 0 {
			return fmt.Errorf("severity weight for %q must be positive, got %v", severity, weight)
		}
		if weight >= previous {
			return fmt.Errorf("severity weights must strictly decrease from critical to low, %q is %v", severity, weight)
		}
		previous = weight
	}

	return nil
}

// severityWeight returns the deduction weight for a severity, treating
// unknown severities as the lightest.
func (w Weights) severityWeight(severity string) float64 {
	if weight, ok := w.Severities[severity]; ok {
		return weight
	}
	return w.Severities[domain.SeverityLow]
}
