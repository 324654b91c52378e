// Package score implements the score command, which computes an audit
// run's scorecard from its persisted findings and completes the run.
package score

import (
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	cmdcommon "github.com/counselrank/audit-service/cmd/common"
	"github.com/counselrank/audit-service/internal/scorer"
)

// Command returns the score command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "score <run-id>",
		Short: "Score an audit run and mark it completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := args[0]

			deps, err := cmdcommon.NewCommandDeps()
			if err != nil {
				return err
			}

			pipeline, err := cmdcommon.NewPipeline(deps)
			if err != nil {
				return err
			}
			defer pipeline.Close()

			card, err := cmdcommon.RunScoreStage(cmd.Context(), deps, pipeline, runID)
			if err != nil {
				return err
			}

			renderScorecard(card)
			return nil
		},
	}
}

// renderScorecard prints the scorecard as tables on stdout.
func renderScorecard(card *scorer.Scorecard) {
	fmt.Printf("Run %s scored %.1f (%d findings: %d critical, %d high, %d medium, %d low)\n\n",
		card.RunID, card.OverallScore, card.TotalFindings,
		card.CriticalFindings, card.HighFindings, card.MediumFindings, card.LowFindings)

	categories := make([]string, 0, len(card.CategoryScores))
	for category := range card.CategoryScores {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Category", "Score"})
	for _, category := range categories {
		t.AppendRow(table.Row{category, fmt.Sprintf("%.1f", card.CategoryScores[category])})
	}
	t.Render()

	if len(card.TopIssues) > 0 {
		fmt.Println("\nTop issues:")
		issues := table.NewWriter()
		issues.SetOutputMirror(os.Stdout)
		issues.AppendHeader(table.Row{"Check", "Severity", "Impact", "Effort", "Page"})
		for _, issue := range card.TopIssues {
			issues.AppendRow(table.Row{
				issue.CheckCode, issue.Severity,
				fmt.Sprintf("%.1f", issue.ImpactScore), issue.Effort, issue.PageID,
			})
		}
		issues.Render()
	}

	if len(card.QuickWins) > 0 {
		fmt.Println("\nQuick wins:")
		wins := table.NewWriter()
		wins.SetOutputMirror(os.Stdout)
		wins.AppendHeader(table.Row{"Check", "Impact", "Effort", "Recommendation"})
		for _, win := range card.QuickWins {
			wins.AppendRow(table.Row{
				win.CheckCode, fmt.Sprintf("%.1f", win.ImpactScore), win.Effort, win.Recommendation,
			})
		}
		wins.Render()
	}
}
