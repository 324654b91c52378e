// Package analyze implements the analyze command, which runs every
// applicable SEO check against an audit run's crawled pages.
package analyze

import (
	"fmt"

	"github.com/spf13/cobra"

	cmdcommon "github.com/counselrank/audit-service/cmd/common"
)

// Command returns the analyze command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <run-id>",
		Short: "Run SEO checks against an audit run's pages",
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

			ctx := cmd.Context()
			if err := cmdcommon.RunAnalyzeStage(ctx, deps, pipeline, runID); err != nil {
				return err
			}

			findings, err := pipeline.Findings.ListByRun(ctx, runID)
			if err != nil {
				return fmt.Errorf("list findings: %w", err)
			}

			fmt.Printf("Recorded %d findings for run %s\n", len(findings), runID)
			return nil
		},
	}
}
