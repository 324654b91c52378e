// Package crawl implements the crawl command, which fetches and stores
// every in-scope page of an audit run's target site.
package crawl

import (
	"fmt"

	"github.com/spf13/cobra"

	cmdcommon "github.com/counselrank/audit-service/cmd/common"
)

// Command returns the crawl command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl <run-id>",
		Short: "Crawl the target site of an audit run",
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
			if err := cmdcommon.RunCrawlStage(ctx, deps, pipeline, runID); err != nil {
				return err
			}

			count, err := pipeline.Pages.CountByRun(ctx, runID)
			if err != nil {
				return fmt.Errorf("count pages: %w", err)
			}

			fmt.Printf("Crawled %d pages for run %s\n", count, runID)
			return nil
		},
	}
}
