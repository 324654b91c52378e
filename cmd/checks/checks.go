// Package checks implements the checks command, which lists the SEO
// checks the analyzer can run.
package checks

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	checkspkg "github.com/counselrank/audit-service/internal/checks"
)

// Command returns the checks command with its list subcommand.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checks",
		Short: "Inspect the registered SEO checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(listCommand())
	return cmd
}

// listCommand returns the checks list subcommand.
func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all registered checks",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Code", "Category", "Severity", "Impact", "Effort", "Title"})

			for _, check := range checkspkg.Registry() {
				meta := check.Meta()
				t.AppendRow(table.Row{
					meta.Code, meta.Category, meta.Severity,
					fmt.Sprintf("%.1f", meta.ImpactScore), meta.Effort, meta.Title,
				})
			}

			t.Render()
		},
	}
}
