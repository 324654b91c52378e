// Package cmd implements the command-line interface for the audit
// service. It provides the root command and subcommands for running
// and inspecting website audits.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/counselrank/audit-service/cmd/analyze"
	"github.com/counselrank/audit-service/cmd/checks"
	cmdcommon "github.com/counselrank/audit-service/cmd/common"
	"github.com/counselrank/audit-service/cmd/crawl"
	"github.com/counselrank/audit-service/cmd/httpd"
	"github.com/counselrank/audit-service/cmd/score"
	"github.com/counselrank/audit-service/cmd/worker"
)

// version is overridden at build time via -ldflags.
var version = "1.0.0"

// rootCmd represents the root command for the audit CLI.
var rootCmd = &cobra.Command{
	Use:   "audit",
	Short: "An SEO website audit pipeline",
	Long: `Crawls a website, runs SEO checks against every page, and scores
the results. Stages can run directly (crawl, analyze, score) or be
driven by the queue worker.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cmdcommon.ConfigFile,
		"config",
		"",
		"config file (default is ./config.yaml or ./config/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&cmdcommon.Debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("audit version %s\n", version)
		},
	})

	rootCmd.AddCommand(crawl.Command())
	rootCmd.AddCommand(analyze.Command())
	rootCmd.AddCommand(score.Command())
	rootCmd.AddCommand(checks.Command())
	rootCmd.AddCommand(worker.Command())
	rootCmd.AddCommand(httpd.Command())
}
