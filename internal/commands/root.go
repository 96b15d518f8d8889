// Package commands implements the spendbook CLI.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	e := &env{}

	rootCmd := &cobra.Command{
		Use:   "spendbook",
		Short: "Personal finance statement ingestion and analytics",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&e.configPath, "config", "", "config file (default ~/.config/spendbook/config.yaml)")

	rootCmd.AddCommand(
		newEntityCommand(e),
		newStatementCommand(e),
		newIngestCommand(e),
		newReviewCommand(e),
		newReportCommand(e),
		newExportCommand(e),
		newSecretCommand(e),
		newMigrateCommand(e),
	)

	return rootCmd
}
