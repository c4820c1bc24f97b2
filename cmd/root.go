package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "semasync",
	Short: "Keep a BI semantic model and a warehouse schema in sync",
	Long: `semasync extracts the schema of a BI semantic model and of a SQL
warehouse, detects the differences between them, and applies the changes
in either direction.

Examples:

  semasync preview --direction model-to-warehouse
  semasync sync --direction model-to-warehouse --mode incremental
  semasync sync --direction warehouse-to-model --dry-run
  semasync snapshot list
`,
	SilenceUsage: true,
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("❌", err)
		os.Exit(1)
	}
}

// Register subcommands
func init() {
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(docsCmd)
}
