package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"semasync/detect"
	"semasync/syncer"
)

var (
	previewDirection string
	previewFormat    string
	previewOutput    string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show what a sync would change without applying anything",
	Long: `Extract both sides, detect the differences, and print them.

Examples:
  semasync preview                                  # model-to-warehouse, table output
  semasync preview --direction warehouse-to-model
  semasync preview --format json                    # machine-readable report
  semasync preview --format markdown                # paste into a PR
`,
	Run: func(cmd *cobra.Command, args []string) {
		direction, err := syncer.ParseDirection(previewDirection)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}

		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		o, err := a.orchestrator(ctx, direction, false)
		if err != nil {
			fmt.Printf("❌ Error preparing preview: %v\n", err)
			os.Exit(1)
		}
		o.Progress = nil

		report, err := o.Preview(ctx)
		if err != nil {
			fmt.Printf("❌ Preview failed: %v\n", err)
			os.Exit(1)
		}

		switch previewFormat {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				fmt.Printf("❌ Error encoding report: %v\n", err)
				os.Exit(1)
			}
		case "markdown":
			printMarkdownReport(report)
		default:
			printTableReport(report)
		}

		if previewOutput != "" {
			writeJSONFile(previewOutput, report)
		}
	},
}

func init() {
	previewCmd.Flags().StringVarP(&previewDirection, "direction", "d", string(syncer.ModelToWarehouse), "Sync direction (model-to-warehouse, warehouse-to-model)")
	previewCmd.Flags().StringVarP(&previewFormat, "format", "f", "table", "Output format (table, json, markdown)")
	previewCmd.Flags().StringVarP(&previewOutput, "output", "o", "", "Write the change report to a JSON file")
}

// changeLabel renders "table orders" or "column orders.Total".
func changeLabel(c detect.Change) string {
	if c.ParentEntity != "" {
		return fmt.Sprintf("%s %s.%s", c.Entity, c.ParentEntity, c.EntityName)
	}
	return fmt.Sprintf("%s %s", c.Entity, c.EntityName)
}

func detailLine(c detect.Change) string {
	if len(c.Details) == 0 {
		return ""
	}
	fields := make([]string, 0, len(c.Details))
	for name, fc := range c.Details {
		fields = append(fields, fmt.Sprintf("%s: %v → %v", name, fc.Old, fc.New))
	}
	sort.Strings(fields)
	return strings.Join(fields, ", ")
}

func printTableReport(report *detect.Report) {
	fmt.Printf("🔍 Changes: %s → %s\n", report.Source, report.Target)
	fmt.Println(strings.Repeat("=", 60))

	if !report.HasChanges() {
		fmt.Println("✅ No differences found, target is in sync")
		return
	}

	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	cyan := color.New(color.FgCyan)

	if adds := report.Additions(); len(adds) > 0 {
		fmt.Println("\n➕ Added:")
		for _, c := range adds {
			green.Printf("  + %s\n", changeLabel(c))
		}
	}
	if mods := report.Modifications(); len(mods) > 0 {
		fmt.Println("\n✏️  Modified:")
		for _, c := range mods {
			yellow.Printf("  ~ %s\n", changeLabel(c))
			if line := detailLine(c); line != "" {
				cyan.Printf("      %s\n", line)
			}
		}
	}
	if rems := report.Removals(); len(rems) > 0 {
		fmt.Println("\n➖ Removed (never applied automatically):")
		for _, c := range rems {
			red.Printf("  - %s\n", changeLabel(c))
		}
	}

	s := report.Summarize()
	fmt.Println("\n" + strings.Repeat("-", 60))
	fmt.Printf("📊 %d change(s): %d added, %d modified, %d removed\n",
		s.Total, s.Added, s.Modified, s.Removed)
}

func printMarkdownReport(report *detect.Report) {
	fmt.Printf("## Schema changes: %s → %s\n\n", report.Source, report.Target)

	if !report.HasChanges() {
		fmt.Println("No differences found.")
		return
	}

	fmt.Println("| Change | Entity | Name | Details |")
	fmt.Println("|--------|--------|------|---------|")
	for _, c := range report.Changes {
		name := c.EntityName
		if c.ParentEntity != "" {
			name = c.ParentEntity + "." + c.EntityName
		}
		fmt.Printf("| %s | %s | %s | %s |\n", c.Type, c.Entity, name, detailLine(c))
	}

	s := report.Summarize()
	fmt.Printf("\n**%d change(s)**: %d added, %d modified, %d removed\n",
		s.Total, s.Added, s.Modified, s.Removed)
}
