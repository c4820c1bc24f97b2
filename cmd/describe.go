package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"semasync/model"
)

var (
	describeSource string
	describeFormat string
	describeOutput string
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Extract one side and print its schema",
	Long: `Extract the model, warehouse or lakehouse schema and print it.

Useful for checking what the extractors actually see before running a
sync, and for debugging fallback behavior when the primary strategy for
a side is unavailable.

Examples:
  semasync describe --source model
  semasync describe --source warehouse
  semasync describe --source lakehouse --format json
  semasync describe --format markdown --output schema.md
`,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		extractor, err := a.extractorFor(ctx, describeSource)
		if err != nil {
			fmt.Printf("❌ Error preparing extraction: %v\n", err)
			os.Exit(1)
		}
		m, err := extractor.Extract(ctx)
		if err != nil {
			fmt.Printf("❌ Extraction failed: %v\n", err)
			os.Exit(1)
		}

		switch describeFormat {
		case "json":
			if describeOutput != "" {
				writeJSONFile(describeOutput, m)
				return
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(m); err != nil {
				fmt.Printf("❌ Error encoding model: %v\n", err)
				os.Exit(1)
			}
		case "markdown":
			content := dictionaryContent(m)
			if describeOutput != "" {
				if err := os.WriteFile(describeOutput, []byte(content), 0644); err != nil {
					fmt.Printf("❌ Error writing %s: %v\n", describeOutput, err)
					os.Exit(1)
				}
				fmt.Printf("💾 Schema written to %s\n", describeOutput)
				return
			}
			fmt.Print(content)
		case "table":
			if describeOutput != "" {
				fmt.Println("❌ --output requires --format json or markdown")
				os.Exit(1)
			}
			printModel(m)
		default:
			fmt.Printf("❌ Unknown format: %s (use table, json or markdown)\n", describeFormat)
			os.Exit(1)
		}
	},
}

func printModel(m *model.Model) {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)
	faint := color.New(color.Faint)

	bold.Printf("📋 %s", m.Name)
	if m.Source != "" {
		fmt.Printf(" (%s)", m.Source)
	}
	fmt.Println()
	if m.Description != "" {
		fmt.Printf("   %s\n", m.Description)
	}
	fmt.Printf("   Extracted: %s\n", m.ExtractedAt.Format("2006-01-02 15:04:05"))
	fmt.Println(strings.Repeat("=", 70))

	for i := range m.Tables {
		t := &m.Tables[i]
		fmt.Println()
		cyan.Printf("📦 %s", t.Name)
		if t.IsHidden {
			faint.Printf(" (hidden)")
		}
		fmt.Printf("  [%d columns]\n", len(t.Columns))
		if t.Description != "" {
			fmt.Printf("   %s\n", t.Description)
		}
		fmt.Printf("   %-30s %-16s %-10s %s\n", "Column", "Type", "Nullable", "Description")
		fmt.Printf("   %s\n", strings.Repeat("-", 75))
		for j := range t.Columns {
			c := &t.Columns[j]
			nullable := "no"
			if c.IsNullable {
				nullable = "yes"
			}
			fmt.Printf("   %-30s %-16s %-10s %s\n", c.Name, c.DataType, nullable, c.Description)
		}
	}

	if len(m.Measures) > 0 {
		fmt.Println()
		cyan.Printf("📐 Measures [%d]\n", len(m.Measures))
		for i := range m.Measures {
			ms := &m.Measures[i]
			fmt.Printf("   %-30s = %s\n", ms.Name, ms.Expression)
		}
	}

	if len(m.Relationships) > 0 {
		fmt.Println()
		cyan.Printf("🔗 Relationships [%d]\n", len(m.Relationships))
		for i := range m.Relationships {
			r := &m.Relationships[i]
			active := ""
			if !r.IsActive {
				active = " (inactive)"
			}
			fmt.Printf("   %s.%s → %s.%s  [%s, %s]%s\n",
				r.FromTable, r.FromColumn, r.ToTable, r.ToColumn,
				r.Cardinality, r.CrossFilterDirection, active)
		}
	}

	fmt.Println()
	fmt.Printf("📊 %d table(s), %d column(s), %d measure(s), %d relationship(s)\n",
		m.TableCount(), m.ColumnCount(), m.MeasureCount(), m.RelationshipCount())
}

func init() {
	describeCmd.Flags().StringVarP(&describeSource, "source", "s", "model", "Side to describe (model, warehouse, lakehouse)")
	describeCmd.Flags().StringVarP(&describeFormat, "format", "f", "table", "Output format (table, json, markdown)")
	describeCmd.Flags().StringVarP(&describeOutput, "output", "o", "", "Write the schema to a file instead of stdout")
}
