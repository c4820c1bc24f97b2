package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"semasync/model"
)

var (
	docsSource string
	docsFormat string
	docsOutput string
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Generate documentation from an extracted schema",
	Long: `Extract one side and generate documentation from it.

Supported formats:
  - mermaid: Mermaid ERD diagram
  - dictionary: Markdown data dictionary
  - all: Both, written into an output directory

Examples:
  semasync docs --format mermaid --output erd.md
  semasync docs --source warehouse --format dictionary --output tables.md
  semasync docs --format all --output docs/
`,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		extractor, err := a.extractorFor(ctx, docsSource)
		if err != nil {
			fmt.Printf("❌ Error preparing extraction: %v\n", err)
			os.Exit(1)
		}
		m, err := extractor.Extract(ctx)
		if err != nil {
			fmt.Printf("❌ Extraction failed: %v\n", err)
			os.Exit(1)
		}

		switch docsFormat {
		case "mermaid":
			writeDoc(docsOutput, "erd.md", mermaidContent(m), "Mermaid ERD")
		case "dictionary":
			writeDoc(docsOutput, "dictionary.md", dictionaryContent(m), "Data dictionary")
		case "all":
			dir := docsOutput
			if dir == "" {
				dir = "docs"
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				fmt.Printf("❌ Error creating output directory: %v\n", err)
				os.Exit(1)
			}
			writeDoc(filepath.Join(dir, "erd.md"), "", mermaidContent(m), "Mermaid ERD")
			writeDoc(filepath.Join(dir, "dictionary.md"), "", dictionaryContent(m), "Data dictionary")
		default:
			fmt.Printf("❌ Unsupported format: %s\n", docsFormat)
			fmt.Println("Supported formats: mermaid, dictionary, all")
			os.Exit(1)
		}

		fmt.Println("✅ Documentation generated successfully!")
	},
}

func writeDoc(path, fallback, content, label string) {
	if path == "" {
		path = fallback
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		fmt.Printf("❌ Error writing %s: %v\n", path, err)
		os.Exit(1)
	}
	fmt.Printf("✅ %s saved to: %s\n", label, path)
}

// mermaidName strips characters Mermaid cannot parse in identifiers.
func mermaidName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func mermaidType(c *model.Column) string {
	t := string(c.NormalizedType)
	if t == "" || t == string(model.TypeUnknown) {
		t = c.DataType
	}
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	return mermaidName(strings.ToLower(t))
}

func mermaidCardinality(cardinality string) string {
	switch cardinality {
	case "one-to-many":
		return "||--o{"
	case "one-to-one":
		return "||--||"
	case "many-to-many":
		return "}o--o{"
	default:
		return "}o--||"
	}
}

func mermaidContent(m *model.Model) string {
	var content strings.Builder

	content.WriteString(fmt.Sprintf("# %s\n\n", m.Name))
	content.WriteString("```mermaid\nerDiagram\n")

	for i := range m.Tables {
		t := &m.Tables[i]
		content.WriteString(fmt.Sprintf("    %s {\n", mermaidName(t.Name)))
		for j := range t.Columns {
			c := &t.Columns[j]
			line := fmt.Sprintf("        %s %s", mermaidType(c), mermaidName(c.Name))
			if c.Description != "" {
				line += fmt.Sprintf(" %q", c.Description)
			}
			content.WriteString(line + "\n")
		}
		content.WriteString("    }\n")
	}

	for i := range m.Relationships {
		r := &m.Relationships[i]
		content.WriteString(fmt.Sprintf("    %s %s %s : %s\n",
			mermaidName(r.FromTable),
			mermaidCardinality(r.Cardinality),
			mermaidName(r.ToTable),
			mermaidName(r.FromColumn)))
	}

	content.WriteString("```\n")
	return content.String()
}

func dictionaryContent(m *model.Model) string {
	var content strings.Builder

	content.WriteString(fmt.Sprintf("# %s data dictionary\n\n", m.Name))
	if m.Description != "" {
		content.WriteString(m.Description + "\n\n")
	}
	content.WriteString(fmt.Sprintf("Extracted from %s at %s.\n\n", m.Source, m.ExtractedAt.Format("2006-01-02 15:04")))

	for i := range m.Tables {
		t := &m.Tables[i]
		content.WriteString(fmt.Sprintf("## %s\n\n", t.Name))
		if t.Description != "" {
			content.WriteString(t.Description + "\n\n")
		}
		content.WriteString("| Column | Type | Nullable | Description |\n")
		content.WriteString("|--------|------|----------|-------------|\n")
		for j := range t.Columns {
			c := &t.Columns[j]
			nullable := "no"
			if c.IsNullable {
				nullable = "yes"
			}
			content.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", c.Name, c.DataType, nullable, c.Description))
		}
		content.WriteString("\n")
	}

	if len(m.Measures) > 0 {
		content.WriteString("## Measures\n\n")
		content.WriteString("| Name | Expression | Description |\n")
		content.WriteString("|------|------------|-------------|\n")
		for i := range m.Measures {
			ms := &m.Measures[i]
			content.WriteString(fmt.Sprintf("| %s | `%s` | %s |\n", ms.Name, ms.Expression, ms.Description))
		}
		content.WriteString("\n")
	}

	if len(m.Relationships) > 0 {
		content.WriteString("## Relationships\n\n")
		content.WriteString("| From | To | Cardinality | Active |\n")
		content.WriteString("|------|----|-------------|--------|\n")
		for i := range m.Relationships {
			r := &m.Relationships[i]
			active := "yes"
			if !r.IsActive {
				active = "no"
			}
			content.WriteString(fmt.Sprintf("| %s.%s | %s.%s | %s | %s |\n",
				r.FromTable, r.FromColumn, r.ToTable, r.ToColumn, r.Cardinality, active))
		}
	}

	return content.String()
}

func init() {
	docsCmd.Flags().StringVarP(&docsSource, "source", "s", "model", "Side to document (model, warehouse, lakehouse)")
	docsCmd.Flags().StringVarP(&docsFormat, "format", "f", "mermaid", "Output format (mermaid, dictionary, all)")
	docsCmd.Flags().StringVarP(&docsOutput, "output", "o", "", "Output file or directory (default: format-specific filename)")
}
