package warehouse

import (
	"fmt"
	"strings"

	"semasync/model"
)

// maxCommentLen caps comment literals so oversized descriptions cannot blow
// up a DDL statement.
const maxCommentLen = 1000

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func qualify(schema, name string) string {
	return quoteIdent(schema) + "." + quoteIdent(name)
}

// warehouseType resolves the DDL type for a column, normalizing first when
// the extractor left NormalizedType unset.
func warehouseType(c model.Column) string {
	if c.NormalizedType == "" || c.NormalizedType == model.TypeUnknown {
		c.Normalize()
	}
	return c.NormalizedType.ToWarehouse()
}

func buildCreateTable(schema string, def model.Table) string {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (`, qualify(schema, def.Name))
	for i, col := range def.Columns {
		stmt += fmt.Sprintf(`%s %s`, quoteIdent(col.Name), warehouseType(col))
		if !col.IsNullable {
			stmt += " NOT NULL"
		}
		if i < len(def.Columns)-1 {
			stmt += ", "
		}
	}
	stmt += ");"
	return stmt
}

// buildAddColumn never emits NOT NULL: existing rows have no value to
// satisfy the constraint.
func buildAddColumn(schema, table string, c model.Column) string {
	return fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s;`,
		qualify(schema, table), quoteIdent(c.Name), warehouseType(c))
}

func buildTableComment(schema, table, comment string) string {
	return fmt.Sprintf(`COMMENT ON TABLE %s IS '%s';`,
		qualify(schema, table), escapeComment(comment))
}

func buildColumnComment(schema, table, column, comment string) string {
	return fmt.Sprintf(`COMMENT ON COLUMN %s.%s IS '%s';`,
		qualify(schema, table), quoteIdent(column), escapeComment(comment))
}

// escapeComment makes a string safe to embed as a SQL literal: newlines
// become spaces, the length is capped, quotes are doubled.
func escapeComment(s string) string {
	s = strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
	if runes := []rune(s); len(runes) > maxCommentLen {
		s = string(runes[:maxCommentLen])
	}
	return strings.ReplaceAll(s, "'", "''")
}

const (
	hiddenMarker = "[Hidden]"
	typePrefix   = "[Type: "
	partsSep     = " | "
)

// tableComment renders the comment stored on a table.
func tableComment(def model.Table) string {
	var parts []string
	if def.Description != "" {
		parts = append(parts, def.Description)
	}
	if def.IsHidden {
		parts = append(parts, hiddenMarker)
	}
	return strings.Join(parts, partsSep)
}

// columnComment renders the comment stored on a column. The type tag keeps
// the model-native type visible in the warehouse catalog.
func columnComment(c model.Column) string {
	var parts []string
	if c.Description != "" {
		parts = append(parts, c.Description)
	}
	label := c.DataType
	if label == "" {
		label = c.NormalizedType.ToModel()
	}
	parts = append(parts, typePrefix+label+"]")
	if c.IsHidden {
		parts = append(parts, hiddenMarker)
	}
	return strings.Join(parts, partsSep)
}

// metadataComment renders a comment from a metadata-change field map. The
// second return is false when no comment-backed field is present, meaning
// there is nothing to write.
func metadataComment(fields map[string]string) (string, bool) {
	_, hasDesc := fields["description"]
	_, hasType := fields["data_type"]
	_, hasHidden := fields["is_hidden"]
	if !hasDesc && !hasType && !hasHidden {
		return "", false
	}

	var parts []string
	if fields["description"] != "" {
		parts = append(parts, fields["description"])
	}
	if fields["data_type"] != "" {
		parts = append(parts, typePrefix+fields["data_type"]+"]")
	}
	if fields["is_hidden"] == "true" {
		parts = append(parts, hiddenMarker)
	}
	return strings.Join(parts, partsSep), true
}

// parseComment splits a stored comment back into its description and hidden
// flag. Type tags are write-side bookkeeping and dropped here; the catalog
// is the authority on types.
func parseComment(comment string) (string, bool) {
	if comment == "" {
		return "", false
	}
	var desc []string
	hidden := false
	for _, part := range strings.Split(comment, partsSep) {
		switch {
		case part == hiddenMarker:
			hidden = true
		case strings.HasPrefix(part, typePrefix) && strings.HasSuffix(part, "]"):
		default:
			desc = append(desc, part)
		}
	}
	return strings.Join(desc, partsSep), hidden
}
