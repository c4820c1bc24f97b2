package registry

import (
	"fmt"
	"strings"

	"semasync/model"
)

// ValidationError describes one problem found in a definition
type ValidationError struct {
	Type     string `json:"type"`
	Table    string `json:"table,omitempty"`
	Column   string `json:"column,omitempty"`
	Message  string `json:"message"`
	Severity string `json:"severity"` // "error", "warning", "info"
}

// ValidationResult contains all validation findings for one definition
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
	Info     []ValidationError `json:"info"`
}

// ValidateDefinition checks a manual definition for structural problems.
// Errors make the definition unusable; warnings and info entries do not.
func ValidateDefinition(modelName string, def Definition) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
		Info:     []ValidationError{},
	}

	if len(def.Tables) == 0 {
		result.Errors = append(result.Errors, ValidationError{
			Type:     "no_tables",
			Message:  fmt.Sprintf("Definition '%s' must declare at least one table", modelName),
			Severity: "error",
		})
	}

	tableNames := make(map[string]bool)
	for _, table := range def.Tables {
		if table.Name == "" {
			result.Errors = append(result.Errors, ValidationError{
				Type:     "table_name",
				Message:  "Table name cannot be empty",
				Severity: "error",
			})
			continue
		}

		key := strings.ToLower(table.Name)
		if tableNames[key] {
			result.Errors = append(result.Errors, ValidationError{
				Type:     "duplicate_table",
				Table:    table.Name,
				Message:  fmt.Sprintf("Duplicate table name '%s' in definition '%s'", table.Name, modelName),
				Severity: "error",
			})
			continue
		}
		tableNames[key] = true

		validateTableDefinition(table, result)
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func validateTableDefinition(table TableDefinition, result *ValidationResult) {
	if len(table.Columns) == 0 {
		result.Errors = append(result.Errors, ValidationError{
			Type:     "no_columns",
			Table:    table.Name,
			Message:  fmt.Sprintf("Table '%s' must have at least one column", table.Name),
			Severity: "error",
		})
		return
	}

	columnNames := make(map[string]bool)
	for _, column := range table.Columns {
		if column.Name == "" {
			result.Errors = append(result.Errors, ValidationError{
				Type:     "column_name",
				Table:    table.Name,
				Message:  fmt.Sprintf("Column name cannot be empty in table '%s'", table.Name),
				Severity: "error",
			})
			continue
		}

		key := strings.ToLower(column.Name)
		if columnNames[key] {
			result.Errors = append(result.Errors, ValidationError{
				Type:     "duplicate_column",
				Table:    table.Name,
				Column:   column.Name,
				Message:  fmt.Sprintf("Duplicate column name '%s' in table '%s'", column.Name, table.Name),
				Severity: "error",
			})
			continue
		}
		columnNames[key] = true

		if column.DataType == "" {
			result.Info = append(result.Info, ValidationError{
				Type:     "default_data_type",
				Table:    table.Name,
				Column:   column.Name,
				Message:  fmt.Sprintf("Column '%s' has no data type, defaulting to String", column.Name),
				Severity: "info",
			})
			continue
		}

		if model.DataTypeFromModel(column.DataType) == model.TypeUnknown &&
			model.DataTypeFromWarehouse(column.DataType) == model.TypeUnknown {
			result.Warnings = append(result.Warnings, ValidationError{
				Type:     "data_type",
				Table:    table.Name,
				Column:   column.Name,
				Message:  fmt.Sprintf("Unrecognized data type '%s' for column '%s', will normalize to unknown", column.DataType, column.Name),
				Severity: "warning",
			})
		}
	}
}
