package powerbi

import (
	"context"
	"fmt"
	"strings"

	"semasync/extract"
	"semasync/logger"
	"semasync/model"
)

// Catalog queries served by the dataset query endpoint. INFO functions work
// on every dataset type; the TMSCHEMA views additionally expose measures and
// relationships.
const (
	tablesQuery        = "EVALUATE INFO.TABLES()"
	measuresQuery      = "SELECT [Name], [Expression], [Description], [IsHidden], [TableName] FROM $SYSTEM.TMSCHEMA_MEASURES"
	relationshipsQuery = "SELECT [Name], [FromTableName], [FromColumnName], [ToTableName], [ToColumnName], [IsActive] FROM $SYSTEM.TMSCHEMA_RELATIONSHIPS"
)

func columnsQueryFor(tableName string) string {
	escaped := strings.ReplaceAll(tableName, `"`, `""`)
	return fmt.Sprintf(`EVALUATE FILTER(INFO.COLUMNS(), [TableName] = "%s")`, escaped)
}

// isInternalTable filters platform-generated objects out of catalog results.
func isInternalTable(name string) bool {
	return strings.HasPrefix(name, "$") ||
		strings.HasPrefix(name, "DateTableTemplate") ||
		strings.HasPrefix(name, "LocalDateTable")
}

// rowString reads the first present key from a catalog row. System-view rows
// wrap column names in brackets, INFO function rows do not; both spellings
// are tried for every key.
func rowString(row map[string]any, keys ...string) string {
	for _, key := range keys {
		for _, k := range []string{"[" + key + "]", key} {
			if v, ok := row[k]; ok && v != nil {
				if s, ok := v.(string); ok {
					return s
				}
				return fmt.Sprintf("%v", v)
			}
		}
	}
	return ""
}

func rowBool(row map[string]any, def bool, keys ...string) bool {
	for _, key := range keys {
		for _, k := range []string{"[" + key + "]", key} {
			if v, ok := row[k]; ok && v != nil {
				if b, ok := v.(bool); ok {
					return b
				}
			}
		}
	}
	return def
}

// DMVStrategy reads table and column metadata through the dataset query
// endpoint's catalog functions. It serves datasets whose direct schema API
// returns nothing usable, which is the norm for import datasets.
type DMVStrategy struct {
	client *Client
	log    *logger.Logger
}

func NewDMVStrategy(client *Client, log *logger.Logger) *DMVStrategy {
	return &DMVStrategy{client: client, log: log}
}

func (s *DMVStrategy) Name() string { return "dmv" }

func (s *DMVStrategy) TryExtract(ctx context.Context, ref extract.SourceRef) (*model.Model, error) {
	tableRows, err := s.client.ExecuteQuery(ctx, ref.ID, tablesQuery)
	if err != nil {
		return nil, err
	}

	m := &model.Model{Name: ref.Name, Source: PlatformName}
	for _, row := range tableRows {
		name := rowString(row, "Name")
		if name == "" || isInternalTable(name) {
			continue
		}

		columns, err := s.readColumns(ctx, ref.ID, name)
		if err != nil {
			s.log.Warn("catalog column query failed", "table", name, "error", err)
			continue
		}

		m.Tables = append(m.Tables, model.Table{
			Name:        name,
			Description: rowString(row, "Description"),
			IsHidden:    rowBool(row, false, "IsHidden"),
			Columns:     columns,
		})
	}
	return m, nil
}

func (s *DMVStrategy) readColumns(ctx context.Context, datasetID, tableName string) ([]model.Column, error) {
	rows, err := s.client.ExecuteQuery(ctx, datasetID, columnsQueryFor(tableName))
	if err != nil {
		return nil, err
	}

	columns := make([]model.Column, 0, len(rows))
	for _, row := range rows {
		name := rowString(row, "Name", "ColumnName", "ExplicitName")
		if name == "" {
			continue
		}
		dataType := rowString(row, "DataType")
		if dataType == "" {
			dataType = "String"
		}
		col := model.Column{
			Name:        name,
			DataType:    dataType,
			IsNullable:  true,
			Description: rowString(row, "Description"),
			IsHidden:    rowBool(row, false, "IsHidden"),
		}
		col.Normalize()
		columns = append(columns, col)
	}
	return columns, nil
}
