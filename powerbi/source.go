package powerbi

import (
	"context"
	"fmt"
	"strings"

	"semasync/errs"
	"semasync/extract"
	"semasync/logger"
)

// Source reads one dataset's schema. Tables and columns come from the direct
// schema API; measures and relationships only exist in the catalog views
// behind the query endpoint. The schema API returns columns inline with
// tables, so a single fetch serves both listings; a Source lives for one
// extraction and caches that fetch.
type Source struct {
	client  *Client
	dataset Dataset
	log     *logger.Logger

	tables  []Table
	fetched bool
}

func NewSource(client *Client, dataset Dataset, log *logger.Logger) *Source {
	return &Source{client: client, dataset: dataset, log: log}
}

func (s *Source) Platform() string { return PlatformName }

// Dataset returns the catalog entry this source reads from.
func (s *Source) Dataset() Dataset { return s.dataset }

func (s *Source) loadTables(ctx context.Context) ([]Table, error) {
	if s.fetched {
		return s.tables, nil
	}
	tables, err := s.client.GetTables(ctx, s.dataset.ID)
	if err != nil {
		return nil, err
	}
	s.tables = tables
	s.fetched = true
	return tables, nil
}

func (s *Source) ListTables(ctx context.Context) ([]extract.TableInfo, error) {
	tables, err := s.loadTables(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]extract.TableInfo, 0, len(tables))
	for _, t := range tables {
		infos = append(infos, extract.TableInfo{
			ID:          t.Name,
			Name:        t.Name,
			Description: t.Description,
			IsHidden:    t.IsHidden,
		})
	}
	return infos, nil
}

func (s *Source) ListColumns(ctx context.Context, tableID string) ([]extract.ColumnInfo, error) {
	tables, err := s.loadTables(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		if !strings.EqualFold(t.Name, tableID) {
			continue
		}
		infos := make([]extract.ColumnInfo, 0, len(t.Columns))
		for _, c := range t.Columns {
			col := c.toModel()
			infos = append(infos, extract.ColumnInfo{
				Name:         col.Name,
				DataType:     col.DataType,
				IsNullable:   col.IsNullable,
				Description:  col.Description,
				IsHidden:     col.IsHidden,
				FormatString: col.FormatString,
			})
		}
		return infos, nil
	}
	return nil, &errs.ResourceNotFoundError{ResourceType: "table", ResourceID: tableID}
}

func (s *Source) ListMeasures(ctx context.Context) ([]extract.MeasureInfo, error) {
	rows, err := s.client.ExecuteQuery(ctx, s.dataset.ID, measuresQuery)
	if err != nil {
		return nil, err
	}
	measures := make([]extract.MeasureInfo, 0, len(rows))
	for _, row := range rows {
		name := rowString(row, "Name")
		if name == "" {
			continue
		}
		measures = append(measures, extract.MeasureInfo{
			Name:        name,
			Expression:  rowString(row, "Expression"),
			Description: rowString(row, "Description"),
			IsHidden:    rowBool(row, false, "IsHidden"),
			TableName:   rowString(row, "TableName"),
		})
	}
	return measures, nil
}

func (s *Source) ListRelationships(ctx context.Context) ([]extract.RelationshipInfo, error) {
	rows, err := s.client.ExecuteQuery(ctx, s.dataset.ID, relationshipsQuery)
	if err != nil {
		return nil, err
	}
	relationships := make([]extract.RelationshipInfo, 0, len(rows))
	for _, row := range rows {
		name := rowString(row, "Name")
		if name == "" {
			continue
		}
		relationships = append(relationships, extract.RelationshipInfo{
			Name:       name,
			FromTable:  rowString(row, "FromTableName", "FromTable"),
			FromColumn: rowString(row, "FromColumnName", "FromColumn"),
			ToTable:    rowString(row, "ToTableName", "ToTable"),
			ToColumn:   rowString(row, "ToColumnName", "ToColumn"),
			IsActive:   rowBool(row, true, "IsActive"),
		})
	}
	return relationships, nil
}

// SampleRows evaluates a limited row scan, feeding the inference fallback.
func (s *Source) SampleRows(ctx context.Context, tableName string, limit int) ([]map[string]any, error) {
	escaped := strings.ReplaceAll(tableName, "'", "''")
	query := fmt.Sprintf("EVALUATE TOPN(%d, '%s')", limit, escaped)
	return s.client.ExecuteQuery(ctx, s.dataset.ID, query)
}
