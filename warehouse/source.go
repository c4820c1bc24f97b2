package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"semasync/errs"
	"semasync/extract"
	"semasync/logger"
)

const listTablesQuery = `
SELECT t.table_name,
       COALESCE(obj_description(format('%I.%I', t.table_schema, t.table_name)::regclass, 'pg_class'), '') AS comment
FROM information_schema.tables t
WHERE t.table_schema = $1 AND t.table_type = 'BASE TABLE'
ORDER BY t.table_name;
`

const listColumnsQuery = `
SELECT c.column_name,
       c.data_type,
       (c.is_nullable = 'YES') AS is_nullable,
       COALESCE(col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position), '') AS comment
FROM information_schema.columns c
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position;
`

// Source reads table structure out of the warehouse catalog. Descriptions
// and hidden flags come back out of the comments the sink writes, so a
// model-to-warehouse sync followed by a read sees its own metadata again.
type Source struct {
	pool   *pgxpool.Pool
	schema string
	log    *logger.Logger
}

func NewSource(pool *pgxpool.Pool, schema string, log *logger.Logger) *Source {
	return &Source{pool: pool, schema: schema, log: log}
}

func (s *Source) Platform() string { return PlatformName }

func (s *Source) ListTables(ctx context.Context) ([]extract.TableInfo, error) {
	rows, err := s.pool.Query(ctx, listTablesQuery, s.schema)
	if err != nil {
		return nil, fmt.Errorf("querying tables: %w", err)
	}
	defer rows.Close()

	var tables []extract.TableInfo
	for rows.Next() {
		var name, comment string
		if err := rows.Scan(&name, &comment); err != nil {
			return nil, fmt.Errorf("scanning table row: %w", err)
		}
		description, hidden := parseComment(comment)
		tables = append(tables, extract.TableInfo{
			ID:          name,
			Name:        name,
			Description: description,
			IsHidden:    hidden,
		})
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterating table rows: %w", rows.Err())
	}
	return tables, nil
}

func (s *Source) ListColumns(ctx context.Context, tableID string) ([]extract.ColumnInfo, error) {
	rows, err := s.pool.Query(ctx, listColumnsQuery, s.schema, tableID)
	if err != nil {
		return nil, fmt.Errorf("querying columns for %s: %w", tableID, err)
	}
	defer rows.Close()

	var columns []extract.ColumnInfo
	for rows.Next() {
		var name, dataType, comment string
		var nullable bool
		if err := rows.Scan(&name, &dataType, &nullable, &comment); err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}
		description, hidden := parseComment(comment)
		columns = append(columns, extract.ColumnInfo{
			Name:        name,
			DataType:    dataType,
			IsNullable:  nullable,
			Description: description,
			IsHidden:    hidden,
		})
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterating column rows: %w", rows.Err())
	}
	if len(columns) == 0 {
		return nil, &errs.ResourceNotFoundError{ResourceType: "table", ResourceID: tableID}
	}
	return columns, nil
}

// ListMeasures reports not supported. The warehouse has no measure concept.
func (s *Source) ListMeasures(ctx context.Context) ([]extract.MeasureInfo, error) {
	return nil, fmt.Errorf("warehouse measures: %w", errs.ErrNotSupported)
}

// ListRelationships reports not supported. Foreign keys are not semantic
// relationships and are left alone.
func (s *Source) ListRelationships(ctx context.Context) ([]extract.RelationshipInfo, error) {
	return nil, fmt.Errorf("warehouse relationships: %w", errs.ErrNotSupported)
}
