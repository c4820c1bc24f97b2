package extract

import (
	"context"

	"semasync/model"
)

// SourceRef identifies the schema container being extracted: a dataset on the
// model side, a schema on the warehouse side. ID is the platform identifier
// once resolved (dataset id, schema name); Name is the display name used for
// registry lookups and the resulting model.
type SourceRef struct {
	Name string
	ID   string
}

// SchemaSource lists schema objects in their platform-native shape. Column
// data types stay in the platform's own vocabulary; strategies normalize them
// when building a model. A method that the platform cannot serve returns
// errs.ErrNotSupported so the fallback chain can tell "unavailable" apart
// from "empty".
type SchemaSource interface {
	Platform() string
	ListTables(ctx context.Context) ([]TableInfo, error)
	ListColumns(ctx context.Context, tableID string) ([]ColumnInfo, error)
	ListMeasures(ctx context.Context) ([]MeasureInfo, error)
	ListRelationships(ctx context.Context) ([]RelationshipInfo, error)
}

// RowSampler reads a few data rows from a table. The inference strategy uses
// it to derive column types when no schema API is available.
type RowSampler interface {
	SampleRows(ctx context.Context, tableName string, limit int) ([]map[string]any, error)
}

// TableInfo is the platform-native table listing entry.
type TableInfo struct {
	ID          string
	Name        string
	Description string
	IsHidden    bool
}

// ColumnInfo is the platform-native column listing entry. DataType is the
// platform's own type name.
type ColumnInfo struct {
	Name         string
	DataType     string
	IsNullable   bool
	Description  string
	IsHidden     bool
	FormatString string
}

// MeasureInfo is the platform-native measure listing entry.
type MeasureInfo struct {
	Name         string
	Expression   string
	Description  string
	FormatString string
	IsHidden     bool
	Folder       string
	TableName    string
	DataType     string
}

// RelationshipInfo is the platform-native relationship listing entry.
// Cardinality and CrossFilterDirection may be empty when the platform does
// not expose them; the extractor applies the model defaults.
type RelationshipInfo struct {
	Name                 string
	FromTable            string
	FromColumn           string
	ToTable              string
	ToColumn             string
	Cardinality          string
	CrossFilterDirection string
	IsActive             bool
}

// ToTable converts the listing entry into a table shell without columns.
func (t TableInfo) ToTable() model.Table {
	return model.Table{
		Name:        t.Name,
		Description: t.Description,
		IsHidden:    t.IsHidden,
	}
}

// ToColumn converts the listing entry into a normalized column.
func (c ColumnInfo) ToColumn() model.Column {
	col := model.Column{
		Name:         c.Name,
		DataType:     c.DataType,
		IsNullable:   c.IsNullable,
		Description:  c.Description,
		IsHidden:     c.IsHidden,
		FormatString: c.FormatString,
	}
	col.Normalize()
	return col
}

func (m MeasureInfo) ToMeasure() model.Measure {
	return model.Measure{
		Name:         m.Name,
		Expression:   m.Expression,
		Description:  m.Description,
		FormatString: m.FormatString,
		IsHidden:     m.IsHidden,
		Folder:       m.Folder,
		DataType:     m.DataType,
		TableName:    m.TableName,
	}
}

// ToRelationship converts the listing entry, filling in model defaults for
// fields the platform left empty.
func (r RelationshipInfo) ToRelationship() model.Relationship {
	rel := model.Relationship{
		Name:                 r.Name,
		FromTable:            r.FromTable,
		FromColumn:           r.FromColumn,
		ToTable:              r.ToTable,
		ToColumn:             r.ToColumn,
		Cardinality:          r.Cardinality,
		CrossFilterDirection: r.CrossFilterDirection,
		IsActive:             r.IsActive,
	}
	if rel.Cardinality == "" {
		rel.Cardinality = model.DefaultCardinality
	}
	if rel.CrossFilterDirection == "" {
		rel.CrossFilterDirection = model.DefaultCrossFilterDirection
	}
	return rel
}
