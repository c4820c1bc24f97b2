package model

import (
	"strings"
	"time"
)

// Column is a normalized column definition. DataType keeps the native type
// string from whichever platform the column was read from; NormalizedType is
// the platform-independent equivalent.
type Column struct {
	Name           string   `json:"name" yaml:"name"`
	DataType       string   `json:"data_type" yaml:"type"`
	NormalizedType DataType `json:"normalized_type" yaml:"normalized_type,omitempty"`
	IsNullable     bool     `json:"is_nullable" yaml:"nullable,omitempty"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	IsHidden       bool     `json:"is_hidden,omitempty" yaml:"hidden,omitempty"`
	FormatString   string   `json:"format_string,omitempty" yaml:"format_string,omitempty"`
	SourceColumn   string   `json:"source_column,omitempty" yaml:"source_column,omitempty"`
}

// Normalize derives NormalizedType from the native DataType when the
// extractor did not set it, trying the model-side vocabulary first.
func (c *Column) Normalize() {
	if c.NormalizedType != "" && c.NormalizedType != TypeUnknown {
		return
	}
	if t := DataTypeFromModel(c.DataType); t != TypeUnknown {
		c.NormalizedType = t
		return
	}
	c.NormalizedType = DataTypeFromWarehouse(c.DataType)
}

// Table groups columns under a case-insensitive name identity. SourceTable
// and PartitionSource are provenance only and never used for identity.
type Table struct {
	Name            string   `json:"name" yaml:"name"`
	Description     string   `json:"description,omitempty" yaml:"description,omitempty"`
	Columns         []Column `json:"columns" yaml:"columns"`
	IsHidden        bool     `json:"is_hidden,omitempty" yaml:"hidden,omitempty"`
	SourceTable     string   `json:"source_table,omitempty" yaml:"source_table,omitempty"`
	PartitionSource string   `json:"partition_source,omitempty" yaml:"partition_source,omitempty"`
}

// GetColumn looks a column up by case-insensitive name.
func (t *Table) GetColumn(name string) *Column {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i]
		}
	}
	return nil
}

// Measure is a named calculation owned by a table. Expression is opaque to
// the engine.
type Measure struct {
	Name         string `json:"name" yaml:"name"`
	Expression   string `json:"expression" yaml:"expression"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
	FormatString string `json:"format_string,omitempty" yaml:"format_string,omitempty"`
	IsHidden     bool   `json:"is_hidden,omitempty" yaml:"hidden,omitempty"`
	Folder       string `json:"folder,omitempty" yaml:"folder,omitempty"`
	DataType     string `json:"data_type,omitempty" yaml:"data_type,omitempty"`
	TableName    string `json:"table_name,omitempty" yaml:"table_name,omitempty"`
}

// Relationship connects two table columns. Its diff identity is the endpoint
// 4-tuple, never the name.
type Relationship struct {
	Name                 string `json:"name" yaml:"name"`
	FromTable            string `json:"from_table" yaml:"from_table"`
	FromColumn           string `json:"from_column" yaml:"from_column"`
	ToTable              string `json:"to_table" yaml:"to_table"`
	ToColumn             string `json:"to_column" yaml:"to_column"`
	Cardinality          string `json:"cardinality" yaml:"cardinality,omitempty"`
	CrossFilterDirection string `json:"cross_filter_direction" yaml:"cross_filter_direction,omitempty"`
	IsActive             bool   `json:"is_active" yaml:"active,omitempty"`
}

// Defaults for relationships read from sources that omit the optional fields.
const (
	DefaultCardinality          = "many-to-one"
	DefaultCrossFilterDirection = "single"
)

// NewRelationship builds a relationship with defaulted cardinality, filter
// direction and active flag.
func NewRelationship(name, fromTable, fromColumn, toTable, toColumn string) Relationship {
	return Relationship{
		Name:                 name,
		FromTable:            fromTable,
		FromColumn:           fromColumn,
		ToTable:              toTable,
		ToColumn:             toColumn,
		Cardinality:          DefaultCardinality,
		CrossFilterDirection: DefaultCrossFilterDirection,
		IsActive:             true,
	}
}

// Model is the normalized representation of one side's schema. A model is
// built once per extraction and treated as read-only afterwards; re-reading
// a source produces a fresh model.
type Model struct {
	Name          string            `json:"name" yaml:"name"`
	Source        string            `json:"source" yaml:"source,omitempty"`
	Description   string            `json:"description,omitempty" yaml:"description,omitempty"`
	Tables        []Table           `json:"tables" yaml:"tables"`
	Measures      []Measure         `json:"measures,omitempty" yaml:"measures,omitempty"`
	Relationships []Relationship    `json:"relationships,omitempty" yaml:"relationships,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	ExtractedAt   time.Time         `json:"extracted_at" yaml:"extracted_at,omitempty"`
	Version       string            `json:"version" yaml:"version,omitempty"`
}

// GetTable looks a table up by case-insensitive name.
func (m *Model) GetTable(name string) *Table {
	for i := range m.Tables {
		if strings.EqualFold(m.Tables[i].Name, name) {
			return &m.Tables[i]
		}
	}
	return nil
}

// GetMeasure looks a measure up by case-insensitive name.
func (m *Model) GetMeasure(name string) *Measure {
	for i := range m.Measures {
		if strings.EqualFold(m.Measures[i].Name, name) {
			return &m.Measures[i]
		}
	}
	return nil
}

// GetRelationship looks a relationship up by case-insensitive name.
func (m *Model) GetRelationship(name string) *Relationship {
	for i := range m.Relationships {
		if strings.EqualFold(m.Relationships[i].Name, name) {
			return &m.Relationships[i]
		}
	}
	return nil
}

func (m *Model) TableCount() int { return len(m.Tables) }

func (m *Model) ColumnCount() int {
	n := 0
	for i := range m.Tables {
		n += len(m.Tables[i].Columns)
	}
	return n
}

func (m *Model) MeasureCount() int { return len(m.Measures) }

func (m *Model) RelationshipCount() int { return len(m.Relationships) }
