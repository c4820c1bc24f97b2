package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelLookupsAreCaseInsensitive(t *testing.T) {
	m := &Model{
		Name: "sales",
		Tables: []Table{
			{Name: "Orders", Columns: []Column{{Name: "OrderID", DataType: "Int64"}}},
		},
		Measures: []Measure{
			{Name: "Total Sales", Expression: "SUM(Orders[Total])", TableName: "Orders"},
		},
		Relationships: []Relationship{
			NewRelationship("orders_customers", "Orders", "CustomerID", "Customers", "CustomerID"),
		},
	}

	require.NotNil(t, m.GetTable("orders"))
	require.NotNil(t, m.GetTable("ORDERS"))
	assert.Nil(t, m.GetTable("customers"))

	require.NotNil(t, m.GetMeasure("total sales"))
	assert.Nil(t, m.GetMeasure("missing"))

	require.NotNil(t, m.GetRelationship("ORDERS_CUSTOMERS"))
	assert.Nil(t, m.GetRelationship("nope"))

	tbl := m.GetTable("Orders")
	require.NotNil(t, tbl.GetColumn("orderid"))
	assert.Nil(t, tbl.GetColumn("total"))
}

func TestModelCounts(t *testing.T) {
	m := &Model{
		Tables: []Table{
			{Name: "a", Columns: []Column{{Name: "x"}, {Name: "y"}}},
			{Name: "b", Columns: []Column{{Name: "z"}}},
		},
		Measures:      []Measure{{Name: "m1"}},
		Relationships: []Relationship{NewRelationship("r", "a", "x", "b", "z")},
	}
	assert.Equal(t, 2, m.TableCount())
	assert.Equal(t, 3, m.ColumnCount())
	assert.Equal(t, 1, m.MeasureCount())
	assert.Equal(t, 1, m.RelationshipCount())
}

func TestNewRelationshipDefaults(t *testing.T) {
	r := NewRelationship("r", "Orders", "CustomerID", "Customers", "CustomerID")
	assert.Equal(t, DefaultCardinality, r.Cardinality)
	assert.Equal(t, DefaultCrossFilterDirection, r.CrossFilterDirection)
	assert.True(t, r.IsActive)
}
