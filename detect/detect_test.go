package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semasync/model"
)

func ordersModel(name string) *model.Model {
	return &model.Model{
		Name: name,
		Tables: []model.Table{
			{
				Name: "orders",
				Columns: []model.Column{
					{Name: "OrderID", DataType: "Int64", NormalizedType: model.TypeInteger},
					{Name: "Total", DataType: "Decimal", NormalizedType: model.TypeDecimal, IsNullable: true},
				},
			},
		},
		Measures: []model.Measure{
			{Name: "Total Sales", Expression: "SUM(orders[Total])", TableName: "orders"},
		},
		Relationships: []model.Relationship{
			model.NewRelationship("orders_customers", "Orders", "CustomerID", "Customers", "CustomerID"),
		},
	}
}

func TestDetectIdenticalModels(t *testing.T) {
	source := ordersModel("sales")
	target := ordersModel("sales")

	report := NewDetector().Detect(source, target)

	assert.False(t, report.HasChanges())
	assert.Empty(t, report.Changes)
	assert.Equal(t, 0, report.Summarize().Total)
}

func TestDetectAddedColumn(t *testing.T) {
	source := ordersModel("sales")
	target := ordersModel("sales")
	// Target is missing the Total column.
	target.Tables[0].Columns = target.Tables[0].Columns[:1]

	report := NewDetector().Detect(source, target)

	require.Len(t, report.Changes, 1)
	change := report.Changes[0]
	assert.Equal(t, Added, change.Type)
	assert.Equal(t, EntityColumn, change.Entity)
	assert.Equal(t, "Total", change.EntityName)
	assert.Equal(t, "orders", change.ParentEntity)
	assert.Empty(t, report.Removals())
}

func TestDetectCaseInsensitiveIdentity(t *testing.T) {
	source := ordersModel("sales")
	target := ordersModel("sales")
	target.Tables[0].Name = "Orders"
	target.Tables[0].Columns[0].Name = "ORDERID"

	report := NewDetector().Detect(source, target)
	assert.False(t, report.HasChanges())

	t.Run("case sensitive detector sees a rename as add plus remove", func(t *testing.T) {
		d := &Detector{CaseSensitive: true}
		report := d.Detect(source, target)
		summary := report.Summarize()
		// Table add + its 2 columns + table remove.
		assert.Equal(t, 3, summary.Added)
		assert.Equal(t, 1, summary.Removed)
	})
}

func TestDetectAddedTableEmitsColumnChanges(t *testing.T) {
	source := ordersModel("sales")
	source.Tables = append(source.Tables, model.Table{
		Name: "customers",
		Columns: []model.Column{
			{Name: "CustomerID", DataType: "Int64"},
			{Name: "Name", DataType: "String"},
		},
	})
	target := ordersModel("sales")

	report := NewDetector().Detect(source, target)

	additions := report.Additions()
	require.Len(t, additions, 3)
	assert.Equal(t, EntityTable, additions[0].Entity)
	assert.Equal(t, "customers", additions[0].EntityName)
	for _, c := range additions[1:] {
		assert.Equal(t, EntityColumn, c.Entity)
		assert.Equal(t, "customers", c.ParentEntity)
	}
}

func TestDetectModifiedCollectsAllFieldsInOneChange(t *testing.T) {
	source := ordersModel("sales")
	target := ordersModel("sales")
	target.Tables[0].Columns[1].DataType = "Double"
	target.Tables[0].Columns[1].IsNullable = false
	target.Tables[0].Columns[1].Description = "order total"

	report := NewDetector().Detect(source, target)

	mods := report.Modifications()
	require.Len(t, mods, 1)
	change := mods[0]
	assert.Equal(t, EntityColumn, change.Entity)
	assert.Equal(t, "Total", change.EntityName)
	require.Len(t, change.Details, 3)
	assert.Equal(t, FieldChange{Old: "Double", New: "Decimal"}, change.Details["data_type"])
	assert.Equal(t, FieldChange{Old: false, New: true}, change.Details["is_nullable"])
	assert.Equal(t, FieldChange{Old: "order total", New: ""}, change.Details["description"])
}

func TestDetectRemovedEntities(t *testing.T) {
	source := ordersModel("sales")
	source.Measures = nil
	target := ordersModel("sales")

	report := NewDetector().Detect(source, target)

	removals := report.Removals()
	require.Len(t, removals, 1)
	assert.Equal(t, EntityMeasure, removals[0].Entity)
	assert.Equal(t, "Total Sales", removals[0].EntityName)
}

func TestDetectRelationshipIdentityIsEndpoints(t *testing.T) {
	source := ordersModel("sales")
	target := ordersModel("sales")
	// Same endpoints, different display name, different cardinality.
	target.Relationships[0].Name = "fk_orders_customers"
	target.Relationships[0].Cardinality = "one-to-one"

	report := NewDetector().Detect(source, target)

	require.Len(t, report.Changes, 1)
	change := report.Changes[0]
	assert.Equal(t, Modified, change.Type)
	assert.Equal(t, EntityRelationship, change.Entity)
	require.Len(t, change.Details, 1)
	assert.Equal(t, FieldChange{Old: "one-to-one", New: "many-to-one"}, change.Details["cardinality"])
	assert.Empty(t, report.Additions())
	assert.Empty(t, report.Removals())
}

func TestDetectRelationshipEndpointSwap(t *testing.T) {
	source := ordersModel("sales")
	target := ordersModel("sales")
	// Swapped direction is a different relationship, not a modification.
	target.Relationships[0] = model.NewRelationship(
		"orders_customers", "Customers", "CustomerID", "Orders", "CustomerID")

	report := NewDetector().Detect(source, target)

	assert.Len(t, report.Additions(), 1)
	assert.Len(t, report.Removals(), 1)
	assert.Empty(t, report.Modifications())
	assert.NotEmpty(t, report.Additions()[0].RelationshipKey)
}

func TestDetectIgnoreHidden(t *testing.T) {
	source := ordersModel("sales")
	target := ordersModel("sales")
	source.Tables[0].Columns[1].IsHidden = true
	// Target lacks the hidden column entirely.
	target.Tables[0].Columns = target.Tables[0].Columns[:1]

	t.Run("hidden entities excluded from comparison", func(t *testing.T) {
		d := &Detector{IgnoreHidden: true}
		report := d.Detect(source, target)
		assert.False(t, report.HasChanges())
	})

	t.Run("default includes hidden entities", func(t *testing.T) {
		report := NewDetector().Detect(source, target)
		require.Len(t, report.Changes, 1)
		assert.Equal(t, Added, report.Changes[0].Type)
	})

	t.Run("hidden table never compared", func(t *testing.T) {
		source := ordersModel("sales")
		source.Tables[0].IsHidden = true
		target := &model.Model{Name: "sales"}
		d := &Detector{IgnoreHidden: true}
		report := d.Detect(source, target)
		for _, c := range report.Changes {
			assert.NotEqual(t, EntityTable, c.Entity)
			assert.NotEqual(t, EntityColumn, c.Entity)
		}
	})
}

func TestReportViews(t *testing.T) {
	report := &Report{
		Changes: []Change{
			{Type: Added, Entity: EntityTable, EntityName: "a"},
			{Type: Modified, Entity: EntityColumn, EntityName: "b"},
			{Type: Removed, Entity: EntityMeasure, EntityName: "c"},
			{Type: Modified, Entity: EntityTable, EntityName: "d"},
		},
	}
	assert.Len(t, report.Additions(), 1)
	assert.Len(t, report.Modifications(), 2)
	assert.Len(t, report.Removals(), 1)
	summary := report.Summarize()
	assert.Equal(t, Summary{Added: 1, Modified: 2, Removed: 1, Total: 4}, summary)
}
