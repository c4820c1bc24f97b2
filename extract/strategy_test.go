package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semasync/errs"
	"semasync/logger"
	"semasync/model"
	"semasync/registry"
)

type fakeSource struct {
	platform         string
	tables           []TableInfo
	tablesErr        error
	columns          map[string][]ColumnInfo
	columnErr        map[string]error
	measures         []MeasureInfo
	measuresErr      error
	relationships    []RelationshipInfo
	relationshipsErr error
	measureCalls     int
}

func (f *fakeSource) Platform() string { return f.platform }

func (f *fakeSource) ListTables(ctx context.Context) ([]TableInfo, error) {
	return f.tables, f.tablesErr
}

func (f *fakeSource) ListColumns(ctx context.Context, tableID string) ([]ColumnInfo, error) {
	if err, ok := f.columnErr[tableID]; ok {
		return nil, err
	}
	return f.columns[tableID], nil
}

func (f *fakeSource) ListMeasures(ctx context.Context) ([]MeasureInfo, error) {
	f.measureCalls++
	return f.measures, f.measuresErr
}

func (f *fakeSource) ListRelationships(ctx context.Context) ([]RelationshipInfo, error) {
	return f.relationships, f.relationshipsErr
}

type fakeSampler struct {
	rows map[string][]map[string]any
	err  error
}

func (f *fakeSampler) SampleRows(ctx context.Context, tableName string, limit int) ([]map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[tableName], nil
}

func TestDirectStrategy(t *testing.T) {
	src := &fakeSource{
		platform: "postgres",
		tables: []TableInfo{
			{ID: "orders", Name: "orders", Description: "Order facts"},
			{ID: "audit", Name: "audit", IsHidden: true},
		},
		columns: map[string][]ColumnInfo{
			"orders": {
				{Name: "order_id", DataType: "BIGINT"},
				{Name: "total", DataType: "NUMERIC(10,2)", IsNullable: true},
			},
			"audit": {
				{Name: "entry", DataType: "TEXT", IsNullable: true},
			},
		},
	}
	s := NewDirectStrategy(src, logger.Nop())
	assert.Equal(t, "direct", s.Name())

	m, err := s.TryExtract(context.Background(), SourceRef{Name: "sales"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", m.Source)
	require.Len(t, m.Tables, 2)

	orders := m.GetTable("orders")
	require.NotNil(t, orders)
	assert.Equal(t, "Order facts", orders.Description)
	require.Len(t, orders.Columns, 2)
	assert.Equal(t, model.TypeInteger, orders.Columns[0].NormalizedType)
	assert.Equal(t, model.TypeDecimal, orders.Columns[1].NormalizedType)
	assert.Equal(t, "BIGINT", orders.Columns[0].DataType)

	audit := m.GetTable("audit")
	require.NotNil(t, audit)
	assert.True(t, audit.IsHidden)
}

func TestDirectStrategySkipsTableWhenColumnsFail(t *testing.T) {
	src := &fakeSource{
		platform: "postgres",
		tables: []TableInfo{
			{ID: "orders", Name: "orders"},
			{ID: "broken", Name: "broken"},
		},
		columns: map[string][]ColumnInfo{
			"orders": {{Name: "order_id", DataType: "BIGINT"}},
		},
		columnErr: map[string]error{"broken": errors.New("permission denied")},
	}
	s := NewDirectStrategy(src, logger.Nop())

	m, err := s.TryExtract(context.Background(), SourceRef{Name: "sales"})
	require.NoError(t, err)
	require.Len(t, m.Tables, 1)
	assert.Equal(t, "orders", m.Tables[0].Name)
}

func TestDirectStrategyPropagatesListingFailure(t *testing.T) {
	src := &fakeSource{tablesErr: errors.New("connection refused")}
	s := NewDirectStrategy(src, logger.Nop())

	_, err := s.TryExtract(context.Background(), SourceRef{Name: "sales"})
	assert.Error(t, err)
}

func TestRegistryStrategy(t *testing.T) {
	dir := t.TempDir()
	def := `description: Finance manual definition
tables:
  - name: budget
    columns:
      - name: amount
        dataType: Decimal
        isNullable: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "finance.yaml"), []byte(def), 0o644))

	reg, err := registry.New(dir, logger.Nop())
	require.NoError(t, err)
	s := NewRegistryStrategy(reg, logger.Nop())
	assert.Equal(t, "registry", s.Name())

	t.Run("serves definition case-insensitively", func(t *testing.T) {
		m, err := s.TryExtract(context.Background(), SourceRef{Name: "Finance"})
		require.NoError(t, err)
		assert.Equal(t, "Finance manual definition", m.Description)
		require.Len(t, m.Tables, 1)
		require.Len(t, m.Tables[0].Columns, 1)
		assert.Equal(t, model.TypeDecimal, m.Tables[0].Columns[0].NormalizedType)
		assert.False(t, m.Tables[0].Columns[0].IsNullable)
	})

	t.Run("unknown model is not found", func(t *testing.T) {
		_, err := s.TryExtract(context.Background(), SourceRef{Name: "ghost"})
		assert.True(t, errs.NotFound(err))
	})
}

func TestSampleStrategyInfersTypes(t *testing.T) {
	src := &fakeSource{
		platform: "powerbi",
		tables:   []TableInfo{{ID: "orders", Name: "orders"}},
	}
	sampler := &fakeSampler{rows: map[string][]map[string]any{
		"orders": {
			{
				"orders[OrderID]": float64(7),
				"orders[Total]":   12.5,
				"orders[Active]":  true,
				"orders[Note]":    nil,
				"orders[Ghost]":   nil,
			},
			{
				"orders[Note]":  "rush",
				"orders[Ghost]": nil,
			},
		},
	}}
	s := NewSampleStrategy(src, sampler, logger.Nop())
	assert.Equal(t, "sample", s.Name())

	m, err := s.TryExtract(context.Background(), SourceRef{Name: "sales"})
	require.NoError(t, err)
	require.Len(t, m.Tables, 1)

	cols := m.Tables[0].Columns
	require.Len(t, cols, 5)
	byName := map[string]model.Column{}
	for _, c := range cols {
		byName[c.Name] = c
		assert.True(t, c.IsNullable)
		assert.Equal(t, inferredNote, c.Description)
	}
	assert.Equal(t, model.TypeInteger, byName["OrderID"].NormalizedType)
	assert.Equal(t, model.TypeFloat, byName["Total"].NormalizedType)
	assert.Equal(t, model.TypeBoolean, byName["Active"].NormalizedType)
	assert.Equal(t, model.TypeString, byName["Note"].NormalizedType)
	assert.Equal(t, model.TypeString, byName["Ghost"].NormalizedType)

	// Sorted by name so repeat runs produce identical models.
	assert.Equal(t, "Active", cols[0].Name)
	assert.Equal(t, "Total", cols[4].Name)
}

func TestSampleStrategySkipsTablesWithoutRows(t *testing.T) {
	src := &fakeSource{
		platform: "powerbi",
		tables:   []TableInfo{{ID: "empty", Name: "empty"}},
	}
	s := NewSampleStrategy(src, &fakeSampler{}, logger.Nop())

	m, err := s.TryExtract(context.Background(), SourceRef{Name: "sales"})
	require.NoError(t, err)
	assert.Empty(t, m.Tables)
}
