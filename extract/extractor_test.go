package extract

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semasync/errs"
	"semasync/logger"
	"semasync/model"
)

type fakeStrategy struct {
	name   string
	result *model.Model
	err    error
	calls  int
}

func (s *fakeStrategy) Name() string { return s.name }

func (s *fakeStrategy) TryExtract(ctx context.Context, ref SourceRef) (*model.Model, error) {
	s.calls++
	return s.result, s.err
}

func usableModel(table string) *model.Model {
	return &model.Model{Tables: []model.Table{{
		Name:    table,
		Columns: []model.Column{{Name: "id", NormalizedType: model.TypeInteger}},
	}}}
}

func TestExtractorUsesFirstUsableResult(t *testing.T) {
	first := &fakeStrategy{name: "direct", result: usableModel("orders")}
	second := &fakeStrategy{name: "registry", result: usableModel("other")}
	e := NewExtractor(SourceRef{Name: "sales", ID: "ds-1"}, "powerbi", []Strategy{first, second}, nil, logger.Nop())

	m, err := e.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls)

	assert.Equal(t, "sales", m.Name)
	assert.Equal(t, "powerbi", m.Source)
	assert.False(t, m.ExtractedAt.IsZero())
	assert.Equal(t, "direct", m.Metadata[MetadataKeyStrategy])
	assert.Equal(t, "ds-1", m.Metadata["source_id"])
}

func TestExtractorAdvancesPastFailures(t *testing.T) {
	failing := &fakeStrategy{name: "direct", err: errors.New("403 denied")}
	hollow := &fakeStrategy{name: "dmv", result: &model.Model{
		Tables: []model.Table{{Name: "orders"}, {Name: "customers"}},
	}}
	winning := &fakeStrategy{name: "registry", result: usableModel("orders")}
	e := NewExtractor(SourceRef{Name: "sales"}, "powerbi", []Strategy{failing, hollow, winning}, nil, logger.Nop())

	m, err := e.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, hollow.calls)
	assert.Equal(t, 1, winning.calls)

	// The result is the winning strategy's model alone; the hollow tables
	// from the earlier attempt are nowhere in it.
	require.Len(t, m.Tables, 1)
	assert.Equal(t, "orders", m.Tables[0].Name)
	assert.Equal(t, "registry", m.Metadata[MetadataKeyStrategy])
}

func TestExtractorExhaustionReportsNotFound(t *testing.T) {
	e := NewExtractor(SourceRef{Name: "sales"}, "powerbi", []Strategy{
		&fakeStrategy{name: "direct", err: errors.New("boom")},
		&fakeStrategy{name: "registry", result: &model.Model{}},
	}, nil, logger.Nop())

	_, err := e.Extract(context.Background())
	require.Error(t, err)
	assert.True(t, errs.NotFound(err))
}

func TestExtractorEnrichesFromMetadataSource(t *testing.T) {
	metadata := &fakeSource{
		platform: "powerbi",
		measures: []MeasureInfo{{Name: "Total Sales", Expression: "SUM(orders[Total])", TableName: "orders"}},
		relationships: []RelationshipInfo{{
			Name:       "orders_customers",
			FromTable:  "orders",
			FromColumn: "CustomerID",
			ToTable:    "customers",
			ToColumn:   "CustomerID",
			IsActive:   true,
		}},
	}

	t.Run("attaches when strategy produced none", func(t *testing.T) {
		winning := &fakeStrategy{name: "dmv", result: usableModel("orders")}
		e := NewExtractor(SourceRef{Name: "sales"}, "powerbi", []Strategy{winning}, metadata, logger.Nop())

		m, err := e.Extract(context.Background())
		require.NoError(t, err)
		require.Len(t, m.Measures, 1)
		assert.Equal(t, "Total Sales", m.Measures[0].Name)
		require.Len(t, m.Relationships, 1)
		assert.Equal(t, model.DefaultCardinality, m.Relationships[0].Cardinality)
		assert.Equal(t, model.DefaultCrossFilterDirection, m.Relationships[0].CrossFilterDirection)
	})

	t.Run("keeps measures the strategy already found", func(t *testing.T) {
		withMeasures := usableModel("orders")
		withMeasures.Measures = []model.Measure{{Name: "Existing", Expression: "1"}}
		winning := &fakeStrategy{name: "direct", result: withMeasures}

		metadata.measureCalls = 0
		e := NewExtractor(SourceRef{Name: "sales"}, "powerbi", []Strategy{winning}, metadata, logger.Nop())

		m, err := e.Extract(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, metadata.measureCalls)
		require.Len(t, m.Measures, 1)
		assert.Equal(t, "Existing", m.Measures[0].Name)
	})
}

func TestExtractorToleratesUnsupportedMetadata(t *testing.T) {
	metadata := &fakeSource{
		platform:         "postgres",
		measuresErr:      fmt.Errorf("warehouse measures: %w", errs.ErrNotSupported),
		relationshipsErr: fmt.Errorf("warehouse relationships: %w", errs.ErrNotSupported),
	}
	winning := &fakeStrategy{name: "direct", result: usableModel("orders")}
	e := NewExtractor(SourceRef{Name: "analytics"}, "postgres", []Strategy{winning}, metadata, logger.Nop())

	m, err := e.Extract(context.Background())
	require.NoError(t, err)
	assert.Empty(t, m.Measures)
	assert.Empty(t, m.Relationships)
}

func TestExtractorHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	strat := &fakeStrategy{name: "direct", result: usableModel("orders")}
	e := NewExtractor(SourceRef{Name: "sales"}, "powerbi", []Strategy{strat}, nil, logger.Nop())

	_, err := e.Extract(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, strat.calls)
}
