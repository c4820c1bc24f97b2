package snapshot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semasync/errs"
	"semasync/logger"
	"semasync/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "snapshots.db"), logger.Nop())
	require.NoError(t, err)
	return s
}

func sampleModel(name string) *model.Model {
	return &model.Model{
		Name:        name,
		Source:      "powerbi",
		Description: "Sales analytics",
		Tables: []model.Table{
			{
				Name:        "orders",
				Description: "Order facts",
				Columns: []model.Column{
					{Name: "order_id", DataType: "Int64", NormalizedType: model.TypeInteger},
					{Name: "total", DataType: "Decimal", NormalizedType: model.TypeDecimal, IsNullable: true, FormatString: "#,0.00"},
				},
			},
		},
		Measures: []model.Measure{
			{Name: "Total Sales", Expression: "SUM(orders[total])", TableName: "orders"},
		},
		Relationships: []model.Relationship{
			model.NewRelationship("r1", "orders", "customer_id", "customers", "customer_id"),
		},
		Metadata:    map[string]string{"workspace": "demo"},
		ExtractedAt: time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC),
		Version:     "v1",
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	original := sampleModel("sales")

	id, err := s.CreateSnapshot(ctx, original, "pre-sync")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	restored, err := s.Restore(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, original, restored)

	info, err := s.GetLatest(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, id, info.SnapshotID)
	assert.Equal(t, "sales", info.ModelName)
	assert.Equal(t, "powerbi", info.Source)
	assert.Equal(t, "pre-sync", info.Description)
	assert.Equal(t, 1, info.TablesCount)
	assert.Equal(t, 2, info.ColumnsCount)
	assert.Equal(t, 1, info.MeasuresCount)
}

func TestRestoreUnknownSnapshot(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Restore(context.Background(), "no-such-id")
	require.Error(t, err)
	assert.True(t, errs.NotFound(err))
}

func TestIdenticalContentMakesDistinctSnapshots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := sampleModel("sales")

	first, err := s.CreateSnapshot(ctx, m, "")
	require.NoError(t, err)
	second, err := s.CreateSnapshot(ctx, m, "")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	infos, err := s.ListSnapshots(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestListSnapshotsOrderAndFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateSnapshot(ctx, sampleModel("sales"), "")
	require.NoError(t, err)
	_, err = s.CreateSnapshot(ctx, sampleModel("finance"), "")
	require.NoError(t, err)
	third, err := s.CreateSnapshot(ctx, sampleModel("sales"), "")
	require.NoError(t, err)

	all, err := s.ListSnapshots(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, third, all[0].SnapshotID)
	assert.Equal(t, first, all[2].SnapshotID)

	sales, err := s.ListSnapshots(ctx, "sales", 10)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, third, sales[0].SnapshotID)

	limited, err := s.ListSnapshots(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGetLatestWithFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	none, err := s.GetLatest(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = s.CreateSnapshot(ctx, sampleModel("sales"), "")
	require.NoError(t, err)
	financeID, err := s.CreateSnapshot(ctx, sampleModel("finance"), "")
	require.NoError(t, err)

	latest, err := s.GetLatest(ctx, "finance")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, financeID, latest.SnapshotID)

	missing, err := s.GetLatest(ctx, "marketing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDeleteSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateSnapshot(ctx, sampleModel("sales"), "")
	require.NoError(t, err)

	deleted, err := s.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	again, err := s.Delete(ctx, id)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestCleanupKeepLast(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		id, err := s.CreateSnapshot(ctx, sampleModel("sales"), "")
		require.NoError(t, err)
		ids = append(ids, id)
	}

	deleted, err := s.CleanupKeepLast(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	remaining, err := s.ListSnapshots(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, ids[4], remaining[0].SnapshotID)
	assert.Equal(t, ids[3], remaining[1].SnapshotID)

	t.Run("keep zero deletes everything", func(t *testing.T) {
		deleted, err := s.CleanupKeepLast(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)
	})
}

func TestSyncHistoryLedger(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snapID, err := s.CreateSnapshot(ctx, sampleModel("sales"), "pre-sync")
	require.NoError(t, err)

	started := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	completed := started.Add(42 * time.Second)
	_, err = s.RecordSync(ctx, SyncRecord{
		SnapshotID:     &snapID,
		Direction:      "model-to-warehouse",
		Status:         "success",
		StartedAt:      started,
		CompletedAt:    &completed,
		ChangesApplied: 7,
	})
	require.NoError(t, err)

	failMsg := "target unreachable"
	_, err = s.RecordSync(ctx, SyncRecord{
		Direction:    "warehouse-to-model",
		Status:       "failed",
		StartedAt:    started.Add(time.Hour),
		Errors:       1,
		ErrorMessage: &failMsg,
	})
	require.NoError(t, err)

	records, err := s.ListHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.Equal(t, "failed", records[0].Status)
	assert.Nil(t, records[0].SnapshotID)
	require.NotNil(t, records[0].ErrorMessage)
	assert.Equal(t, failMsg, *records[0].ErrorMessage)

	assert.Equal(t, "success", records[1].Status)
	require.NotNil(t, records[1].SnapshotID)
	assert.Equal(t, snapID, *records[1].SnapshotID)
	require.NotNil(t, records[1].CompletedAt)
	assert.True(t, records[1].CompletedAt.Equal(completed))
	assert.Equal(t, 7, records[1].ChangesApplied)

	t.Run("history survives snapshot deletion", func(t *testing.T) {
		deleted, err := s.Delete(ctx, snapID)
		require.NoError(t, err)
		require.True(t, deleted)

		records, err := s.ListHistory(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})
}
