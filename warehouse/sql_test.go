package warehouse

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semasync/logger"
	"semasync/model"
)

func ordersTable() model.Table {
	return model.Table{
		Name:        "orders",
		Description: "Order facts",
		Columns: []model.Column{
			{Name: "OrderID", DataType: "Int64", NormalizedType: model.TypeInteger, Description: "Primary key"},
			{Name: "Total", DataType: "Decimal", NormalizedType: model.TypeDecimal, IsNullable: true},
			{Name: "Secret", DataType: "String", NormalizedType: model.TypeString, IsNullable: true, IsHidden: true},
		},
	}
}

func TestBuildCreateTable(t *testing.T) {
	stmt := buildCreateTable("analytics", ordersTable())
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "analytics"."orders" ("OrderID" INTEGER NOT NULL, "Total" NUMERIC, "Secret" VARCHAR);`,
		stmt)
}

func TestBuildAddColumnStaysNullable(t *testing.T) {
	stmt := buildAddColumn("public", "orders", model.Column{
		Name:           "placed_at",
		NormalizedType: model.TypeDateTime,
	})
	assert.Equal(t, `ALTER TABLE "public"."orders" ADD COLUMN IF NOT EXISTS "placed_at" TIMESTAMP;`, stmt)
}

func TestBuildCreateTableNormalizesWhenUnset(t *testing.T) {
	stmt := buildCreateTable("public", model.Table{
		Name:    "events",
		Columns: []model.Column{{Name: "payload", DataType: "JSONB", IsNullable: true}},
	})
	assert.Contains(t, stmt, `"payload" JSONB`)
}

func TestEscapeComment(t *testing.T) {
	assert.Equal(t, "O''Brien''s orders", escapeComment("O'Brien's orders"))
	assert.Equal(t, "line one line two", escapeComment("line one\nline two"))

	long := strings.Repeat("x", maxCommentLen+500)
	assert.Len(t, escapeComment(long), maxCommentLen)
}

func TestColumnCommentRoundTrip(t *testing.T) {
	c := model.Column{
		Name:        "Secret",
		DataType:    "String",
		Description: "internal use",
		IsHidden:    true,
	}
	comment := columnComment(c)
	assert.Equal(t, "internal use | [Type: String] | [Hidden]", comment)

	description, hidden := parseComment(comment)
	assert.Equal(t, "internal use", description)
	assert.True(t, hidden)
}

func TestParseCommentKeepsForeignText(t *testing.T) {
	description, hidden := parseComment("hand-written comment | with a pipe")
	assert.Equal(t, "hand-written comment | with a pipe", description)
	assert.False(t, hidden)

	description, hidden = parseComment("")
	assert.Empty(t, description)
	assert.False(t, hidden)
}

func TestMetadataComment(t *testing.T) {
	comment, ok := metadataComment(map[string]string{
		"description": "net of tax",
		"data_type":   "Decimal",
		"is_hidden":   "false",
	})
	require.True(t, ok)
	assert.Equal(t, "net of tax | [Type: Decimal]", comment)

	comment, ok = metadataComment(map[string]string{"is_hidden": "true"})
	require.True(t, ok)
	assert.Equal(t, "[Hidden]", comment)

	_, ok = metadataComment(map[string]string{"format_string": "0.00"})
	assert.False(t, ok)
}

type fakeExecer struct {
	statements []string
	failOn     string
}

func (f *fakeExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.failOn != "" && strings.Contains(sql, f.failOn) {
		return pgconn.CommandTag{}, errors.New("syntax error")
	}
	f.statements = append(f.statements, sql)
	return pgconn.CommandTag{}, nil
}

func TestWriterAddTable(t *testing.T) {
	run := &fakeExecer{}
	w := writer{run: run, schema: "analytics", log: logger.Nop()}

	err := w.addTable(context.Background(), ordersTable())
	require.NoError(t, err)
	require.Len(t, run.statements, 5)
	assert.Contains(t, run.statements[0], `CREATE TABLE IF NOT EXISTS "analytics"."orders"`)
	assert.Equal(t, `COMMENT ON TABLE "analytics"."orders" IS 'Order facts';`, run.statements[1])
	assert.Equal(t, `COMMENT ON COLUMN "analytics"."orders"."OrderID" IS 'Primary key | [Type: Int64]';`, run.statements[2])
	assert.Equal(t, `COMMENT ON COLUMN "analytics"."orders"."Secret" IS '[Type: String] | [Hidden]';`, run.statements[4])
}

func TestWriterUpdateTableAddsColumnsAndComments(t *testing.T) {
	run := &fakeExecer{}
	w := writer{run: run, schema: "public", log: logger.Nop()}

	def := model.Table{Name: "orders", Columns: []model.Column{
		{Name: "Total", DataType: "Decimal", NormalizedType: model.TypeDecimal, IsNullable: true},
	}}
	err := w.updateTable(context.Background(), "orders", def)
	require.NoError(t, err)
	require.Len(t, run.statements, 2)
	assert.Equal(t, `ALTER TABLE "public"."orders" ADD COLUMN IF NOT EXISTS "Total" NUMERIC;`, run.statements[0])
	assert.Equal(t, `COMMENT ON COLUMN "public"."orders"."Total" IS '[Type: Decimal]';`, run.statements[1])
}

func TestWriterUpdateColumnMetadata(t *testing.T) {
	run := &fakeExecer{}
	w := writer{run: run, schema: "public", log: logger.Nop()}

	err := w.updateColumnMetadata(context.Background(), "orders", "Total", map[string]string{
		"description": "net of tax",
	})
	require.NoError(t, err)
	require.Len(t, run.statements, 1)
	assert.Equal(t, `COMMENT ON COLUMN "public"."orders"."Total" IS 'net of tax';`, run.statements[0])

	err = w.updateColumnMetadata(context.Background(), "orders", "Total", map[string]string{
		"format_string": "#,0.00",
	})
	require.NoError(t, err)
	assert.Len(t, run.statements, 1)
}

func TestWriterStopsOnFirstFailure(t *testing.T) {
	run := &fakeExecer{failOn: "COMMENT ON TABLE"}
	w := writer{run: run, schema: "public", log: logger.Nop()}

	err := w.addTable(context.Background(), ordersTable())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commenting table orders")
	assert.Len(t, run.statements, 1)
}
