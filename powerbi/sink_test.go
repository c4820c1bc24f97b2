package powerbi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semasync/errs"
	"semasync/logger"
	"semasync/model"
)

func TestSinkAddTableCanonicalizesTypes(t *testing.T) {
	var got Table
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/groups/ws-1/datasets/ds-1/tables/reps", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	sink := NewSink(c, Dataset{ID: "ds-1", Name: "Sales Model"}, logger.Nop())

	err := sink.AddTable(context.Background(), model.Table{
		Name: "reps",
		Columns: []model.Column{
			{Name: "rep_id", DataType: "BIGINT"},
			{Name: "name", DataType: "character varying(120)"},
			{Name: "hired_on", DataType: "timestamp without time zone"},
		},
	})
	require.NoError(t, err)

	require.Len(t, got.Columns, 3)
	assert.Equal(t, "Int64", got.Columns[0].DataType)
	assert.Equal(t, "String", got.Columns[1].DataType)
	assert.Equal(t, "DateTime", got.Columns[2].DataType)
}

func TestSinkUpdateTableUsesGivenName(t *testing.T) {
	var got Table
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/groups/ws-1/datasets/ds-1/tables/Orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	sink := NewSink(c, Dataset{ID: "ds-1"}, logger.Nop())

	err := sink.UpdateTable(context.Background(), "Orders", model.Table{
		Name:    "orders",
		Columns: []model.Column{{Name: "OrderID", DataType: "Int64"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Orders", got.Name)
}

func TestSinkColumnMetadataNotSupported(t *testing.T) {
	sink := NewSink(nil, Dataset{ID: "ds-1"}, logger.Nop())
	err := sink.UpdateColumnMetadata(context.Background(), "orders", "Total", map[string]string{
		"description": "Order total",
	})
	require.True(t, errs.NotSupported(err))
}

func TestSinkGetTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"value":[{"name":"orders","columns":[{"name":"OrderID","dataType":"Int64"}]}]}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	sink := NewSink(c, Dataset{ID: "ds-1"}, logger.Nop())

	tbl, err := sink.GetTable(context.Background(), "ORDERS")
	require.NoError(t, err)
	assert.Equal(t, "orders", tbl.Name)
	require.Len(t, tbl.Columns, 1)
	assert.Equal(t, model.TypeInteger, tbl.Columns[0].NormalizedType)

	_, err = sink.GetTable(context.Background(), "ghost")
	require.True(t, errs.NotFound(err))
}
