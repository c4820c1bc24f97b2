package powerbi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semasync/auth"
	"semasync/config"
	"semasync/errs"
	"semasync/logger"
)

type fakeCreds struct {
	token     string
	calls     int
	refreshes int
}

func (f *fakeCreds) GetToken(_ context.Context, force bool) (string, error) {
	f.calls++
	if force {
		f.refreshes++
	}
	return f.token, nil
}

func newTestClient(serverURL string) (*Client, *fakeCreds) {
	cfg := &config.Config{
		APIBaseURL:     serverURL,
		WorkspaceID:    "ws-1",
		RequestTimeout: 5 * time.Second,
	}
	creds := &fakeCreds{token: "tok-1"}
	c := NewClient(cfg, creds, logger.Nop())
	c.Retry = auth.RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond}
	return c, creds
}

func TestGetTablesDecodesSchema(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/groups/ws-1/datasets/ds-1/tables", r.URL.Path)
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"value":[{"name":"orders","columns":[{"name":"OrderID","dataType":"Int64"},{"name":"Total","dataType":"Decimal","isNullable":false}]}]}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	tables, err := c.GetTables(context.Background(), "ds-1")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "orders", tables[0].Name)
	require.Len(t, tables[0].Columns, 2)
	assert.Nil(t, tables[0].Columns[0].IsNullable)
	require.NotNil(t, tables[0].Columns[1].IsNullable)
	assert.False(t, *tables[0].Columns[1].IsNullable)
}

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		headers  map[string]string
		body     string
		wantHits int
		check    func(t *testing.T, err error)
	}{
		{
			name:     "unauthorized is retried once then surfaces",
			status:   http.StatusUnauthorized,
			body:     `{"error":{"code":"TokenExpired"}}`,
			wantHits: 2,
			check: func(t *testing.T, err error) {
				require.True(t, errs.AuthFailure(err))
			},
		},
		{
			name:     "forbidden maps to an authentication failure",
			status:   http.StatusForbidden,
			wantHits: 2,
			check: func(t *testing.T, err error) {
				require.True(t, errs.AuthFailure(err))
			},
		},
		{
			name:     "not found",
			status:   http.StatusNotFound,
			wantHits: 1,
			check: func(t *testing.T, err error) {
				require.True(t, errs.NotFound(err))
			},
		},
		{
			name:     "rate limited carries the retry-after hint",
			status:   http.StatusTooManyRequests,
			headers:  map[string]string{"Retry-After": "120"},
			wantHits: 1,
			check: func(t *testing.T, err error) {
				var rl *errs.RateLimitError
				require.True(t, errors.As(err, &rl))
				assert.Equal(t, 2*time.Minute, rl.RetryAfter)
			},
		},
		{
			name:     "rate limited without header defaults to a minute",
			status:   http.StatusTooManyRequests,
			wantHits: 1,
			check: func(t *testing.T, err error) {
				var rl *errs.RateLimitError
				require.True(t, errors.As(err, &rl))
				assert.Equal(t, time.Minute, rl.RetryAfter)
			},
		},
		{
			name:     "server error includes the response body",
			status:   http.StatusInternalServerError,
			body:     "upstream exploded",
			wantHits: 1,
			check: func(t *testing.T, err error) {
				var ce *errs.ConnectionError
				require.True(t, errors.As(err, &ce))
				assert.Contains(t, err.Error(), "500")
				assert.Contains(t, err.Error(), "upstream exploded")
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hits := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits++
				for k, v := range tc.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			c, _ := newTestClient(srv.URL)
			_, err := c.GetTables(context.Background(), "ds-1")
			require.Error(t, err)
			tc.check(t, err)
			assert.Equal(t, tc.wantHits, hits)
		})
	}
}

func TestAuthRetryRecovers(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"value":[]}`)
	}))
	defer srv.Close()

	c, creds := newTestClient(srv.URL)
	tables, err := c.GetTables(context.Background(), "ds-1")
	require.NoError(t, err)
	assert.Empty(t, tables)
	assert.Equal(t, 2, hits)
	assert.Equal(t, 2, creds.calls)
	assert.Equal(t, 1, creds.refreshes, "second attempt must force a token refresh")
}

func TestResolveDataset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/groups/ws-1/datasets", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"value":[{"id":"abc-123","name":"Sales Model","addRowsAPIEnabled":true},{"id":"def-456","name":"Finance"}]}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)

	t.Run("matches case-insensitively", func(t *testing.T) {
		ds, err := c.ResolveDataset(context.Background(), "sales model")
		require.NoError(t, err)
		assert.Equal(t, "abc-123", ds.ID)
		assert.Equal(t, "push", ds.DatasetType())
	})

	t.Run("import dataset type", func(t *testing.T) {
		ds, err := c.ResolveDataset(context.Background(), "Finance")
		require.NoError(t, err)
		assert.Equal(t, "import", ds.DatasetType())
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := c.ResolveDataset(context.Background(), "missing")
		require.True(t, errs.NotFound(err))
	})
}

func TestExecuteQueryParsesRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/groups/ws-1/datasets/ds-1/executeQueries", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req queryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Queries, 1)
		assert.Equal(t, "EVALUATE INFO.TABLES()", req.Queries[0].Query)
		assert.True(t, req.SerializerSettings.IncludeNulls)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"results":[{"tables":[{"rows":[{"[Name]":"orders"},{"[Name]":"customers"}]}]}]}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	rows, err := c.ExecuteQuery(context.Background(), "ds-1", "EVALUATE INFO.TABLES()")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "orders", rows[0]["[Name]"])
}

func TestCreatePushDataset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/groups/ws-1/datasets", r.URL.Path)

		var req createDatasetRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Sales Model", req.Name)
		assert.Equal(t, "Push", req.DefaultMode)
		require.Len(t, req.Tables, 1)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"new-id","name":"Sales Model"}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	ds, err := c.CreatePushDataset(context.Background(), "Sales Model", []Table{
		{Name: "orders", Columns: []Column{{Name: "OrderID", DataType: "Int64"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "new-id", ds.ID)
}

func TestPutTableEncodesNameAndAcceptsNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/groups/ws-1/datasets/ds-1/tables/Sales Reps", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	err := c.PutTable(context.Background(), "ds-1", Table{
		Name:    "Sales Reps",
		Columns: []Column{{Name: "rep_id", DataType: "Int64"}},
	})
	require.NoError(t, err)
}
