package redshift_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/statsql/internal/testutil"
	"github.com/ethpandaops/statsql/pkg/cache"
	"github.com/ethpandaops/statsql/pkg/query"
	"github.com/ethpandaops/statsql/pkg/redshift"
	"github.com/ethpandaops/statsql/pkg/redshift/redshifttest"
)

var (
	errBoom       = errors.New("boom")
	errConnClosed = errors.New("conn closed")
)

func newTestLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func newTestCache(t *testing.T) *cache.ResultCache {
	t.Helper()

	mr, client := testutil.NewMiniredisClient(t)

	return cache.New(newTestLogger(), client, &cache.Config{
		Enabled: true,
		Address: mr.Addr(),
		Prefix:  "test",
		TTL:     time.Hour,
	})
}

func TestClient_ExecuteQuery(t *testing.T) {
	pool := redshifttest.NewFakePool(
		[]string{"account_id", "clicks"},
		[]any{int64(1), int64(10)},
		[]any{int64(2), int64(20)},
	)
	client := redshift.NewClient(newTestLogger(), pool, nil, &redshift.Config{})

	result, err := client.ExecuteQuery(context.Background(), &redshift.Query{
		Name:   "stats",
		SQL:    "SELECT account_id, clicks FROM t WHERE account_id IN (%s,%s)",
		Params: []any{1, 2},
	})
	require.NoError(t, err)

	assert.False(t, result.Cached)
	assert.Equal(t, []string{"account_id", "clicks"}, result.Columns)
	assert.Equal(t, []map[string]any{
		{"account_id": int64(1), "clicks": int64(10)},
		{"account_id": int64(2), "clicks": int64(20)},
	}, result.Rows)
	assert.Equal(t, [][]any{{int64(1), int64(10)}, {int64(2), int64(20)}}, result.Tuples())

	queries := pool.Queries()
	require.Len(t, queries, 1)
	assert.Equal(t, "SELECT account_id, clicks FROM t WHERE account_id IN ($1,$2)", queries[0].SQL)
	assert.Equal(t, []any{1, 2}, queries[0].Args)

	assert.Equal(t, 1, pool.Acquired())
	assert.Equal(t, 1, pool.Released())
}

func TestClient_ExecuteQuery_EmptyResult(t *testing.T) {
	pool := redshifttest.NewFakePool([]string{"a"})
	client := redshift.NewClient(newTestLogger(), pool, nil, &redshift.Config{})

	result, err := client.ExecuteQuery(context.Background(), &redshift.Query{Name: "empty", SQL: "SELECT a FROM t"})
	require.NoError(t, err)
	assert.NotNil(t, result.Rows)
	assert.Equal(t, 0, result.Len())
}

func TestClient_ExecuteQuery_CachedOnce(t *testing.T) {
	pool := redshifttest.NewFakePool([]string{"a", "b"}, []any{int64(1), "x"})
	client := redshift.NewClient(newTestLogger(), pool, newTestCache(t), &redshift.Config{})

	q := &redshift.Query{
		Name:      "stats",
		SQL:       "SELECT a, b FROM t WHERE a=%s",
		Params:    []any{1},
		CacheName: "x",
	}

	first, err := client.ExecuteQuery(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := client.ExecuteQuery(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, second.Cached)

	// the warehouse was hit exactly once
	assert.Len(t, pool.Queries(), 1)
	assert.Equal(t, 1, pool.Acquired())

	assert.Equal(t, first.Columns, second.Columns)
	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, []map[string]any{{"a": json.Number("1"), "b": "x"}}, second.Rows)
}

func TestClient_ExecuteQuery_WhitespaceSharesCache(t *testing.T) {
	pool := redshifttest.NewFakePool([]string{"a"}, []any{int64(1)})
	client := redshift.NewClient(newTestLogger(), pool, newTestCache(t), &redshift.Config{})

	_, err := client.ExecuteQuery(context.Background(), &redshift.Query{
		Name: "stats", SQL: "SELECT a FROM t WHERE a=%s", Params: []any{1}, CacheName: "x",
	})
	require.NoError(t, err)

	result, err := client.ExecuteQuery(context.Background(), &redshift.Query{
		Name: "stats", SQL: "select a\n  from t\n  where a=%s", Params: []any{1}, CacheName: "x",
	})
	require.NoError(t, err)

	assert.True(t, result.Cached)
	assert.Len(t, pool.Queries(), 1)
}

func TestClient_ExecuteQuery_Refresh(t *testing.T) {
	pool := redshifttest.NewFakePool([]string{"a"}, []any{int64(1)})
	client := redshift.NewClient(newTestLogger(), pool, newTestCache(t), &redshift.Config{})

	q := &redshift.Query{Name: "stats", SQL: "SELECT a FROM t", CacheName: "x"}

	_, err := client.ExecuteQuery(context.Background(), q)
	require.NoError(t, err)

	pool.Rows = [][]any{{int64(2)}}

	refreshed, err := client.ExecuteQuery(context.Background(), &redshift.Query{
		Name: q.Name, SQL: q.SQL, CacheName: q.CacheName, Refresh: true,
	})
	require.NoError(t, err)
	assert.False(t, refreshed.Cached)

	cached, err := client.ExecuteQuery(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, []map[string]any{{"a": json.Number("2")}}, cached.Rows)

	assert.Len(t, pool.Queries(), 2)
}

func TestClient_ExecuteQuery_CacheUnavailable(t *testing.T) {
	mr, redisClient := testutil.NewMiniredisClient(t)
	store := cache.New(newTestLogger(), redisClient, &cache.Config{Enabled: true, Address: mr.Addr(), TTL: time.Hour})
	mr.Close()

	pool := redshifttest.NewFakePool([]string{"a"}, []any{int64(1)})
	client := redshift.NewClient(newTestLogger(), pool, store, &redshift.Config{})

	result, err := client.ExecuteQuery(context.Background(), &redshift.Query{
		Name: "stats", SQL: "SELECT a FROM t", CacheName: "x",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Len())
	assert.Len(t, pool.Queries(), 1)
}

func TestClient_ExecuteQuery_TempTables(t *testing.T) {
	col := query.NewColumn("account_id", query.GroupBreakdown)

	values := []any{1, 2, 3, 4, 5}
	table, err := query.NewTempTable(query.TempTableName(col, values), col, values)
	require.NoError(t, err)

	pool := redshifttest.NewFakePool([]string{"account_id"}, []any{int64(1)})
	client := redshift.NewClient(newTestLogger(), pool, nil, &redshift.Config{InsertBatchSize: 2})

	where, params, err := table.Render("a")
	require.NoError(t, err)

	_, err = client.ExecuteQuery(context.Background(), &redshift.Query{
		Name:       "stats",
		SQL:        "SELECT a.account_id FROM t a WHERE " + where,
		Params:     params,
		TempTables: []*query.TempTable{table},
	})
	require.NoError(t, err)

	execs := pool.Execs()
	require.Len(t, execs, 6)

	name := table.Name()
	assert.Equal(t, "DROP TABLE IF EXISTS "+name, execs[0].SQL)
	assert.Equal(t, "CREATE TEMP TABLE "+name+" (value bigint)", execs[1].SQL)
	assert.Equal(t, "INSERT INTO "+name+" (value) VALUES ($1), ($2)", execs[2].SQL)
	assert.Equal(t, []any{1, 2}, execs[2].Args)
	assert.Equal(t, "INSERT INTO "+name+" (value) VALUES ($1), ($2)", execs[3].SQL)
	assert.Equal(t, []any{3, 4}, execs[3].Args)
	assert.Equal(t, "INSERT INTO "+name+" (value) VALUES ($1)", execs[4].SQL)
	assert.Equal(t, []any{5}, execs[4].Args)
	assert.Equal(t, "DROP TABLE IF EXISTS "+name, execs[5].SQL)

	queries := pool.Queries()
	require.Len(t, queries, 1)
	assert.Equal(t, "SELECT a.account_id FROM t a WHERE a.account_id IN (SELECT value FROM "+name+")", queries[0].SQL)

	assert.Equal(t, 1, pool.Released())
}

func TestClient_ExecuteQuery_Errors(t *testing.T) {
	col := query.NewColumn("account_id", query.GroupBreakdown)
	table, err := query.NewTempTable("tmp_account_id", col, []any{"a", "b"})
	require.NoError(t, err)

	tests := []struct {
		name         string
		setup        func(*redshifttest.FakePool)
		query        *redshift.Query
		wantErr      error
		wantAcquired int
		checkExecs   func(*testing.T, []redshifttest.Call)
	}{
		{
			name:    "acquire fails",
			setup:   func(p *redshifttest.FakePool) { p.AcquireErr = errBoom },
			query:   &redshift.Query{Name: "q", SQL: "SELECT 1"},
			wantErr: errBoom,
		},
		{
			name:         "query fails",
			setup:        func(p *redshifttest.FakePool) { p.QueryErr = errBoom },
			query:        &redshift.Query{Name: "q", SQL: "SELECT 1"},
			wantErr:      errBoom,
			wantAcquired: 1,
		},
		{
			name:         "rows fail",
			setup:        func(p *redshifttest.FakePool) { p.RowsErr = errConnClosed },
			query:        &redshift.Query{Name: "q", SQL: "SELECT 1"},
			wantErr:      errConnClosed,
			wantAcquired: 1,
		},
		{
			name:    "placeholder mismatch",
			setup:   func(_ *redshifttest.FakePool) {},
			query:   &redshift.Query{Name: "q", SQL: "SELECT %s"},
			wantErr: redshift.ErrParamCountMismatch,
		},
		{
			name:    "empty sql",
			setup:   func(_ *redshifttest.FakePool) {},
			query:   &redshift.Query{Name: "q"},
			wantErr: redshift.ErrEmptySQL,
		},
		{
			name: "temp table insert fails",
			setup: func(p *redshifttest.FakePool) {
				p.ExecErr = func(sql string) error {
					if strings.HasPrefix(sql, "INSERT") {
						return errBoom
					}

					return nil
				}
			},
			query:        &redshift.Query{Name: "q", SQL: "SELECT 1", TempTables: []*query.TempTable{table}},
			wantErr:      errBoom,
			wantAcquired: 1,
			checkExecs: func(t *testing.T, execs []redshifttest.Call) {
				t.Helper()

				// the partially built table is still dropped
				require.NotEmpty(t, execs)
				assert.Equal(t, "DROP TABLE IF EXISTS tmp_account_id", execs[len(execs)-1].SQL)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := redshifttest.NewFakePool([]string{"a"}, []any{1})
			tt.setup(pool)

			client := redshift.NewClient(newTestLogger(), pool, nil, &redshift.Config{})

			result, err := client.ExecuteQuery(context.Background(), tt.query)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, result)

			assert.Equal(t, tt.wantAcquired, pool.Acquired())
			assert.Equal(t, pool.Acquired(), pool.Released())

			if tt.checkExecs != nil {
				tt.checkExecs(t, pool.Execs())
			}
		})
	}
}
