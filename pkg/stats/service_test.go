package stats

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/sebdah/goldie/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/statsql/pkg/query"
	"github.com/ethpandaops/statsql/pkg/redshift"
	"github.com/ethpandaops/statsql/pkg/redshift/redshifttest"
	"github.com/ethpandaops/statsql/pkg/rendering"
)

func newTestService(t *testing.T, threshold int, exec Executor) *Service {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	reg, err := LoadTemplates(log, nil)
	require.NoError(t, err)

	model, err := NewContentAdStatsModel(reg)
	require.NoError(t, err)

	svc, err := NewService(log, model, reg, exec, &Config{TempTableThreshold: threshold})
	require.NoError(t, err)

	return svc
}

func TestService_PrepareGolden(t *testing.T) {
	tests := []struct {
		name      string
		threshold int
		request   *Request
		params    []any
	}{
		{
			name: "account_breakdown",
			request: &Request{
				Breakdown: []string{"account_id"},
				Constraints: map[string]any{
					"date__gte": "2024-05-01",
					"date__lte": "2024-05-31",
					"source_id": []int{1, 2},
				},
				Order: []string{"-clicks"},
			},
			params: []any{"2024-05-01", "2024-05-31", 1, 2},
		},
		{
			name:      "temp_table",
			threshold: 3,
			request: &Request{
				Breakdown:   []string{"campaign_id"},
				Constraints: map[string]any{"account_id": []int{1, 2, 3}},
			},
		},
		{
			name: "top_rows",
			request: &Request{
				Breakdown:   []string{"account_id", "campaign_id"},
				Constraints: map[string]any{"date__gte": "2024-05-01"},
				Parents: []map[string]any{
					{"account_id": 1},
					{"account_id": 2},
				},
				Order: []string{"-media_cost"},
				Limit: 5,
			},
			params: []any{"2024-05-01", 1, 2},
		},
		{
			name: "paged",
			request: &Request{
				Breakdown: []string{"date"},
				Offset:    20,
				Limit:     10,
			},
		},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, tt.threshold, nil)

			q, err := svc.Prepare(tt.request)
			require.NoError(t, err)

			sql := rendering.CleanSQL(q.SQL)
			for _, table := range q.TempTables {
				sql = strings.ReplaceAll(sql, table.Name(), "tmp_"+table.Column().Name())
			}

			g.Assert(t, tt.name, []byte(sql+"\n"))

			assert.Equal(t, tt.params, q.Params)
			assert.Equal(t, strings.Count(q.SQL, "%s"), len(q.Params))
		})
	}
}

func TestService_PrepareTempTables(t *testing.T) {
	svc := newTestService(t, 3, nil)

	q, err := svc.Prepare(&Request{
		Breakdown: []string{"campaign_id"},
		Constraints: map[string]any{
			"account_id":        []int{1, 2, 3},
			"source_id__notin":  []int{7, 8, 9, 10},
			"content_ad_id__in": []int{4},
		},
	})
	require.NoError(t, err)

	require.Len(t, q.TempTables, 2)
	assert.Equal(t, "account_id", q.TempTables[0].Column().Name())
	assert.Equal(t, "source_id", q.TempTables[1].Column().Name())
	assert.Equal(t, []any{4}, q.Params)
	assert.Contains(t, q.SQL, "NOT (a.source_id IN (SELECT value FROM "+q.TempTables[1].Name()+"))")

	again, err := svc.Prepare(&Request{
		Breakdown: []string{"campaign_id"},
		Constraints: map[string]any{
			"account_id":        []int{1, 2, 3},
			"source_id__notin":  []int{7, 8, 9, 10},
			"content_ad_id__in": []int{4},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, q.SQL, again.SQL)
}

func TestService_PrepareErrors(t *testing.T) {
	tests := []struct {
		name    string
		request *Request
		wantErr error
	}{
		{
			name:    "no breakdown",
			request: &Request{},
			wantErr: ErrEmptyBreakdown,
		},
		{
			name:    "aggregate as breakdown",
			request: &Request{Breakdown: []string{"clicks"}},
			wantErr: ErrNotBreakdownColumn,
		},
		{
			name:    "repeated breakdown",
			request: &Request{Breakdown: []string{"account_id", "account_id"}},
			wantErr: ErrDuplicateBreakdown,
		},
		{
			name:    "unknown breakdown",
			request: &Request{Breakdown: []string{"nope"}},
			wantErr: query.ErrUnknownColumn,
		},
		{
			name:    "order on unselected breakdown",
			request: &Request{Breakdown: []string{"account_id"}, Order: []string{"campaign_id"}},
			wantErr: ErrOrderNotSelected,
		},
		{
			name:    "unknown operator",
			request: &Request{Breakdown: []string{"account_id"}, Constraints: map[string]any{"account_id__like": 1}},
			wantErr: query.ErrUnknownOperator,
		},
		{
			name:    "constraint on aggregate",
			request: &Request{Breakdown: []string{"account_id"}, Constraints: map[string]any{"clicks__gt": 10}},
			wantErr: ErrAggregateConstraint,
		},
		{
			name:    "equality on derived aggregate",
			request: &Request{Breakdown: []string{"account_id"}, Constraints: map[string]any{"ctr": 1.5}},
			wantErr: ErrAggregateConstraint,
		},
		{
			name: "parent on aggregate",
			request: &Request{
				Breakdown: []string{"account_id", "campaign_id"},
				Parents:   []map[string]any{{"account_id": 1}, {"media_cost__lt": 5}},
			},
			wantErr: ErrAggregateConstraint,
		},
		{
			name:    "negative limit",
			request: &Request{Breakdown: []string{"account_id"}, Limit: -1},
			wantErr: ErrInvalidPagination,
		},
		{
			name:    "mixed temp table values",
			request: &Request{Breakdown: []string{"account_id"}, Constraints: map[string]any{"campaign_id": []any{1, "2", 3}}},
			wantErr: query.ErrMixedValueTypes,
		},
	}

	svc := newTestService(t, 3, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := svc.Prepare(tt.request)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, q)
		})
	}
}

func TestService_Query(t *testing.T) {
	pool := redshifttest.NewFakePool([]string{"account_id", "clicks"}, []any{int64(1), int64(10)})

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	client := redshift.NewClient(log, pool, nil, &redshift.Config{})
	svc := newTestService(t, 1000, client)

	result, err := svc.Query(context.Background(), &Request{
		Breakdown:   []string{"account_id"},
		Constraints: map[string]any{"account_id": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1), int64(10)}}, result.Tuples())

	queries := pool.Queries()
	require.Len(t, queries, 1)
	assert.Contains(t, queries[0].SQL, "WHERE a.account_id=$1")
	assert.Equal(t, []any{1}, queries[0].Args)
}

func TestNewService_InvalidModel(t *testing.T) {
	log := logrus.New()

	reg := rendering.NewRegistry(log)
	model, err := NewContentAdStatsModel(reg)
	require.NoError(t, err)

	// the registry has no column templates
	_, err = NewService(log, model, reg, nil, &Config{})
	require.ErrorIs(t, err, rendering.ErrTemplateNotFound)
}

func TestLoadTemplates_Override(t *testing.T) {
	log := logrus.New()

	reg, err := LoadTemplates(log, nil)
	require.NoError(t, err)
	assert.True(t, reg.Has("breakdown.sql"))
	assert.True(t, reg.Has("columns/sum.sql"))

	require.NoError(t, reg.Load(fstest.MapFS{
		"columns/sum.sql": {Data: []byte("COALESCE(SUM({{ .p }}{{ .column }}), 0)")},
	}, "."))

	model, err := NewContentAdStatsModel(reg)
	require.NoError(t, err)

	col, err := model.Column("clicks")
	require.NoError(t, err)

	sql, _, err := col.Render("a")
	require.NoError(t, err)
	assert.Equal(t, "COALESCE(SUM(a.clicks), 0)", sql)
}
