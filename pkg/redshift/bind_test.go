package redshift_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/statsql/pkg/redshift"
)

func TestBindParams(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		params   []any
		expected string
		wantErr  error
	}{
		{
			name:     "no placeholders",
			sql:      "SELECT 1",
			expected: "SELECT 1",
		},
		{
			name:     "positional placeholders",
			sql:      "SELECT a FROM t WHERE (bar=%s AND foo IN (%s,%s,%s))",
			params:   []any{"today", 1, 2, 3},
			expected: "SELECT a FROM t WHERE (bar=$1 AND foo IN ($2,$3,$4))",
		},
		{
			name:     "escaped percent",
			sql:      "SELECT a FROM t WHERE name LIKE 'x%%' AND id=%s",
			params:   []any{7},
			expected: "SELECT a FROM t WHERE name LIKE 'x%' AND id=$1",
		},
		{
			name:     "lone percent kept",
			sql:      "SELECT a % 2 FROM t",
			expected: "SELECT a % 2 FROM t",
		},
		{
			name:     "trailing percent kept",
			sql:      "SELECT '%",
			expected: "SELECT '%",
		},
		{
			name:    "too few params",
			sql:     "SELECT a FROM t WHERE a=%s AND b=%s",
			params:  []any{1},
			wantErr: redshift.ErrParamCountMismatch,
		},
		{
			name:    "too many params",
			sql:     "SELECT a FROM t",
			params:  []any{1},
			wantErr: redshift.ErrParamCountMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := redshift.BindParams(tt.sql, tt.params)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResult_Tuples(t *testing.T) {
	result := &redshift.Result{
		Columns: []string{"a", "b"},
		Rows: []map[string]any{
			{"b": 2, "a": 1},
			{"a": 3, "b": nil},
		},
	}

	assert.Equal(t, 2, result.Len())
	assert.Equal(t, [][]any{{1, 2}, {3, nil}}, result.Tuples())
}

func TestConfig_Validate(t *testing.T) {
	cfg := &redshift.Config{}
	require.ErrorIs(t, cfg.Validate(), redshift.ErrURLRequired)

	cfg = &redshift.Config{URL: "postgres://localhost:5439/dev", MaxConns: 2, MinConns: 4}
	require.ErrorIs(t, cfg.Validate(), redshift.ErrInvalidPoolSize)

	cfg = &redshift.Config{URL: "postgres://localhost:5439/dev"}
	require.NoError(t, cfg.Validate())

	cfg.SetDefaults()
	assert.Positive(t, cfg.QueryTimeout)
	assert.Equal(t, 1000, cfg.InsertBatchSize)
	assert.Equal(t, "statsql", cfg.ApplicationName)
}
