package queries

import (
	"strings"
	"testing"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTablePrivilegesSQL(t *testing.T) {
	sql, err := TablePrivilegesSQL()
	require.NoError(t, err)
	assert.NotContains(t, sql, "%!")
	assert.Contains(t, sql, "NOT LIKE 'pg_toast%'")
	assert.NotContains(t, sql, "n.nspname IN (")

	_, err = pg_query.Parse(sql)
	assert.NoError(t, err)
}

func TestTablePrivilegesSQL_SchemaFilter(t *testing.T) {
	sql, err := TablePrivilegesSQL("public", "it's")
	require.NoError(t, err)
	assert.Contains(t, sql, "n.nspname IN ('public', 'it''s')")

	_, err = pg_query.Parse(sql)
	assert.NoError(t, err)

	_, err = TablePrivilegesSQL("bad\x00")
	assert.Error(t, err)
}

func TestLiveTupleEstimateSQL(t *testing.T) {
	sql, err := LiveTupleEstimateSQL("buckets", "storage")
	require.NoError(t, err)
	assert.Contains(t, sql, "schemaname = 'storage'")
	assert.Contains(t, sql, "relname = 'buckets'")
	assert.Contains(t, sql, "n_live_tup AS live_tuple_estimate")

	sql, err = LiveTupleEstimateSQL("t'x", "")
	require.NoError(t, err)
	assert.Contains(t, sql, "schemaname = 'public'")
	assert.Contains(t, sql, "relname = 't''x'")

	_, err = pg_query.Parse(sql)
	assert.NoError(t, err)
}

func TestLargestSizeLimitBucketsSQL(t *testing.T) {
	assert.True(t, strings.HasSuffix(LargestSizeLimitBucketsSQL, "LIMIT 10"))
	assert.Contains(t, LargestSizeLimitBucketsSQL, "ORDER BY file_size_limit DESC NULLS LAST")

	_, err := pg_query.Parse(LargestSizeLimitBucketsSQL)
	assert.NoError(t, err)
}
