package buckets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/studio/internal/db/models"
	"github.com/willibrandon/studio/internal/querycache"
	"github.com/willibrandon/studio/internal/querykey"
	"github.com/willibrandon/studio/internal/sqlexec"
	"github.com/willibrandon/studio/internal/testutil"
)

func ptr(n int64) *int64 { return &n }

var vars = ConnectionVars{ProjectRef: "abc", ConnectionString: "postgres://abc"}

func TestClassifyRunCondition(t *testing.T) {
	tests := []struct {
		name     string
		estimate *int64
		want     RunCondition
	}{
		{"below threshold", ptr(999), RunAuto},
		{"at threshold", ptr(1000), RunAuto},
		{"above threshold", ptr(1001), RunConfirm},
		{"unknown", nil, RunConfirm},
		{"empty table", ptr(0), RunAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRunCondition(tt.estimate, DefaultScanThreshold))
		})
	}
}

func TestEstimateBucketCount(t *testing.T) {
	exec := &testutil.FakeExecutor{ExecuteFn: testutil.Rows(sqlexec.Row{"live_tuple_estimate": int64(12)})}

	got, err := EstimateBucketCount(context.Background(), exec, vars)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(12), *got)

	req := exec.LastRequest()
	assert.True(t, req.QueryKey.Equal(querykey.BucketLiveTupleEstimate))
	assert.Contains(t, req.SQL, "schemaname = 'storage'")
	assert.Contains(t, req.SQL, "relname = 'buckets'")
}

func TestEstimateBucketCount_ExecutionErrorBecomesUnknown(t *testing.T) {
	exec := &testutil.FakeExecutor{ExecuteFn: testutil.Fail("relation \"pg_stat_user_tables\" does not exist", "42P01")}

	got, err := EstimateBucketCount(context.Background(), exec, vars)
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, exec.Calls())
}

func TestEstimateBucketCount_NoStatistics(t *testing.T) {
	exec := &testutil.FakeExecutor{}

	got, err := EstimateBucketCount(context.Background(), exec, vars)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestPreconditionsFailBeforeExecution(t *testing.T) {
	exec := &testutil.FakeExecutor{}

	_, err := EstimateBucketCount(context.Background(), exec, ConnectionVars{ConnectionString: "c"})
	assert.ErrorIs(t, err, sqlexec.ErrProjectRefRequired)

	_, err = LargestSizeLimitBuckets(context.Background(), exec, ConnectionVars{ProjectRef: "abc"})
	assert.ErrorIs(t, err, sqlexec.ErrConnectionStringRequired)

	assert.Zero(t, exec.Calls())
}

func TestLargestSizeLimitBuckets(t *testing.T) {
	rows := []sqlexec.Row{
		{"id": "avatars", "name": "avatars", "file_size_limit": int64(5 << 20)},
		{"id": "videos", "name": "videos", "file_size_limit": int64(500 << 20)},
		{"id": "open", "name": "open", "file_size_limit": nil},
		{"id": "docs", "name": "docs", "file_size_limit": int64(50 << 20)},
	}
	exec := &testutil.FakeExecutor{ExecuteFn: testutil.Rows(rows...)}

	got, err := LargestSizeLimitBuckets(context.Background(), exec, vars)
	require.NoError(t, err)

	names := make([]string, 0, len(got))
	for _, b := range got {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"videos", "docs", "avatars", "open"}, names)
	assert.Nil(t, got[3].FileSizeLimit)
	assert.True(t, exec.LastRequest().QueryKey.Equal(querykey.BucketsLargestSizeLimit))
}

func TestLargestSizeLimitBuckets_AtMostTenNonIncreasing(t *testing.T) {
	var rows []sqlexec.Row
	for i := range 25 {
		rows = append(rows, sqlexec.Row{
			"id":              string(rune('a' + i)),
			"name":            string(rune('a' + i)),
			"file_size_limit": int64((i * 37) % 11),
		})
	}
	exec := &testutil.FakeExecutor{ExecuteFn: testutil.Rows(rows...)}

	got, err := LargestSizeLimitBuckets(context.Background(), exec, vars)
	require.NoError(t, err)
	require.Len(t, got, 10)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, *got[i-1].FileSizeLimit, *got[i].FileSizeLimit)
	}
}

func TestLargestSizeLimitBuckets_ErrorPropagates(t *testing.T) {
	exec := &testutil.FakeExecutor{ExecuteFn: testutil.Fail("canceling statement due to statement timeout", "57014")}

	_, err := LargestSizeLimitBuckets(context.Background(), exec, vars)

	execErr, ok := sqlexec.AsExecError(err)
	require.True(t, ok)
	assert.Equal(t, "57014", execErr.Code)
	assert.Equal(t, "canceling statement due to statement timeout", execErr.Message)
}

func TestDecodeBuckets_InvalidLimit(t *testing.T) {
	_, err := DecodeBuckets([]sqlexec.Row{{"id": "x", "file_size_limit": "big"}})
	assert.Error(t, err)
}

func TestExceedingLimit(t *testing.T) {
	in := []models.Bucket{
		{Name: "videos", FileSizeLimit: ptr(500)},
		{Name: "docs", FileSizeLimit: ptr(100)},
		{Name: "open"},
		{Name: "avatars", FileSizeLimit: ptr(101)},
	}

	over := ExceedingLimit(in, 100)
	require.Len(t, over, 2)
	assert.Equal(t, "videos", over[0].Name)
	assert.Equal(t, "avatars", over[1].Name)

	assert.Empty(t, ExceedingLimit(in, 1000))
}

func TestLargestSizeLimitsQuery_RunCondition(t *testing.T) {
	exec := &testutil.FakeExecutor{ExecuteFn: testutil.Rows(sqlexec.Row{"live_tuple_estimate": int64(1001)})}
	q := NewLargestSizeLimitsQuery(exec, querycache.New(), vars, DefaultScanThreshold)

	assert.Equal(t, RunConfirm, q.RunCondition(context.Background()))
	assert.Equal(t, RunConfirm, q.RunCondition(context.Background()))
	assert.Equal(t, 1, exec.Calls(), "estimate is cached per project")

	lenient := NewLargestSizeLimitsQuery(exec, querycache.New(), vars, 5000)
	assert.Equal(t, RunAuto, lenient.RunCondition(context.Background()))
}

func TestLargestSizeLimitsQuery_MissingIdentifiersNoIO(t *testing.T) {
	exec := &testutil.FakeExecutor{}
	q := NewLargestSizeLimitsQuery(exec, querycache.New(), ConnectionVars{ProjectRef: "abc"}, -1)

	assert.Equal(t, DefaultScanThreshold, q.Threshold())
	assert.Nil(t, q.Estimate(context.Background()))
	assert.Equal(t, RunConfirm, q.RunCondition(context.Background()))

	_, err := q.Run(context.Background())
	assert.ErrorIs(t, err, sqlexec.ErrConnectionStringRequired)
	assert.Zero(t, exec.Calls())
}

func TestLargestSizeLimitsQuery_RunIsCachedUntilInvalidated(t *testing.T) {
	exec := &testutil.FakeExecutor{ExecuteFn: testutil.Rows(
		sqlexec.Row{"id": "a", "name": "a", "file_size_limit": int64(10)},
	)}
	cache := querycache.New()
	q := NewLargestSizeLimitsQuery(exec, cache, vars, DefaultScanThreshold)

	first, err := q.Run(context.Background())
	require.NoError(t, err)
	second, err := q.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, exec.Calls())

	require.NoError(t, q.Invalidate(context.Background()))
	_, err = q.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, exec.Calls())
}

func TestLargestSizeLimitsQuery_FailedRunIsNotCached(t *testing.T) {
	exec := &testutil.FakeExecutor{ExecuteFn: testutil.Fail("boom", "")}
	q := NewLargestSizeLimitsQuery(exec, querycache.New(), vars, DefaultScanThreshold)

	_, err := q.Run(context.Background())
	require.Error(t, err)
	_, err = q.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, exec.Calls())
}

func TestParseSizeLimit(t *testing.T) {
	n, err := ParseSizeLimit(" 50MB ")
	require.NoError(t, err)
	assert.Equal(t, int64(50_000_000), n)

	n, err = ParseSizeLimit("1 GiB")
	require.NoError(t, err)
	assert.Equal(t, int64(1<<30), n)

	for _, bad := range []string{"lots", "10EB", "-5MB"} {
		_, err := ParseSizeLimit(bad)
		assert.ErrorIs(t, err, ErrInvalidSize, bad)
	}
}

func TestLargestSizeLimitsQuery_RefreshEstimateRereads(t *testing.T) {
	exec := &testutil.FakeExecutor{ExecuteFn: testutil.Fail("canceling statement due to statement timeout", "57014")}
	q := NewLargestSizeLimitsQuery(exec, querycache.New(), vars, DefaultScanThreshold)
	ctx := context.Background()

	assert.Nil(t, q.Estimate(ctx))
	assert.Nil(t, q.Estimate(ctx))
	assert.Equal(t, 1, exec.Calls(), "an unknown estimate is cached")

	exec.ExecuteFn = testutil.Rows(sqlexec.Row{"live_tuple_estimate": int64(3)})
	estimate := q.RefreshEstimate(ctx)
	require.NotNil(t, estimate)
	assert.Equal(t, int64(3), *estimate)
	assert.Equal(t, 2, exec.Calls())

	assert.Equal(t, RunAuto, q.RunCondition(ctx))
	assert.Equal(t, 2, exec.Calls())
}
