package buckets

import (
	"context"

	"github.com/willibrandon/studio/internal/db/models"
	"github.com/willibrandon/studio/internal/querycache"
	"github.com/willibrandon/studio/internal/querykey"
	"github.com/willibrandon/studio/internal/sqlexec"
)

// LargestSizeLimitsQuery pairs the cached estimate with the on-demand scan
// for one project.
type LargestSizeLimitsQuery struct {
	exec      sqlexec.Executor
	cache     *querycache.Cache
	vars      ConnectionVars
	threshold int64
}

// NewLargestSizeLimitsQuery creates the query. A negative threshold selects
// DefaultScanThreshold.
func NewLargestSizeLimitsQuery(exec sqlexec.Executor, cache *querycache.Cache, vars ConnectionVars, threshold int64) *LargestSizeLimitsQuery {
	if threshold < 0 {
		threshold = DefaultScanThreshold
	}
	return &LargestSizeLimitsQuery{exec: exec, cache: cache, vars: vars, threshold: threshold}
}

// EstimateKey is the cache key of the bucket count estimate.
func EstimateKey(projectRef string) querykey.Key {
	return querykey.SQLQuery(projectRef, querykey.BucketLiveTupleEstimate...)
}

// LargestKey is the cache key of the largest-buckets result.
func LargestKey(projectRef string) querykey.Key {
	return querykey.SQLQuery(projectRef, querykey.BucketsLargestSizeLimit...)
}

// Threshold returns the estimate threshold in use.
func (q *LargestSizeLimitsQuery) Threshold() int64 {
	return q.threshold
}

// Estimate returns the cached bucket count estimate, reading it when
// missing. Without a project and connection nothing is read and the
// estimate is nil.
func (q *LargestSizeLimitsQuery) Estimate(ctx context.Context) *int64 {
	if q.vars.validate() != nil {
		return nil
	}
	estimate, err := querycache.Fetch(ctx, q.cache, EstimateKey(q.vars.ProjectRef), func(ctx context.Context) (*int64, error) {
		return EstimateBucketCount(ctx, q.exec, q.vars)
	})
	if err != nil {
		return nil
	}
	return estimate
}

// RefreshEstimate rereads the estimate even when one is cached, for example
// after an earlier read failed and was cached as unknown.
func (q *LargestSizeLimitsQuery) RefreshEstimate(ctx context.Context) *int64 {
	if q.vars.validate() != nil {
		return nil
	}
	estimate, err := querycache.Refetch(ctx, q.cache, EstimateKey(q.vars.ProjectRef), func(ctx context.Context) (*int64, error) {
		return EstimateBucketCount(ctx, q.exec, q.vars)
	})
	if err != nil {
		return nil
	}
	return estimate
}

// RunCondition classifies the current estimate.
func (q *LargestSizeLimitsQuery) RunCondition(ctx context.Context) RunCondition {
	return ClassifyRunCondition(q.Estimate(ctx), q.threshold)
}

// Run performs the scan, or returns the cached result of an earlier one.
func (q *LargestSizeLimitsQuery) Run(ctx context.Context) ([]models.Bucket, error) {
	if err := q.vars.validate(); err != nil {
		return nil, err
	}
	return querycache.Fetch(ctx, q.cache, LargestKey(q.vars.ProjectRef), func(ctx context.Context) ([]models.Bucket, error) {
		return LargestSizeLimitBuckets(ctx, q.exec, q.vars)
	})
}

// Invalidate drops both cached reads for the project.
func (q *LargestSizeLimitsQuery) Invalidate(ctx context.Context) error {
	if err := q.cache.Invalidate(ctx, EstimateKey(q.vars.ProjectRef)); err != nil {
		return err
	}
	return q.cache.Invalidate(ctx, LargestKey(q.vars.ProjectRef))
}
