// Package buckets finds the storage buckets with the largest file size
// limits. The scan is unindexed, so a planner estimate of the bucket count
// decides whether it may run without the operator confirming first.
package buckets

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/willibrandon/studio/internal/db/models"
	"github.com/willibrandon/studio/internal/db/queries"
	"github.com/willibrandon/studio/internal/logger"
	"github.com/willibrandon/studio/internal/querykey"
	"github.com/willibrandon/studio/internal/sqlexec"
)

// DefaultScanThreshold is the largest estimated bucket count for which the
// scan runs automatically.
const DefaultScanThreshold int64 = 1000

// RunCondition says whether the largest-buckets scan may start on its own.
type RunCondition string

const (
	RunAuto    RunCondition = "auto"
	RunConfirm RunCondition = "confirm"
)

// ClassifyRunCondition returns RunAuto only when the estimate is known and
// at most threshold. An unknown estimate requires confirmation.
func ClassifyRunCondition(estimate *int64, threshold int64) RunCondition {
	if estimate != nil && *estimate <= threshold {
		return RunAuto
	}
	return RunConfirm
}

// ConnectionVars identify the project database to read from.
type ConnectionVars struct {
	ProjectRef       string
	ConnectionString string
}

func (v ConnectionVars) validate() error {
	if v.ProjectRef == "" {
		return sqlexec.ErrProjectRefRequired
	}
	if v.ConnectionString == "" {
		return sqlexec.ErrConnectionStringRequired
	}
	return nil
}

// EstimateBucketCount returns the planner's live row estimate for
// storage.buckets. Missing identifiers are an error; any failure of the
// query itself yields a nil estimate.
func EstimateBucketCount(ctx context.Context, exec sqlexec.Executor, vars ConnectionVars) (*int64, error) {
	if err := vars.validate(); err != nil {
		return nil, err
	}

	sql, err := queries.LiveTupleEstimateSQL("buckets", "storage")
	if err != nil {
		return nil, err
	}

	res, err := exec.Execute(ctx, sqlexec.Request{
		ProjectRef:       vars.ProjectRef,
		ConnectionString: vars.ConnectionString,
		SQL:              sql,
		QueryKey:         querykey.BucketLiveTupleEstimate,
	})
	if err != nil {
		logger.Debug("Bucket count estimate unavailable", "project", vars.ProjectRef, "error", err)
		return nil, nil
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}

	n, ok := sqlexec.Int64(res.Rows[0]["live_tuple_estimate"])
	if !ok {
		return nil, nil
	}
	return &n, nil
}

// LargestSizeLimitBuckets returns at most ten buckets ordered by
// file_size_limit, largest first. Errors are returned unchanged.
func LargestSizeLimitBuckets(ctx context.Context, exec sqlexec.Executor, vars ConnectionVars) ([]models.Bucket, error) {
	if err := vars.validate(); err != nil {
		return nil, err
	}

	res, err := exec.Execute(ctx, sqlexec.Request{
		ProjectRef:       vars.ProjectRef,
		ConnectionString: vars.ConnectionString,
		SQL:              queries.LargestSizeLimitBucketsSQL,
		QueryKey:         querykey.BucketsLargestSizeLimit,
	})
	if err != nil {
		return nil, err
	}
	return DecodeBuckets(res.Rows)
}

// DecodeBuckets converts rows into buckets, ordered by limit descending with
// unlimited buckets last, and capped at the scan limit.
func DecodeBuckets(rows []sqlexec.Row) ([]models.Bucket, error) {
	out := make([]models.Bucket, 0, len(rows))
	for i, row := range rows {
		b := models.Bucket{
			ID:   sqlexec.String(row["id"]),
			Name: sqlexec.String(row["name"]),
		}
		if v := row["file_size_limit"]; v != nil {
			n, ok := sqlexec.Int64(v)
			if !ok {
				return nil, fmt.Errorf("decode bucket row %d: invalid file_size_limit %v", i, v)
			}
			b.FileSizeLimit = &n
		}
		out = append(out, b)
	}

	slices.SortStableFunc(out, func(a, b models.Bucket) int {
		switch {
		case a.FileSizeLimit == nil && b.FileSizeLimit == nil:
			return 0
		case a.FileSizeLimit == nil:
			return 1
		case b.FileSizeLimit == nil:
			return -1
		}
		return cmp.Compare(*b.FileSizeLimit, *a.FileSizeLimit)
	})

	if len(out) > queries.LargestBucketsLimit {
		out = out[:queries.LargestBucketsLimit]
	}
	return out, nil
}

// ExceedingLimit returns the buckets whose own limit is above limit, in
// input order.
func ExceedingLimit(buckets []models.Bucket, limit int64) []models.Bucket {
	var over []models.Bucket
	for _, b := range buckets {
		if b.Exceeds(limit) {
			over = append(over, b)
		}
	}
	return over
}

// ErrInvalidSize is returned by ParseSizeLimit for sizes that are malformed
// or do not fit in a file_size_limit column.
var ErrInvalidSize = errors.New("invalid size")

// ParseSizeLimit parses a proposed global limit such as "50MB" or "1 GiB".
func ParseSizeLimit(s string) (int64, error) {
	s = strings.TrimSpace(s)
	n, err := humanize.ParseBytes(s)
	if err != nil || n > math.MaxInt64 {
		return 0, fmt.Errorf("%w %q", ErrInvalidSize, s)
	}
	return int64(n), nil
}
