package queries

import (
	"fmt"

	"github.com/willibrandon/studio/internal/pgformat"
)

// LargestBucketsLimit caps the largest-size-limit scan.
const LargestBucketsLimit = 10

// LargestSizeLimitBucketsSQL selects the buckets with the largest configured
// file_size_limit. storage.buckets has no index on file_size_limit, so this
// is a sequential scan.
var LargestSizeLimitBucketsSQL = fmt.Sprintf(`
SELECT id, name, file_size_limit
FROM storage.buckets
ORDER BY file_size_limit DESC NULLS LAST
LIMIT %d`, LargestBucketsLimit)

// LiveTupleEstimateSQL reads the planner's live row estimate for a table from
// pg_stat_user_tables. An empty schema means public. No row comes back for a
// table the statistics collector has not seen.
func LiveTupleEstimateSQL(table, schema string) (string, error) {
	if schema == "" {
		schema = "public"
	}
	schemaLit, err := pgformat.Literal(schema)
	if err != nil {
		return "", fmt.Errorf("quote schema: %w", err)
	}
	tableLit, err := pgformat.Literal(table)
	if err != nil {
		return "", fmt.Errorf("quote table: %w", err)
	}
	return fmt.Sprintf(`
SELECT n_live_tup AS live_tuple_estimate
FROM pg_stat_user_tables
WHERE schemaname = %s
  AND relname = %s`, schemaLit, tableLit), nil
}
