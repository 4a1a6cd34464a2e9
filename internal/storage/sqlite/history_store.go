package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/willibrandon/studio/internal/sqlexec"
)

// DefaultMaxEntries bounds the history when no limit is configured.
const DefaultMaxEntries = 1000

// HistoryEntry is one remembered SQL execution.
type HistoryEntry struct {
	ID            string    `json:"id" yaml:"id"`
	ProjectRef    string    `json:"project_ref" yaml:"project_ref"`
	QueryKey      string    `json:"query_key" yaml:"query_key"`
	PgFingerprint string    `json:"pg_fingerprint" yaml:"pg_fingerprint"`
	SQL           string    `json:"sql" yaml:"sql"`
	ExecutedAt    time.Time `json:"executed_at" yaml:"executed_at"`
	DurationMs    int64     `json:"duration_ms" yaml:"duration_ms"`
	RowCount      int64     `json:"row_count" yaml:"row_count"`
	Error         string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// HistoryStore records SQL executions. It implements sqlexec.Recorder.
type HistoryStore struct {
	db         *DB
	maxEntries int
}

// NewHistoryStore creates a history store keeping at most maxEntries rows.
func NewHistoryStore(db *DB, maxEntries int) *HistoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &HistoryStore{db: db, maxEntries: maxEntries}
}

// fingerprint generates a fingerprint hash for a SQL query.
// Queries with the same structure but different literal values get the same fingerprint.
// Returns int64 for SQLite compatibility (signed 64-bit integer).
func fingerprint(sqlText string) int64 {
	normalized, err := pg_query.Normalize(sqlText)
	if err != nil {
		normalized = sqlText
	}
	return int64(pg_query.HashXXH3_64([]byte(normalized), 0))
}

// RecordExecution stores e, replacing an earlier entry of the same shape for
// the same project so the history reads like a shell history.
func (s *HistoryStore) RecordExecution(ctx context.Context, e sqlexec.Execution) error {
	sqlText := strings.TrimSpace(e.SQL)
	if sqlText == "" {
		return nil
	}

	id := e.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	executedAt := e.ExecutedAt
	if executedAt.IsZero() {
		executedAt = time.Now()
	}

	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO sql_history (id, project_ref, query_key, fingerprint, pg_fingerprint, query, executed_at, duration_ms, row_count, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project_ref, fingerprint) DO UPDATE SET
			query_key = excluded.query_key,
			pg_fingerprint = excluded.pg_fingerprint,
			query = excluded.query,
			executed_at = excluded.executed_at,
			duration_ms = excluded.duration_ms,
			row_count = excluded.row_count,
			error = excluded.error
	`,
		id.String(),
		e.ProjectRef,
		e.QueryKey.String(),
		fingerprint(sqlText),
		e.Fingerprint,
		sqlText,
		executedAt,
		e.Duration.Milliseconds(),
		e.RowCount,
		e.Error,
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}

	if _, err := s.db.conn.ExecContext(ctx, `
		DELETE FROM sql_history
		WHERE id NOT IN (
			SELECT id FROM sql_history
			ORDER BY executed_at DESC
			LIMIT ?
		)
	`, s.maxEntries); err != nil {
		return fmt.Errorf("trim history: %w", err)
	}

	return nil
}

// Recent returns the newest entries, optionally for one project.
func (s *HistoryStore) Recent(ctx context.Context, projectRef string, limit int) ([]HistoryEntry, error) {
	return s.Search(ctx, projectRef, "", limit)
}

// Search returns the newest entries whose SQL contains query
// (case-insensitive). Empty projectRef and query match everything.
func (s *HistoryStore) Search(ctx context.Context, projectRef, query string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	var (
		where []string
		args  []any
	)
	if projectRef != "" {
		where = append(where, "project_ref = ?")
		args = append(args, projectRef)
	}
	if query != "" {
		where = append(where, "query LIKE ?")
		args = append(args, "%"+query+"%")
	}

	stmt := `
		SELECT id, project_ref, query_key, pg_fingerprint, query, executed_at, duration_ms, row_count, error
		FROM sql_history`
	if len(where) > 0 {
		stmt += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	stmt += "\n\t\tORDER BY executed_at DESC\n\t\tLIMIT ?"
	args = append(args, limit)

	rows, err := s.db.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.ProjectRef,
			&entry.QueryKey,
			&entry.PgFingerprint,
			&entry.SQL,
			&entry.ExecutedAt,
			&entry.DurationMs,
			&entry.RowCount,
			&entry.Error,
		); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Count returns the total number of history entries.
func (s *HistoryStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM sql_history").Scan(&count)
	return count, err
}
