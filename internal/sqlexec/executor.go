// Package sqlexec runs SQL against a project's database on behalf of readers
// and mutators. It is the single place where statements reach PostgreSQL.
package sqlexec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/willibrandon/studio/internal/logger"
	"github.com/willibrandon/studio/internal/querykey"
)

// Missing-precondition errors, returned before any network call.
var (
	ErrProjectRefRequired       = errors.New("project reference is required")
	ErrConnectionStringRequired = errors.New("connection string is required")
)

// syntaxErrorCode is the SQLSTATE reported for statements that fail to parse
// locally.
const syntaxErrorCode = "42601"

// Row is one result row keyed by column name.
type Row = map[string]any

// Result holds the rows returned by a statement.
type Result struct {
	Rows []Row
}

// Request describes one execution.
type Request struct {
	ProjectRef       string
	ConnectionString string
	SQL              string
	QueryKey         querykey.Key
}

// Executor runs SQL for a project.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// ExecError is returned for any failed execution: malformed SQL,
// connectivity failures and permission denials alike.
type ExecError struct {
	Message  string
	Code     string // SQLSTATE when the server reported one
	QueryKey querykey.Key
	Err      error
}

func (e *ExecError) Error() string {
	return e.Message
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// AsExecError extracts an *ExecError from err.
func AsExecError(err error) (*ExecError, bool) {
	var execErr *ExecError
	if errors.As(err, &execErr) {
		return execErr, true
	}
	return nil, false
}

// Execution is a record of one statement run, handed to a Recorder.
type Execution struct {
	ID          uuid.UUID
	ProjectRef  string
	QueryKey    querykey.Key
	SQL         string
	Fingerprint string
	ExecutedAt  time.Time
	Duration    time.Duration
	RowCount    int
	Error       string
}

// Recorder persists executions, e.g. for a history panel.
type Recorder interface {
	RecordExecution(ctx context.Context, e Execution) error
}

// PoolSource hands out a connection pool for a project.
type PoolSource interface {
	Pool(ctx context.Context, projectRef, connectionString string) (*pgxpool.Pool, error)
}

// PoolExecutor executes statements on pgx pools.
type PoolExecutor struct {
	pools    PoolSource
	recorder Recorder
}

// Option configures a PoolExecutor.
type Option func(*PoolExecutor)

// WithRecorder records every execution.
func WithRecorder(r Recorder) Option {
	return func(e *PoolExecutor) {
		e.recorder = r
	}
}

// NewPoolExecutor creates an executor over pools.
func NewPoolExecutor(pools PoolSource, opts ...Option) *PoolExecutor {
	e := &PoolExecutor{pools: pools}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs req.SQL with the simple query protocol so that multi-statement
// scripts and DO blocks behave as they would in psql.
func (e *PoolExecutor) Execute(ctx context.Context, req Request) (Result, error) {
	if req.ProjectRef == "" {
		return Result{}, ErrProjectRefRequired
	}

	fingerprint, err := Validate(req.SQL)
	if err != nil {
		return Result{}, &ExecError{
			Message:  err.Error(),
			Code:     syntaxErrorCode,
			QueryKey: req.QueryKey,
			Err:      err,
		}
	}

	log := logger.With(
		"project", req.ProjectRef,
		"query_key", req.QueryKey.String(),
		"fingerprint", fingerprint,
	)

	start := time.Now()
	rows, err := e.run(ctx, req)
	elapsed := time.Since(start)

	e.record(ctx, req, fingerprint, start, elapsed, len(rows), err)

	if err != nil {
		log.Warn("SQL execution failed", "duration", elapsed, "error", err)
		return Result{}, toExecError(err, req.QueryKey)
	}

	log.Debug("SQL executed", "duration", elapsed, "rows", len(rows))
	return Result{Rows: rows}, nil
}

func (e *PoolExecutor) run(ctx context.Context, req Request) ([]Row, error) {
	pool, err := e.pools.Pool(ctx, req.ProjectRef, req.ConnectionString)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, req.SQL, pgx.QueryExecModeSimpleProtocol)
	if err != nil {
		return nil, err
	}

	collected, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	if collected == nil {
		collected = []Row{}
	}
	return collected, nil
}

func (e *PoolExecutor) record(ctx context.Context, req Request, fingerprint string, start time.Time, elapsed time.Duration, rowCount int, execErr error) {
	if e.recorder == nil {
		return
	}

	entry := Execution{
		ID:          uuid.New(),
		ProjectRef:  req.ProjectRef,
		QueryKey:    req.QueryKey,
		SQL:         req.SQL,
		Fingerprint: fingerprint,
		ExecutedAt:  start,
		Duration:    elapsed,
		RowCount:    rowCount,
	}
	if execErr != nil {
		entry.Error = execErr.Error()
	}

	if err := e.recorder.RecordExecution(ctx, entry); err != nil {
		logger.Warn("Failed to record SQL execution", "project", req.ProjectRef, "error", err)
	}
}

// Validate parses sql locally and returns its fingerprint.
func Validate(sql string) (string, error) {
	if _, err := pg_query.Parse(sql); err != nil {
		return "", fmt.Errorf("syntax error: %w", err)
	}
	fp, err := pg_query.Fingerprint(sql)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return fp, nil
}

func toExecError(err error, key querykey.Key) *ExecError {
	if execErr, ok := AsExecError(err); ok {
		return execErr
	}

	execErr := &ExecError{
		Message:  err.Error(),
		QueryKey: key,
		Err:      err,
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		execErr.Message = pgErr.Message
		execErr.Code = pgErr.Code
	}
	return execErr
}
