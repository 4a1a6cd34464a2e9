package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/willibrandon/studio/internal/logger"
)

// ConnectOptions describes how to open a project's pool.
type ConnectOptions struct {
	ProjectRef       string
	ConnectionString string
	PasswordCommand  string
	// Interactive allows prompting on the terminal when no password is
	// available from the connection string, password_command or PGPASSWORD.
	Interactive bool
}

// NewConnectionPool creates a PostgreSQL connection pool for one project.
func NewConnectionPool(ctx context.Context, opts ConnectOptions) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(opts.ConnectionString)
	if err != nil {
		logger.Error("Failed to parse connection string", "project", opts.ProjectRef, "error", err)
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	cc := poolConfig.ConnConfig
	logger.Debug("Creating new database connection pool",
		"project", opts.ProjectRef,
		"host", cc.Host,
		"port", cc.Port,
		"database", cc.Database,
		"user", cc.User,
	)

	if cc.Password == "" {
		password, err := GetPassword(opts.PasswordCommand, opts.Interactive)
		if err != nil {
			logger.Error("Failed to retrieve password", "project", opts.ProjectRef, "error", err)
			return nil, fmt.Errorf("failed to retrieve password: %w", err)
		}
		cc.Password = password
	}

	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute
	cc.RuntimeParams["application_name"] = "studio"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("Failed to create connection pool",
			"project", opts.ProjectRef,
			"host", cc.Host,
			"port", cc.Port,
			"error", err,
		)
		return nil, fmt.Errorf(
			"connection refused: ensure PostgreSQL is running on %s:%d (error: %w)",
			cc.Host,
			cc.Port,
			err,
		)
	}

	if err := ValidateConnection(ctx, pool); err != nil {
		logger.Error("Connection validation failed", "project", opts.ProjectRef, "error", err)
		pool.Close()
		return nil, err
	}

	logger.Info("Database connection pool created",
		"project", opts.ProjectRef,
		"host", cc.Host,
		"database", cc.Database,
		"max_conns", poolConfig.MaxConns,
	)

	return pool, nil
}

// ValidateConnection validates the database connection by executing a version query
func ValidateConnection(ctx context.Context, pool *pgxpool.Pool) error {
	var version string
	err := pool.QueryRow(ctx, "SELECT version()").Scan(&version)
	if err != nil {
		return fmt.Errorf("connection validation failed: %w", err)
	}
	return nil
}

// GetServerVersion retrieves the PostgreSQL server version
func GetServerVersion(ctx context.Context, pool *pgxpool.Pool) (string, error) {
	var version string
	err := pool.QueryRow(ctx, "SHOW server_version").Scan(&version)
	if err != nil {
		return "", fmt.Errorf("failed to get server version: %w", err)
	}
	return version, nil
}
