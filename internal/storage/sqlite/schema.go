package sqlite

// initSchema creates the database schema if it doesn't exist.
func (db *DB) initSchema() error {
	schema := `
	-- One row per distinct statement shape and project
	CREATE TABLE IF NOT EXISTS sql_history (
		id TEXT PRIMARY KEY,
		project_ref TEXT NOT NULL,
		query_key TEXT NOT NULL DEFAULT '',
		fingerprint INTEGER NOT NULL,
		pg_fingerprint TEXT NOT NULL DEFAULT '',
		query TEXT NOT NULL,
		executed_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		row_count INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		UNIQUE (project_ref, fingerprint)
	);

	CREATE INDEX IF NOT EXISTS idx_sql_history_executed_at ON sql_history(executed_at DESC);
	CREATE INDEX IF NOT EXISTS idx_sql_history_project ON sql_history(project_ref, executed_at DESC);
	`

	_, err := db.conn.Exec(schema)
	return err
}
