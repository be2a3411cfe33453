package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "activities: durable event log",
		SQL: `
CREATE TABLE activities (
    id            INTEGER PRIMARY KEY,
    activity_id   TEXT NOT NULL UNIQUE,
    timestamp     INTEGER NOT NULL,
    activity_type TEXT NOT NULL,
    app_name      TEXT,
    window_title  TEXT,
    file_path     TEXT,
    url           TEXT,
    duration      INTEGER NOT NULL DEFAULT 0,
    metadata      TEXT,
    created_at    INTEGER NOT NULL
);

CREATE INDEX idx_activities_timestamp ON activities(timestamp DESC);
CREATE INDEX idx_activities_type      ON activities(activity_type);
CREATE INDEX idx_activities_app       ON activities(app_name);
`,
	},
	{
		Version:     2,
		Description: "applications + files: usage tallies",
		SQL: `
CREATE TABLE applications (
    id             INTEGER PRIMARY KEY,
    name           TEXT NOT NULL UNIQUE,
    first_seen     INTEGER NOT NULL,
    last_used      INTEGER NOT NULL,
    total_duration INTEGER NOT NULL DEFAULT 0,
    usage_count    INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE files (
    id            INTEGER PRIMARY KEY,
    path          TEXT NOT NULL UNIQUE,
    first_seen    INTEGER NOT NULL,
    last_accessed INTEGER NOT NULL,
    access_count  INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX idx_applications_last_used ON applications(last_used DESC);
CREATE INDEX idx_files_last_accessed    ON files(last_accessed DESC);
`,
	},
	{
		Version:     3,
		Description: "activity_vectors: embedding vectors for semantic search",
		SQL: `
CREATE TABLE activity_vectors (
    doc_id     TEXT PRIMARY KEY,
    text       TEXT NOT NULL,
    metadata   TEXT,
    embedding  BLOB NOT NULL,
    model      TEXT NOT NULL,
    dimensions INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
