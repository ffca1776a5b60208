package store

// archiveSchemaVersion is the target schema version for this build.
const archiveSchemaVersion = 1

var archiveSchema = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	target        TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	overall_score REAL NOT NULL,
	payload       BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target, created_at);
`
