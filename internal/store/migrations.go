package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS task_snapshots (
	user_id    INTEGER PRIMARY KEY,
	fetched_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshot_tasks (
	user_id      INTEGER NOT NULL REFERENCES task_snapshots(user_id) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	task_id      INTEGER NOT NULL,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	is_completed INTEGER NOT NULL DEFAULT 0 CHECK(is_completed IN (0, 1)),
	created_at   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (user_id, position)
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
