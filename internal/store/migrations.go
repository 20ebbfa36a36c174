package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create memories with FTS5",
		SQL: `
			CREATE TABLE memories (
				id          TEXT PRIMARY KEY,
				session_id  TEXT NOT NULL DEFAULT '',
				scope       TEXT NOT NULL DEFAULT 'session',
				text        TEXT NOT NULL,
				tags        TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_memories_session ON memories (session_id, created_at);
			CREATE INDEX idx_memories_scope ON memories (scope, created_at);

			CREATE VIRTUAL TABLE memories_fts USING fts5(
				text,
				tags,
				content='memories',
				content_rowid='rowid'
			);

			CREATE TRIGGER memories_ai AFTER INSERT ON memories BEGIN
				INSERT INTO memories_fts(rowid, text, tags)
				VALUES (new.rowid, new.text, new.tags);
			END;

			CREATE TRIGGER memories_ad AFTER DELETE ON memories BEGIN
				INSERT INTO memories_fts(memories_fts, rowid, text, tags)
				VALUES ('delete', old.rowid, old.text, old.tags);
			END;
		`,
	},
	{
		Version: 2,
		Name:    "create leads",
		SQL: `
			CREATE TABLE leads (
				id          TEXT PRIMARY KEY,
				session_id  TEXT NOT NULL DEFAULT '',
				name        TEXT NOT NULL DEFAULT '',
				email       TEXT NOT NULL DEFAULT '',
				phone       TEXT NOT NULL DEFAULT '',
				company     TEXT NOT NULL DEFAULT '',
				note        TEXT NOT NULL DEFAULT '',
				source      TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_leads_email ON leads (email);
			CREATE INDEX idx_leads_created ON leads (created_at);
		`,
	},
	{
		Version: 3,
		Name:    "create language preferences",
		SQL: `
			CREATE TABLE language_prefs (
				session_id  TEXT PRIMARY KEY,
				code        TEXT NOT NULL,
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`,
	},
}
