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
		Description: "npc_sessions: persisted NPC config and clock",
		SQL: `
CREATE TABLE npc_sessions (
    npc_id       TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    background   TEXT NOT NULL DEFAULT '',
    valence      REAL NOT NULL CHECK (valence BETWEEN -1 AND 1),
    arousal      REAL NOT NULL CHECK (arousal BETWEEN -1 AND 1),
    decay_rate   REAL NOT NULL CHECK (decay_rate BETWEEN 0 AND 1),
    clock        INTEGER NOT NULL DEFAULT 0,
    next_id      INTEGER NOT NULL DEFAULT 1,
    saved_at     INTEGER NOT NULL
);

CREATE INDEX idx_npc_sessions_saved_at ON npc_sessions(saved_at DESC);
`,
	},
	{
		Version:     2,
		Description: "npc_memories: interaction history per NPC",
		SQL: `
CREATE TABLE npc_memories (
    npc_id     TEXT NOT NULL,
    id         INTEGER NOT NULL,
    source_id  TEXT,
    text       TEXT NOT NULL,
    valence    REAL NOT NULL,
    arousal    REAL NOT NULL,
    created_at INTEGER NOT NULL,

    PRIMARY KEY (npc_id, id),
    FOREIGN KEY (npc_id) REFERENCES npc_sessions(npc_id) ON DELETE CASCADE
);

CREATE INDEX idx_npc_memories_source ON npc_memories(npc_id, source_id);
`,
	},
}

func (db *DB) migrate() error {
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
