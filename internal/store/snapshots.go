package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lazypower/affect/internal/affect"
)

// SnapshotSummary is one row of ListSnapshots.
type SnapshotSummary struct {
	NpcID    string
	Name     string
	Memories int
	Clock    int64
	SavedAt  int64 // unix millis
}

// SaveSnapshot replaces the stored state of snap.ID in one transaction.
func (db *DB) SaveSnapshot(snap affect.Snapshot) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin save %s: %w", snap.ID, err)
	}
	defer tx.Rollback()

	cfg := snap.Config
	_, err = tx.Exec(`
		INSERT INTO npc_sessions (npc_id, name, background, valence, arousal, decay_rate, clock, next_id, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(npc_id) DO UPDATE SET
			name = excluded.name,
			background = excluded.background,
			valence = excluded.valence,
			arousal = excluded.arousal,
			decay_rate = excluded.decay_rate,
			clock = excluded.clock,
			next_id = excluded.next_id,
			saved_at = excluded.saved_at
	`, snap.ID, cfg.Identity.Name, cfg.Identity.Background,
		cfg.Personality.Valence, cfg.Personality.Arousal, cfg.Memory.DecayRate,
		snap.Clock, snap.NextID, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", snap.ID, err)
	}

	if _, err := tx.Exec("DELETE FROM npc_memories WHERE npc_id = ?", snap.ID); err != nil {
		return fmt.Errorf("clear memories %s: %w", snap.ID, err)
	}

	if len(snap.Memories) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO npc_memories (npc_id, id, source_id, text, valence, arousal, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare memories: %w", err)
		}
		defer stmt.Close()

		for _, m := range snap.Memories {
			source := sql.NullString{String: m.SourceID, Valid: m.HasSource()}
			if _, err := stmt.Exec(snap.ID, m.ID, source, m.Text, m.Coordinate.Valence, m.Coordinate.Arousal, m.CreatedAt); err != nil {
				return fmt.Errorf("insert memory %s/%d: %w", snap.ID, m.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save %s: %w", snap.ID, err)
	}
	return nil
}

// DeleteSnapshot removes the stored state of npcID. Missing ids are not an
// error.
func (db *DB) DeleteSnapshot(npcID string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete %s: %w", npcID, err)
	}
	defer tx.Rollback()

	// foreign_keys is a per-connection pragma, so the cascade is not relied on.
	if _, err := tx.Exec("DELETE FROM npc_memories WHERE npc_id = ?", npcID); err != nil {
		return fmt.Errorf("delete memories %s: %w", npcID, err)
	}
	if _, err := tx.Exec("DELETE FROM npc_sessions WHERE npc_id = ?", npcID); err != nil {
		return fmt.Errorf("delete session %s: %w", npcID, err)
	}
	return tx.Commit()
}

// LoadSnapshot returns the stored state of npcID, or nil if there is none.
func (db *DB) LoadSnapshot(npcID string) (*affect.Snapshot, error) {
	snaps, err := db.loadSnapshots("WHERE npc_id = ?", npcID)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return &snaps[0], nil
}

// LoadSnapshots returns every stored session, ordered by id.
func (db *DB) LoadSnapshots() ([]affect.Snapshot, error) {
	return db.loadSnapshots("")
}

func (db *DB) loadSnapshots(where string, args ...any) ([]affect.Snapshot, error) {
	rows, err := db.Query(`
		SELECT npc_id, name, background, valence, arousal, decay_rate, clock, next_id
		FROM npc_sessions `+where+` ORDER BY npc_id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}

	var snaps []affect.Snapshot
	for rows.Next() {
		var s affect.Snapshot
		c := &s.Config
		if err := rows.Scan(&s.ID, &c.Identity.Name, &c.Identity.Background,
			&c.Personality.Valence, &c.Personality.Arousal, &c.Memory.DecayRate,
			&s.Clock, &s.NextID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan session: %w", err)
		}
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Memories are read after the session cursor is closed; the in-memory
	// database only has one connection.
	for i := range snaps {
		mem, err := db.loadMemories(snaps[i].ID)
		if err != nil {
			return nil, err
		}
		snaps[i].Memories = mem
	}
	return snaps, nil
}

func (db *DB) loadMemories(npcID string) ([]affect.MemoryEntry, error) {
	rows, err := db.Query(`
		SELECT id, source_id, text, valence, arousal, created_at
		FROM npc_memories WHERE npc_id = ? ORDER BY id
	`, npcID)
	if err != nil {
		return nil, fmt.Errorf("query memories %s: %w", npcID, err)
	}
	defer rows.Close()

	var out []affect.MemoryEntry
	for rows.Next() {
		var m affect.MemoryEntry
		var source sql.NullString
		if err := rows.Scan(&m.ID, &source, &m.Text, &m.Coordinate.Valence, &m.Coordinate.Arousal, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		m.SourceID = source.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListSnapshots summarizes stored sessions, most recently saved first.
func (db *DB) ListSnapshots() ([]SnapshotSummary, error) {
	rows, err := db.Query(`
		SELECT s.npc_id, s.name, s.clock, s.saved_at,
			(SELECT COUNT(*) FROM npc_memories m WHERE m.npc_id = s.npc_id)
		FROM npc_sessions s
		ORDER BY s.saved_at DESC, s.npc_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotSummary
	for rows.Next() {
		var s SnapshotSummary
		if err := rows.Scan(&s.NpcID, &s.Name, &s.Clock, &s.SavedAt, &s.Memories); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
