package setlist

import (
	"context"
	"fmt"
)

// AutoMigrate creates the tables this service reads and writes. Tracks and group
// memberships are owned by other services; the tables are created here only so a
// fresh database works on its own.
func AutoMigrate(ctx context.Context, db DBTX) error {
	stmts := []struct {
		name string
		sql  string
	}{
		{"tracks", `
      CREATE TABLE IF NOT EXISTS tracks (
          id               TEXT PRIMARY KEY,
          title            TEXT NOT NULL,
          artist           TEXT NOT NULL DEFAULT '',
          tuning           TEXT,
          duration_seconds INT,
          created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
      )`},
		{"group_members", `
      CREATE TABLE IF NOT EXISTS group_members (
          group_id   TEXT NOT NULL,
          user_id    TEXT NOT NULL,
          created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
          PRIMARY KEY (group_id, user_id)
      )`},
		{"setlists", `
      CREATE TABLE IF NOT EXISTS setlists (
          id          TEXT PRIMARY KEY,
          name        TEXT NOT NULL,
          description TEXT,
          owner_id    TEXT NOT NULL,
          group_id    TEXT,
          is_private  BOOLEAN NOT NULL DEFAULT TRUE,
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
          updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
      )`},
		{"set_sections", `
      CREATE TABLE IF NOT EXISTS set_sections (
          id             TEXT PRIMARY KEY,
          setlist_id     TEXT NOT NULL REFERENCES setlists(id) ON DELETE CASCADE,
          name           TEXT NOT NULL,
          position       INT NOT NULL,
          break_duration INT,
          created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
      )`},
		{"set_sections position index", `
      CREATE UNIQUE INDEX IF NOT EXISTS idx_set_sections_setlist_position
      ON set_sections(setlist_id, position)`},
		{"set_items", `
      CREATE TABLE IF NOT EXISTS set_items (
          id              TEXT PRIMARY KEY,
          setlist_id      TEXT NOT NULL REFERENCES setlists(id) ON DELETE CASCADE,
          track_id        TEXT NOT NULL REFERENCES tracks(id),
          position        INT NOT NULL,
          custom_tuning   TEXT,
          notes           TEXT,
          custom_duration INT,
          section_id      TEXT REFERENCES set_sections(id) ON DELETE SET NULL,
          created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
      )`},
		{"set_items position index", `
      CREATE UNIQUE INDEX IF NOT EXISTS idx_set_items_setlist_position
      ON set_items(setlist_id, position)`},
		{"setlist_shares", `
      CREATE TABLE IF NOT EXISTS setlist_shares (
          id         TEXT PRIMARY KEY,
          setlist_id TEXT NOT NULL REFERENCES setlists(id) ON DELETE CASCADE,
          token      TEXT NOT NULL UNIQUE,
          permission TEXT NOT NULL CHECK (permission IN ('VIEW_ONLY', 'CAN_EDIT')),
          expires_at TIMESTAMPTZ,
          created_by TEXT NOT NULL,
          created_at TIMESTAMPTZ NOT NULL DEFAULT now()
      )`},
	}

	for _, st := range stmts {
		if _, err := db.Exec(ctx, st.sql); err != nil {
			return fmt.Errorf("migrate %s: %w", st.name, err)
		}
	}
	return nil
}
