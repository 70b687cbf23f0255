package history

import "database/sql"

// migrations is applied in order, each in its own transaction, tracked
// by a schema_version table (SPEC_FULL §6: "forward-migrated on open,
// one migration function per version bump").
var migrations = []func(*sql.Tx) error{
	migrateV1,
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var current int
	row := db.QueryRow(`SELECT version FROM schema_version LIMIT 1`)
	switch err := row.Scan(&current); err {
	case sql.ErrNoRows:
		current = 0
	case nil:
		// fall through with current set
	default:
		return err
	}

	for version := current; version < len(migrations); version++ {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if err := migrations[version](tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.Exec(`DELETE FROM schema_version`); err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version+1); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func migrateV1(tx *sql.Tx) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			text TEXT NOT NULL,
			language TEXT NOT NULL DEFAULT '',
			model_id TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL DEFAULT 0,
			duration_sec REAL NOT NULL DEFAULT 0,
			archive_hash TEXT,
			favorite INTEGER NOT NULL DEFAULT 0,
			tags TEXT NOT NULL DEFAULT '[]',
			session_id TEXT NOT NULL DEFAULT ''
		)`,
		// A standalone (not external-content) FTS5 table: it stores its
		// own copy of text, which costs some space but keeps DELETE and
		// per-row rowid INSERT usable as plain DML against the index.
		`CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(text)`,
		`CREATE TABLE IF NOT EXISTS archive (
			hash TEXT PRIMARY KEY,
			byte_size INTEGER NOT NULL,
			sample_count INTEGER NOT NULL,
			sample_rate INTEGER NOT NULL DEFAULT 16000,
			created_at TEXT NOT NULL,
			ref_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_created_at ON entries(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_archive_hash ON entries(archive_hash)`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
