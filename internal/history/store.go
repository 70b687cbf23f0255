// Package history is the durable record of transcriptions: an embedded
// relational store with full-text search and a content-addressed,
// deduplicated audio archive (SPEC_FULL §4.6), grounded on the pack's
// modernc.org/sqlite usage for embedded state.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO

	"github.com/fede/whisperaloud/internal/domain"
)

// Store is a SQLite-backed HistoryStore with a filesystem-backed,
// content-addressed audio archive.
type Store struct {
	db         *sql.DB
	archiveDir string
	modelID    string
}

// New opens (creating if necessary) the history database at dbPath and
// a content-addressed archive directory at archiveDir, running any
// pending schema migrations.
func New(dbPath, archiveDir string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}

	s := &Store{db: db, archiveDir: archiveDir}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}
	return s, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetModelID records the identity of the currently loaded ASR model,
// stamped onto entries created from here on.
func (s *Store) SetModelID(id string) {
	s.modelID = id
}

// Add inserts a new history entry, archiving audio (deduplicated by
// content hash) when archive is true and audio is non-empty. Entry
// text/FTS/archive-metadata writes land in a single transaction; the
// archive blob file itself is written beforehand and is idempotent by
// content hash, so a failed transaction leaves at worst an unreferenced
// but harmless file that a later Add with the same audio will reuse.
func (s *Store) Add(ctx context.Context, result domain.TranscriptionResult, audio []float32, sessionID string, archive bool) (domain.HistoryEntry, error) {
	var (
		archiveHash string
		byteSize    int64
	)

	if archive && len(audio) > 0 {
		hash, path, size, err := writeArchiveBlob(s.archiveDir, audio)
		if err != nil {
			return domain.HistoryEntry{}, fmt.Errorf("write archive blob: %w", err)
		}
		archiveHash = hash
		byteSize = size
		_ = path // the path is derived deterministically from the hash; not persisted separately
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	entry := domain.HistoryEntry{
		CreatedAt:   time.Now().UTC(),
		Text:        result.Text,
		Language:    result.Language,
		ModelID:     s.modelID,
		Confidence:  result.Confidence,
		DurationSec: result.AudioDurationSec,
		ArchiveHash: archiveHash,
		Tags:        []string{},
	}

	if archiveHash != "" {
		if err := upsertArchiveRef(ctx, tx, archiveHash, byteSize, len(audio)); err != nil {
			return domain.HistoryEntry{}, fmt.Errorf("upsert archive ref: %w", err)
		}
	}

	tagsJSON, err := json.Marshal(entry.Tags)
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("marshal tags: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO entries (created_at, text, language, model_id, confidence, duration_sec, archive_hash, favorite, tags, session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
	`, entry.CreatedAt.Format(time.RFC3339Nano), entry.Text, entry.Language, entry.ModelID, entry.Confidence, entry.DurationSec, nullableString(entry.ArchiveHash), string(tagsJSON), sessionID)
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("insert entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("read inserted id: %w", err)
	}
	entry.ID = id

	if _, err := tx.ExecContext(ctx, `INSERT INTO entries_fts (rowid, text) VALUES (?, ?)`, id, entry.Text); err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("insert fts row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("commit transaction: %w", err)
	}

	return entry, nil
}

// Get retrieves a single history entry by id.
func (s *Store) Get(ctx context.Context, id int64) (domain.HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, entrySelectColumns+` FROM entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("get entry %d: %w", id, err)
	}
	return entry, nil
}

// ListRecent returns up to limit entries, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, entrySelectColumns+` FROM entries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent entries: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

// Search runs a full-text query over entry text, narrowed by filters.
// An empty query matches every entry (filters still apply).
func (s *Store) Search(ctx context.Context, query string, filters domain.SearchFilters, limit, offset int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	var (
		clauses []string
		args    []any
	)

	base := entrySelectColumns + ` FROM entries`
	if strings.TrimSpace(query) != "" {
		base = `SELECT entries.id, entries.created_at, entries.text, entries.language, entries.model_id,
			entries.confidence, entries.duration_sec, entries.archive_hash, entries.favorite, entries.tags
			FROM entries_fts JOIN entries ON entries.id = entries_fts.rowid`
		clauses = append(clauses, "entries_fts MATCH ?")
		args = append(args, query)
	}

	if filters.Language != "" {
		clauses = append(clauses, "entries.language = ?")
		args = append(args, filters.Language)
	}
	if filters.ModelID != "" {
		clauses = append(clauses, "entries.model_id = ?")
		args = append(args, filters.ModelID)
	}
	if filters.Favorite != nil {
		clauses = append(clauses, "entries.favorite = ?")
		args = append(args, boolToInt(*filters.Favorite))
	}
	if !filters.FromTime.IsZero() {
		clauses = append(clauses, "entries.created_at >= ?")
		args = append(args, filters.FromTime.UTC().Format(time.RFC3339Nano))
	}
	if !filters.ToTime.IsZero() {
		clauses = append(clauses, "entries.created_at <= ?")
		args = append(args, filters.ToTime.UTC().Format(time.RFC3339Nano))
	}

	stmt := base
	if len(clauses) > 0 {
		stmt += " WHERE " + strings.Join(clauses, " AND ")
	}
	stmt += " ORDER BY entries.id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("search entries: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

// Delete removes an entry and decrements its archive reference count,
// deleting the archive blob once the count reaches zero. One transaction.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var archiveHash sql.NullString
	if err := tx.QueryRowContext(ctx, `SELECT archive_hash FROM entries WHERE id = ?`, id).Scan(&archiveHash); err != nil {
		return fmt.Errorf("lookup entry %d: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries_fts WHERE rowid = ?`, id); err != nil {
		return fmt.Errorf("delete fts row: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	var emptied string
	if archiveHash.Valid {
		emptied, err = decrementArchiveRef(ctx, tx, archiveHash.String)
		if err != nil {
			return fmt.Errorf("decrement archive ref: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	if emptied != "" {
		_ = removeArchiveBlob(s.archiveDir, emptied)
	}
	return nil
}

// ToggleFavorite flips an entry's favorite flag and returns the new value.
func (s *Store) ToggleFavorite(ctx context.Context, id int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var favorite bool
	if err := tx.QueryRowContext(ctx, `SELECT favorite FROM entries WHERE id = ?`, id).Scan(&favorite); err != nil {
		return false, fmt.Errorf("lookup entry %d: %w", id, err)
	}
	favorite = !favorite

	if _, err := tx.ExecContext(ctx, `UPDATE entries SET favorite = ? WHERE id = ?`, boolToInt(favorite), id); err != nil {
		return false, fmt.Errorf("update favorite: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}
	return favorite, nil
}

// SetTags replaces an entry's free-form tag set.
func (s *Store) SetTags(ctx context.Context, id int64, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE entries SET tags = ? WHERE id = ?`, string(tagsJSON), id); err != nil {
		return fmt.Errorf("set tags: %w", err)
	}
	return nil
}

// RetentionSweep deletes entries older than retentionDays, cascading
// archive ref-count decrements, and returns the number of entries removed.
func (s *Store) RetentionSweep(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM entries WHERE created_at < ?`, cutoff.Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("find expired entries: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("scan expired entry id: %w", err)
		}
		ids = append(ids, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			return 0, fmt.Errorf("delete expired entry %d: %w", id, err)
		}
	}
	return len(ids), nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
