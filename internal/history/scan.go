package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fede/whisperaloud/internal/domain"
)

const entrySelectColumns = `SELECT id, created_at, text, language, model_id, confidence, duration_sec, archive_hash, favorite, tags`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (domain.HistoryEntry, error) {
	var (
		entry       domain.HistoryEntry
		createdAt   string
		archiveHash sql.NullString
		favorite    int
		tagsJSON    string
	)

	if err := row.Scan(&entry.ID, &createdAt, &entry.Text, &entry.Language, &entry.ModelID,
		&entry.Confidence, &entry.DurationSec, &archiveHash, &favorite, &tagsJSON); err != nil {
		return domain.HistoryEntry{}, err
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("parse created_at: %w", err)
	}
	entry.CreatedAt = parsed
	entry.ArchiveHash = archiveHash.String
	entry.Favorite = favorite != 0

	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &entry.Tags); err != nil {
			return domain.HistoryEntry{}, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if entry.Tags == nil {
		entry.Tags = []string{}
	}

	return entry, nil
}

func scanEntries(rows *sql.Rows) ([]domain.HistoryEntry, error) {
	var entries []domain.HistoryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
