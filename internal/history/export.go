package history

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/fede/whisperaloud/internal/domain"
)

// Export serializes entries matching filters into the requested format.
func (s *Store) Export(ctx context.Context, format domain.ExportFormat, filters domain.SearchFilters) ([]byte, error) {
	entries, err := s.Search(ctx, "", filters, maxExportEntries, 0)
	if err != nil {
		return nil, fmt.Errorf("export: search entries: %w", err)
	}

	switch format {
	case domain.ExportFormatJSON:
		return json.MarshalIndent(entries, "", "  ")
	case domain.ExportFormatMarkdown:
		return exportMarkdown(entries), nil
	case domain.ExportFormatCSV:
		return exportCSV(entries)
	case domain.ExportFormatText:
		return exportText(entries), nil
	default:
		return nil, fmt.Errorf("export: unknown format %q", format)
	}
}

const maxExportEntries = 100000

func exportMarkdown(entries []domain.HistoryEntry) []byte {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Text)
	}
	return []byte(b.String())
}

func exportText(entries []domain.HistoryEntry) []byte {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Text)
	}
	return []byte(b.String())
}

func exportCSV(entries []domain.HistoryEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"id", "created_at", "language", "model_id", "confidence", "duration_sec", "favorite", "tags", "text"}); err != nil {
		return nil, err
	}
	for _, e := range entries {
		record := []string{
			strconv.FormatInt(e.ID, 10),
			e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			e.Language,
			e.ModelID,
			strconv.FormatFloat(e.Confidence, 'f', -1, 64),
			strconv.FormatFloat(e.DurationSec, 'f', -1, 64),
			strconv.FormatBool(e.Favorite),
			strings.Join(e.Tags, ";"),
			e.Text,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
