package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sentinel/internal/pipeline"
	"sentinel/internal/services"
)

// AnalysisSummary is one row of the analysis archive listing.
type AnalysisSummary struct {
	MediaID     string
	SourcePath  string
	SourceKind  string
	CompletedAt time.Time
	Succeeded   int
	Failed      int
	Skipped     int
}

// SaveReport archives a completed run, replacing any earlier report for the
// same media id. The source columns come from report.Origin; a report without
// an origin is recorded as a local source with no path.
func (s *Store) SaveReport(ctx context.Context, report pipeline.Report) error {
	if report.MediaID == "" {
		return services.Wrap(services.ErrValidation, "index", "save report", "media id required", nil)
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	var succeeded, failed, skipped int
	for _, entry := range report.Units {
		switch entry.Status {
		case pipeline.StatusSucceeded:
			succeeded++
		case pipeline.StatusFailed:
			failed++
		case pipeline.StatusSkipped:
			skipped++
		}
	}
	sourcePath, sourceKind := "", "local"
	if report.Origin != nil {
		sourcePath = report.Origin.Location
		if report.Origin.Kind != "" {
			sourceKind = report.Origin.Kind
		}
	}
	completed := report.CompletedAt
	if completed.IsZero() {
		completed = s.now()
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO analyses (media_id, source_path, source_kind, completed_at, succeeded, failed, skipped, report_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(media_id) DO UPDATE SET
				source_path = excluded.source_path,
				source_kind = excluded.source_kind,
				completed_at = excluded.completed_at,
				succeeded = excluded.succeeded,
				failed = excluded.failed,
				skipped = excluded.skipped,
				report_json = excluded.report_json`,
			report.MediaID, sourcePath, sourceKind, completed.UTC().Format(time.RFC3339Nano),
			succeeded, failed, skipped, string(payload),
		)
		return err
	})
}

// LoadReport returns the archived report for mediaID. Unit results come back
// as generic JSON values; use unit.DecodeResult to recover typed payloads.
func (s *Store) LoadReport(ctx context.Context, mediaID string) (pipeline.Report, error) {
	var report pipeline.Report
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT report_json FROM analyses WHERE media_id = ?", mediaID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return report, services.Wrap(services.ErrNotFound, "index", "load report", "no analysis for media "+mediaID, nil)
	}
	if err != nil {
		return report, fmt.Errorf("load report: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return report, fmt.Errorf("decode report: %w", err)
	}
	return report, nil
}

// ListAnalyses returns the most recent archived runs first.
func (s *Store) ListAnalyses(ctx context.Context, limit int) ([]AnalysisSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT media_id, COALESCE(source_path, ''), source_kind, completed_at, succeeded, failed, skipped
		FROM analyses
		ORDER BY completed_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var out []AnalysisSummary
	for rows.Next() {
		var item AnalysisSummary
		var completed string
		if err := rows.Scan(&item.MediaID, &item.SourcePath, &item.SourceKind, &completed, &item.Succeeded, &item.Failed, &item.Skipped); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, completed); err == nil {
			item.CompletedAt = ts
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// DeleteMedia removes every artefact stored for mediaID.
func (s *Store) DeleteMedia(ctx context.Context, mediaID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			"DELETE FROM transcript_chunks WHERE media_id = ?",
			"DELETE FROM media WHERE media_id = ?",
			"DELETE FROM analyses WHERE media_id = ?",
			"DELETE FROM chat_messages WHERE media_id = ?",
		} {
			if _, err := tx.ExecContext(ctx, stmt, mediaID); err != nil {
				return fmt.Errorf("delete media: %w", err)
			}
		}
		return nil
	})
}

// Stats summarises the index contents.
type Stats struct {
	Media    int
	Chunks   int
	Analyses int
	Sessions int
}

// Stats counts indexed media, chunks, archived analyses, and chat sessions.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(1) FROM media),
			(SELECT COUNT(1) FROM transcript_chunks),
			(SELECT COUNT(1) FROM analyses),
			(SELECT COUNT(DISTINCT session_id) FROM chat_messages)`,
	).Scan(&st.Media, &st.Chunks, &st.Analyses, &st.Sessions)
	if err != nil {
		return Stats{}, fmt.Errorf("index stats: %w", err)
	}
	return st, nil
}

// ArchivedMediaIDs returns every media id with an archived report.
func (s *Store) ArchivedMediaIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT media_id FROM analyses ORDER BY media_id")
	if err != nil {
		return nil, fmt.Errorf("list archived media: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan archived media: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
