package index

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"sentinel/internal/agents"
	"sentinel/internal/services"
	"sentinel/internal/textutil"
)

// IndexTranscript replaces the stored chunks for mediaID with transcript.
func (s *Store) IndexTranscript(ctx context.Context, mediaID string, transcript agents.Transcript) error {
	mediaID = strings.TrimSpace(mediaID)
	if mediaID == "" {
		return services.Wrap(services.ErrValidation, "index", "index transcript", "media id required", nil)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO media (media_id, language, duration_seconds, indexed_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(media_id) DO UPDATE SET
				language = excluded.language,
				duration_seconds = excluded.duration_seconds,
				indexed_at = excluded.indexed_at`,
			mediaID, transcript.Language, transcript.DurationSeconds, s.timestamp(),
		); err != nil {
			return fmt.Errorf("upsert media: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM transcript_chunks WHERE media_id = ?", mediaID); err != nil {
			return fmt.Errorf("clear chunks: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO transcript_chunks (media_id, seq, start_seconds, end_seconds, speaker, text)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare chunk insert: %w", err)
		}
		defer stmt.Close()
		for i, chunk := range transcript.Chunks {
			text := strings.TrimSpace(chunk.Text)
			if text == "" {
				continue
			}
			if _, err := stmt.ExecContext(ctx, mediaID, i, chunk.Start, chunk.End, nullable(chunk.Speaker), text); err != nil {
				return fmt.Errorf("insert chunk %d: %w", i, err)
			}
		}
		return nil
	})
}

// ChunkCount returns how many transcript chunks are indexed for mediaID.
func (s *Store) ChunkCount(ctx context.Context, mediaID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM transcript_chunks WHERE media_id = ?", mediaID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// Search returns up to limit passages of mediaID's transcript matching query,
// best first.
func (s *Store) Search(ctx context.Context, mediaID, query string, limit int) ([]agents.Passage, error) {
	if limit <= 0 {
		limit = 6
	}
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	hits, err := s.searchFTS(ctx, mediaID, terms, limit)
	if err != nil {
		return nil, err
	}
	if len(hits) > 0 {
		return hits, nil
	}
	return s.searchOverlap(ctx, mediaID, terms, limit)
}

// Retrieve implements agents.Retriever.
func (s *Store) Retrieve(ctx context.Context, mediaID, query string, limit int) ([]agents.Passage, error) {
	return s.Search(ctx, mediaID, query, limit)
}

func (s *Store) searchFTS(ctx context.Context, mediaID string, terms []string, limit int) ([]agents.Passage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.start_seconds, c.end_seconds, c.text, bm25(transcript_fts) AS rank
		FROM transcript_fts
		JOIN transcript_chunks c ON c.id = transcript_fts.rowid
		WHERE transcript_fts MATCH ? AND c.media_id = ?
		ORDER BY rank, c.seq
		LIMIT ?`,
		matchExpression(terms), mediaID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search transcript: %w", err)
	}
	defer rows.Close()

	var out []agents.Passage
	for rows.Next() {
		var p agents.Passage
		var rank float64
		if err := rows.Scan(&p.ChunkID, &p.Start, &p.End, &p.Text, &rank); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		// bm25 is lower-is-better; flip it so callers see higher-is-better.
		p.Score = -rank
		out = append(out, p)
	}
	return out, rows.Err()
}

// searchOverlap is the fallback when full-text search finds nothing. Chunks
// score one point per query term they contain as a substring, which catches
// partial words the FTS tokenizer does not split. TF-IDF cosine similarity
// over the transcript breaks ties.
func (s *Store) searchOverlap(ctx context.Context, mediaID string, terms []string, limit int) ([]agents.Passage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_seconds, end_seconds, text
		FROM transcript_chunks
		WHERE media_id = ?
		ORDER BY seq`, mediaID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	defer rows.Close()

	var chunks []agents.Passage
	var prints []*textutil.Fingerprint
	corpus := textutil.NewCorpus()
	for rows.Next() {
		var p agents.Passage
		if err := rows.Scan(&p.ChunkID, &p.Start, &p.End, &p.Text); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		fp := textutil.NewFingerprint(p.Text)
		corpus.Add(fp)
		chunks = append(chunks, p)
		prints = append(prints, fp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Expand each fragment to the transcript words containing it so the
	// similarity tie-break sees "crypto" as "cryptocurrency".
	var expanded []string
	for _, term := range terms {
		expanded = append(expanded, corpus.TermsContaining(term)...)
	}
	idf := corpus.IDF()
	query := textutil.NewFingerprint(strings.Join(expanded, " ")).WithIDF(idf)
	var out []agents.Passage
	for i, p := range chunks {
		lower := strings.ToLower(p.Text)
		for _, term := range terms {
			if strings.Contains(lower, term) {
				p.Score++
			}
		}
		if p.Score == 0 {
			continue
		}
		p.Score += textutil.CosineSimilarity(query, prints[i].WithIDF(idf))
		out = append(out, p)
	}
	slices.SortStableFunc(out, func(a, b agents.Passage) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// queryTerms splits a free-form query into distinct lowercase words.
func queryTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if f == "" || slices.Contains(out, f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// matchExpression ORs the quoted terms so FTS5 syntax in user input is inert.
func matchExpression(terms []string) string {
	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

func nullable(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
