package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"sentinel/internal/services"
	"sentinel/internal/services/llm"
)

// History returns the last maxTurns question/answer pairs of a session in
// chronological order.
func (s *Store) History(ctx context.Context, sessionID string, maxTurns int) ([]llm.Message, error) {
	if maxTurns <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content FROM (
			SELECT id, role, content FROM chat_messages
			WHERE session_id = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC`, sessionID, maxTurns*2)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	defer rows.Close()

	var out []llm.Message
	for rows.Next() {
		var msg llm.Message
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// A window that opens on an answer would hand the model a reply with no
	// question; drop it.
	if len(out) > 0 && out[0].Role == llm.RoleAssistant {
		out = out[1:]
	}
	return out, nil
}

// AppendTurn records one question and its answer.
func (s *Store) AppendTurn(ctx context.Context, sessionID, mediaID, question, answer string) error {
	if strings.TrimSpace(sessionID) == "" {
		return services.Wrap(services.ErrValidation, "index", "append turn", "session id required", nil)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		now := s.timestamp()
		for _, msg := range []llm.Message{
			{Role: llm.RoleUser, Content: question},
			{Role: llm.RoleAssistant, Content: answer},
		} {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO chat_messages (session_id, media_id, role, content, created_at)
				VALUES (?, ?, ?, ?, ?)`,
				sessionID, mediaID, msg.Role, msg.Content, now,
			); err != nil {
				return fmt.Errorf("insert chat message: %w", err)
			}
		}
		return nil
	})
}
