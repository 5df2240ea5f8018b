// Package repositories provides data access for durable conversation
// history.
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-analyst/pkg/database"
	"github.com/ekaya-inc/ekaya-analyst/pkg/memory"
	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

type turnRepository struct {
	db *database.DB
}

// NewTurnRepository creates a Postgres-backed turn store over the
// analyst_conversation_turns table.
func NewTurnRepository(db *database.DB) memory.TurnStore {
	return &turnRepository{db: db}
}

var _ memory.TurnStore = (*turnRepository)(nil)

// SaveTurn inserts one turn.
func (r *turnRepository) SaveTurn(ctx context.Context, turn *models.ConversationTurn) error {
	if turn.ID == uuid.Nil {
		turn.ID = uuid.New()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	var metadataJSON []byte
	if turn.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(turn.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO analyst_conversation_turns (
			id, session_id, created_at, user_query, agent_response, metadata
		) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		turn.ID, turn.SessionID, turn.Timestamp,
		turn.UserQuery, turn.AgentResponse, metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save conversation turn: %w", err)
	}

	return nil
}

// TurnsBySession returns the most recent turns for a session, oldest first.
// A non-positive limit returns everything.
func (r *turnRepository) TurnsBySession(ctx context.Context, sessionID string, limit int) ([]*models.ConversationTurn, error) {
	query := `
		SELECT id, session_id, created_at, user_query, agent_response, metadata
		FROM analyst_conversation_turns
		WHERE session_id = $1
		ORDER BY created_at DESC`

	args := []any{sessionID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation turns: %w", err)
	}
	defer rows.Close()

	var turns []*models.ConversationTurn
	for rows.Next() {
		var turn models.ConversationTurn
		var metadataJSON []byte
		if err := rows.Scan(&turn.ID, &turn.SessionID, &turn.Timestamp,
			&turn.UserQuery, &turn.AgentResponse, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan conversation turn: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &turn.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		turns = append(turns, &turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read conversation turns: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

// DeleteSession removes all turns for a session.
func (r *turnRepository) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM analyst_conversation_turns WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session turns: %w", err)
	}
	return nil
}
