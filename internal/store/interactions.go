package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
	"github.com/jpdacostaza/ai-rag-test-sub002/internal/privacy"
)

// InteractionStore is the append-only audit log of processed exchanges.
// Rows are never read back as memories.
type InteractionStore struct {
	db *DB
}

func NewInteractionStore(db *DB) *InteractionStore {
	return &InteractionStore{db: db}
}

// Insert records an interaction, stripping private blocks from both
// messages, and returns its row ID.
func (s *InteractionStore) Insert(ctx context.Context, in *models.Interaction) (string, error) {
	id := uuid.New().String()
	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	tools, err := marshalNullable(in.ToolsUsed, len(in.ToolsUsed) == 0)
	if err != nil {
		return "", fmt.Errorf("marshal tools_used: %w", err)
	}
	extra, err := marshalNullable(in.Context, len(in.Context) == 0)
	if err != nil {
		return "", fmt.Errorf("marshal context: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO interactions (id, user_id, conversation_id, user_message, assistant_response,
			response_time_ms, tools_used, context, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, in.UserID, in.ConversationID,
		privacy.StripPrivateTags(in.UserMessage),
		privacy.StripPrivateTags(in.AssistantResponse),
		int64(in.ResponseTime*1000), tools, extra, in.Source, ts.Unix())
	if err != nil {
		return "", fmt.Errorf("insert interaction: %w", err)
	}
	return id, nil
}

// ListByUser returns the most recent interactions of a user, newest first.
func (s *InteractionStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Interaction, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, conversation_id, user_message, assistant_response,
			response_time_ms, tools_used, context, source, created_at
		FROM interactions
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	var out []*models.Interaction
	for rows.Next() {
		var (
			in                       models.Interaction
			conv, resp, tools, extra sql.NullString
			ms, created              int64
		)
		if err := rows.Scan(&in.UserID, &conv, &in.UserMessage, &resp, &ms, &tools, &extra, &in.Source, &created); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		in.ConversationID = conv.String
		in.AssistantResponse = resp.String
		in.ResponseTime = float64(ms) / 1000
		in.Timestamp = time.Unix(created, 0)
		if tools.Valid {
			_ = json.Unmarshal([]byte(tools.String), &in.ToolsUsed)
		}
		if extra.Valid {
			_ = json.Unmarshal([]byte(extra.String), &in.Context)
		}
		out = append(out, &in)
	}
	return out, rows.Err()
}

// CountByUser returns how many interactions a user has on record.
func (s *InteractionStore) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM interactions WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count interactions: %w", err)
	}
	return n, nil
}

// PurgeOlderThan deletes interactions recorded before cutoff.
func (s *InteractionStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM interactions WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("purge interactions: %w", err)
	}
	return res.RowsAffected()
}

func marshalNullable(v any, empty bool) (sql.NullString, error) {
	if empty {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
