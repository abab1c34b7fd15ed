package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/conductorhq/conductor/pkg/apierr"
	"github.com/conductorhq/conductor/pkg/models"
)

// ConversationRepo persists Conversations and their Messages. Messages are
// always appended in strictly monotonic Seq order within one conversation;
// the repo is the only writer a given conversation sees at a time, per the
// concurrency model's single-writer-per-conversation guarantee.
type ConversationRepo struct {
	db *sql.DB
}

// Create inserts a new Conversation.
func (r *ConversationRepo) Create(ctx context.Context, c *models.Conversation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (id, agent_id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())`, c.ID, c.AgentID, c.UserID)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}
	return nil
}

// GetByID loads a Conversation by id.
func (r *ConversationRepo) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, agent_id, user_id, created_at, updated_at FROM conversations WHERE id = $1`, id)
	var c models.Conversation
	if err := row.Scan(&c.ID, &c.AgentID, &c.UserID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierr.New(apierr.NotFound, "conversation not found")
		}
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	return &c, nil
}

// NextSeq returns the next monotonic sequence number for appending a
// message to conversationID.
func (r *ConversationRepo) NextSeq(ctx context.Context, conversationID string) (int64, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = $1`, conversationID)
	var next int64
	if err := row.Scan(&next); err != nil {
		return 0, fmt.Errorf("computing next message seq: %w", err)
	}
	return next, nil
}

// AppendMessage persists a single Message.
func (r *ConversationRepo) AppendMessage(ctx context.Context, m *models.Message) error {
	var toolCallsJSON []byte
	if len(m.ToolCalls) > 0 {
		var err error
		toolCallsJSON, err = json.Marshal(m.ToolCalls)
		if err != nil {
			return fmt.Errorf("encoding tool_calls: %w", err)
		}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, tool_call_id, tool_calls, seq, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		m.ID, m.ConversationID, string(m.Role), m.Content, m.ToolCallID, toolCallsJSON, m.Seq)
	if err != nil {
		return fmt.Errorf("appending message: %w", err)
	}
	return nil
}

// History returns all messages of a conversation in creation order.
func (r *ConversationRepo) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, tool_call_id, tool_calls, seq, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY seq ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading message history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		var role string
		var toolCallsJSON []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.ToolCallID, &toolCallsJSON, &m.Seq, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Role = models.MessageRole(role)
		if len(toolCallsJSON) > 0 {
			if err := json.Unmarshal(toolCallsJSON, &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("decoding tool_calls: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
