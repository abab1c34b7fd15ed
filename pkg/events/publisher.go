package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// EventPublisher publishes events for WebSocket delivery.
// Persistent events are stored in the events table then broadcast via NOTIFY.
// Transient events (streaming chunks, progress counters) are broadcast via
// NOTIFY only.
//
// Each public method accepts a specific typed payload struct — see payloads.go.
// Internally, payloads are marshaled to JSON and routed to the appropriate
// channel via persistAndNotify or notifyOnly.
type EventPublisher struct {
	db *sql.DB
}

// NewEventPublisher creates a new EventPublisher.
// The db parameter should be the *sql.DB from database.Client.DB().
func NewEventPublisher(db *sql.DB) *EventPublisher {
	return &EventPublisher{db: db}
}

// --- Typed public methods ---

// PublishExecutionStatus persists and broadcasts an execution.status event
// to the execution's own channel, marking a WorkflowExecution's lifecycle
// transition (running, completed, failed).
func (p *EventPublisher) PublishExecutionStatus(ctx context.Context, executionID string, payload ExecutionStatusPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal ExecutionStatusPayload: %w", err)
	}
	return p.persistAndNotify(ctx, executionID, ExecutionChannel(executionID), payloadJSON)
}

// PublishNodeResult persists and broadcasts a node.result event, once per
// node as the workflow engine finishes executing it.
func (p *EventPublisher) PublishNodeResult(ctx context.Context, executionID string, payload NodeResultPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal NodeResultPayload: %w", err)
	}
	return p.persistAndNotify(ctx, executionID, ExecutionChannel(executionID), payloadJSON)
}

// PublishExecutionProgress broadcasts a transient execution.progress event
// to both the execution's own channel and GlobalExecutionsChannel (no DB
// persistence). Both publishes are best-effort: if the first fails, the
// second is still attempted. Returns the first error encountered, if any.
func (p *EventPublisher) PublishExecutionProgress(ctx context.Context, executionID string, payload ExecutionProgressPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal ExecutionProgressPayload: %w", err)
	}

	var firstErr error
	if err := p.notifyOnly(ctx, ExecutionChannel(executionID), payloadJSON); err != nil {
		slog.Warn("failed to publish execution progress to execution channel",
			"execution_id", executionID, "error", err)
		firstErr = err
	}
	if err := p.notifyOnly(ctx, GlobalExecutionsChannel, payloadJSON); err != nil {
		slog.Warn("failed to publish execution progress to global channel",
			"execution_id", executionID, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PublishChatMessage persists and broadcasts a chat.message event, once a
// full assistant or tool message is persisted to the conversation.
func (p *EventPublisher) PublishChatMessage(ctx context.Context, conversationID string, payload ChatMessagePayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal ChatMessagePayload: %w", err)
	}
	return p.persistAndNotify(ctx, conversationID, ConversationChannel(conversationID), payloadJSON)
}

// PublishStreamChunk broadcasts a stream.chunk transient event (no DB
// persistence). Carries one content delta — ephemeral, lost on
// disconnect.
func (p *EventPublisher) PublishStreamChunk(ctx context.Context, conversationID string, payload StreamChunkPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal StreamChunkPayload: %w", err)
	}
	return p.notifyOnly(ctx, ConversationChannel(conversationID), payloadJSON)
}

// --- Internal core methods ---

// persistAndNotify persists a pre-marshaled event to the database and broadcasts
// via NOTIFY in a single transaction (pg_notify is transactional — held until COMMIT).
func (p *EventPublisher) persistAndNotify(ctx context.Context, subjectID, channel string, payloadJSON []byte) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// 1. Persist to events table (within transaction)
	var eventID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO events (subject_id, channel, payload, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		subjectID, channel, payloadJSON, time.Now(),
	).Scan(&eventID)
	if err != nil {
		return fmt.Errorf("failed to persist event: %w", err)
	}

	// Build NOTIFY payload with db_event_id for catchup tracking.
	notifyPayload, err := injectDBEventIDAndTruncate(payloadJSON, eventID)
	if err != nil {
		return err
	}

	// 2. pg_notify within same transaction — held until COMMIT
	_, err = tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload)
	if err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}

	// 3. Commit — INSERT is persisted and NOTIFY fires atomically
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event transaction: %w", err)
	}

	return nil
}

// notifyOnly broadcasts a pre-marshaled event via NOTIFY without persisting to DB.
func (p *EventPublisher) notifyOnly(ctx context.Context, channel string, payloadJSON []byte) error {
	notifyPayload, err := truncateIfNeeded(string(payloadJSON))
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload)
	if err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}
	return nil
}

// --- Internal helpers ---

// injectDBEventIDAndTruncate adds db_event_id to the JSON payload for NOTIFY
// delivery and applies truncation if the result exceeds PostgreSQL's limit.
func injectDBEventIDAndTruncate(payloadJSON []byte, dbEventID int64) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(payloadJSON, &m); err != nil {
		return "", fmt.Errorf("failed to unmarshal payload for db_event_id injection: %w", err)
	}
	m["db_event_id"] = dbEventID

	enrichedBytes, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal enriched NOTIFY payload: %w", err)
	}

	return truncateIfNeeded(string(enrichedBytes))
}

// truncateIfNeeded returns the payload string as-is if it fits within
// PostgreSQL's 8000-byte NOTIFY limit, otherwise returns a minimal
// truncation envelope with only routing fields.
func truncateIfNeeded(payloadStr string) (string, error) {
	if len(payloadStr) <= 7900 {
		return payloadStr, nil
	}
	return buildTruncatedPayload([]byte(payloadStr))
}

// buildTruncatedPayload creates a minimal truncation envelope from the full
// JSON payload bytes, extracting only the routing fields the client needs
// to fetch the complete event from the database.
func buildTruncatedPayload(payloadBytes []byte) (string, error) {
	var routing struct {
		Type           string `json:"type"`
		ExecutionID    string `json:"execution_id,omitempty"`
		ConversationID string `json:"conversation_id,omitempty"`
		DBEventID      *int64 `json:"db_event_id,omitempty"`
	}
	if err := json.Unmarshal(payloadBytes, &routing); err != nil {
		return "", fmt.Errorf("failed to extract routing fields for truncation: %w", err)
	}

	truncated := map[string]any{
		"type":      routing.Type,
		"truncated": true,
	}
	if routing.ExecutionID != "" {
		truncated["execution_id"] = routing.ExecutionID
	}
	if routing.ConversationID != "" {
		truncated["conversation_id"] = routing.ConversationID
	}
	if routing.DBEventID != nil {
		truncated["db_event_id"] = *routing.DBEventID
	}

	truncBytes, err := json.Marshal(truncated)
	if err != nil {
		return "", fmt.Errorf("failed to marshal truncated payload: %w", err)
	}
	return string(truncBytes), nil
}
