package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/conductorhq/conductor/pkg/events"
)

// EventRepo backs events.CatchupQuerier: the "events" table that
// persistAndNotify writes alongside every pg_notify, queried here so a
// reconnecting WebSocket client can replay what it missed.
type EventRepo struct {
	db *sql.DB
}

// GetCatchupEvents returns events on channel with id > sinceID, oldest
// first, capped at limit.
func (r *EventRepo) GetCatchupEvents(ctx context.Context, channel string, sinceID, limit int) ([]events.CatchupEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, payload FROM events
		WHERE channel = $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3`, channel, sinceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying catchup events: %w", err)
	}
	defer rows.Close()

	var out []events.CatchupEvent
	for rows.Next() {
		var id int
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scanning catchup event: %w", err)
		}
		var payload map[string]any
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("unmarshaling catchup event payload: %w", err)
		}
		out = append(out, events.CatchupEvent{ID: id, Payload: payload})
	}
	return out, rows.Err()
}
