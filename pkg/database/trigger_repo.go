package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conductorhq/conductor/pkg/apierr"
	"github.com/conductorhq/conductor/pkg/models"
)

// ScheduleTriggerRepo persists ScheduleTrigger rows.
type ScheduleTriggerRepo struct {
	db *sql.DB
}

// ListActive returns all active schedule triggers, for the scheduler's
// periodic reconciliation tick.
func (r *ScheduleTriggerRepo) ListActive(ctx context.Context) ([]models.ScheduleTrigger, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workflow_id, cron_expression, timezone, is_active, last_run_at, next_run_at
		FROM schedule_triggers WHERE is_active = TRUE`)
	if err != nil {
		return nil, fmt.Errorf("listing active schedule triggers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.ScheduleTrigger
	for rows.Next() {
		var t models.ScheduleTrigger
		if err := rows.Scan(&t.ID, &t.WorkflowID, &t.CronExpression, &t.Timezone, &t.IsActive, &t.LastRunAt, &t.NextRunAt); err != nil {
			return nil, fmt.Errorf("scanning schedule trigger: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RecordFire updates last_run_at and the newly computed next_run_at after a
// trigger fires. Best-effort per spec: callers should log, not fail, on error.
func (r *ScheduleTriggerRepo) RecordFire(ctx context.Context, id string, lastRun, nextRun time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE schedule_triggers SET last_run_at = $2, next_run_at = $3 WHERE id = $1`,
		id, lastRun, nextRun)
	if err != nil {
		return fmt.Errorf("recording schedule trigger fire: %w", err)
	}
	return nil
}

// RecordNextRun sets next_run_at without touching last_run_at, for
// bootstrapping a trigger's schedule the first time it is seen.
func (r *ScheduleTriggerRepo) RecordNextRun(ctx context.Context, id string, nextRun time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE schedule_triggers SET next_run_at = $2 WHERE id = $1`,
		id, nextRun)
	if err != nil {
		return fmt.Errorf("recording schedule trigger next run: %w", err)
	}
	return nil
}

// WebhookTriggerRepo persists WebhookTrigger rows.
type WebhookTriggerRepo struct {
	db *sql.DB
}

// GetByPath loads the active webhook trigger registered at path.
func (r *WebhookTriggerRepo) GetByPath(ctx context.Context, path string) (*models.WebhookTrigger, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, workflow_id, webhook_path, secret, last_triggered_at
		FROM webhook_triggers WHERE webhook_path = $1`, path)

	var t models.WebhookTrigger
	if err := row.Scan(&t.ID, &t.WorkflowID, &t.WebhookPath, &t.Secret, &t.LastTriggeredAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierr.New(apierr.NotFound, "webhook trigger not found")
		}
		return nil, fmt.Errorf("loading webhook trigger: %w", err)
	}
	return &t, nil
}

// RecordTrigger updates last_triggered_at after a successful dispatch.
func (r *WebhookTriggerRepo) RecordTrigger(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE webhook_triggers SET last_triggered_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("recording webhook trigger fire: %w", err)
	}
	return nil
}
