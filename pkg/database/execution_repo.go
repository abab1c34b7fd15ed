package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/conductorhq/conductor/pkg/apierr"
	"github.com/conductorhq/conductor/pkg/models"
)

// ExecutionRepo persists WorkflowExecution rows and backs the worker
// pool's claim/retry/dead-letter lifecycle.
type ExecutionRepo struct {
	db *sql.DB
}

// ErrNoExecutionsAvailable indicates no pending execution is claimable.
var ErrNoExecutionsAvailable = errors.New("no executions available")

// Create inserts a new pending WorkflowExecution under the caller-supplied id.
func (r *ExecutionRepo) Create(ctx context.Context, workflowID string, id string, triggerData map[string]any) error {
	triggerJSON, err := json.Marshal(triggerData)
	if err != nil {
		return fmt.Errorf("encoding trigger_data: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflow_executions (id, workflow_id, status, trigger_data, node_results, created_at)
		VALUES ($1, $2, 'pending', $3, '{}', now())`,
		id, workflowID, triggerJSON)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

// ClaimNext atomically claims the oldest pending execution using
// SELECT ... FOR UPDATE SKIP LOCKED, transitioning it to running.
func (r *ExecutionRepo) ClaimNext(ctx context.Context) (*models.WorkflowExecution, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting claim transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, workflow_id, trigger_data, retry_count
		FROM workflow_executions
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`)

	var exec models.WorkflowExecution
	var triggerJSON []byte
	if err := row.Scan(&exec.ID, &exec.WorkflowID, &triggerJSON, &exec.RetryCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoExecutionsAvailable
		}
		return nil, fmt.Errorf("querying pending execution: %w", err)
	}
	if err := json.Unmarshal(triggerJSON, &exec.TriggerData); err != nil {
		return nil, fmt.Errorf("decoding trigger_data: %w", err)
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
		UPDATE workflow_executions SET status = 'running', started_at = $2, last_interaction_at = $2
		WHERE id = $1`, exec.ID, now); err != nil {
		return nil, fmt.Errorf("claiming execution: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	exec.Status = models.ExecutionRunning
	exec.StartedAt = &now
	exec.LastInteractionAt = &now
	return &exec, nil
}

// UpdateHeartbeat refreshes last_interaction_at for a running execution,
// called periodically by the owning worker so ReclaimOrphans can tell a
// still-healthy long-running job apart from one whose worker died. A no-op
// (not an error) if the execution has already left the running state.
func (r *ExecutionRepo) UpdateHeartbeat(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE workflow_executions SET last_interaction_at = now()
		WHERE id = $1 AND status = 'running'`, id)
	if err != nil {
		return fmt.Errorf("updating heartbeat: %w", err)
	}
	return nil
}

// Complete writes the terminal outcome of an execution.
func (r *ExecutionRepo) Complete(ctx context.Context, id string, status models.ExecutionStatus, nodeResults map[string]models.NodeResult, execErr string) error {
	resultsJSON, err := json.Marshal(nodeResults)
	if err != nil {
		return fmt.Errorf("encoding node_results: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE workflow_executions
		SET status = $2, node_results = $3, error = $4, completed_at = now()
		WHERE id = $1`, id, string(status), resultsJSON, execErr)
	if err != nil {
		return fmt.Errorf("completing execution: %w", err)
	}
	return nil
}

// Requeue resets a claimed-but-abandoned execution back to pending and
// increments its retry count, or moves it to a terminal failed/dead-letter
// state once MaxRetries is exhausted.
func (r *ExecutionRepo) Requeue(ctx context.Context, id string, maxRetries int, reason string) error {
	row := r.db.QueryRowContext(ctx, `SELECT retry_count FROM workflow_executions WHERE id = $1`, id)
	var retryCount int
	if err := row.Scan(&retryCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apierr.New(apierr.NotFound, "execution not found")
		}
		return fmt.Errorf("reading retry_count: %w", err)
	}

	if retryCount+1 > maxRetries {
		_, err := r.db.ExecContext(ctx, `
			UPDATE workflow_executions
			SET status = 'failed', retry_count = retry_count + 1, error = $2, completed_at = now()
			WHERE id = $1`, id, fmt.Sprintf("dead-lettered after %d retries: %s", maxRetries, reason))
		if err != nil {
			return fmt.Errorf("dead-lettering execution: %w", err)
		}
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE workflow_executions
		SET status = 'pending', retry_count = retry_count + 1, started_at = NULL, last_interaction_at = NULL, error = $2
		WHERE id = $1`, id, reason)
	if err != nil {
		return fmt.Errorf("requeuing execution: %w", err)
	}
	return nil
}

// ReclaimOrphans finds running executions whose heartbeat (last_interaction_at)
// has gone stale past threshold and requeues (or dead-letters) them. Keying
// off the heartbeat rather than started_at is what lets a worker that is
// still actively running a long job (and therefore still ticking its
// heartbeat) avoid having its row reclaimed out from under it.
func (r *ExecutionRepo) ReclaimOrphans(ctx context.Context, threshold time.Duration, maxRetries int) (int, error) {
	cutoff := time.Now().Add(-threshold)
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM workflow_executions
		WHERE status = 'running' AND last_interaction_at IS NOT NULL AND last_interaction_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("querying orphaned executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scanning orphan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating orphans: %w", err)
	}

	for _, id := range ids {
		if err := r.Requeue(ctx, id, maxRetries, "orphaned: worker lost"); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// QueueDepth returns the number of pending executions.
func (r *ExecutionRepo) QueueDepth(ctx context.Context) (int, error) {
	row := r.db.QueryRowContext(ctx, `SELECT count(*) FROM workflow_executions WHERE status = 'pending'`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("counting queue depth: %w", err)
	}
	return n, nil
}

// GetByID loads a single execution by id, used for client polling.
func (r *ExecutionRepo) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, workflow_id, status, trigger_data, node_results, error, retry_count, started_at, last_interaction_at, completed_at, created_at
		FROM workflow_executions WHERE id = $1`, id)

	var exec models.WorkflowExecution
	var status string
	var triggerJSON, resultsJSON []byte
	if err := row.Scan(&exec.ID, &exec.WorkflowID, &status, &triggerJSON, &resultsJSON, &exec.Error,
		&exec.RetryCount, &exec.StartedAt, &exec.LastInteractionAt, &exec.CompletedAt, &exec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierr.New(apierr.NotFound, "execution not found")
		}
		return nil, fmt.Errorf("loading execution: %w", err)
	}
	exec.Status = models.ExecutionStatus(status)
	if err := json.Unmarshal(triggerJSON, &exec.TriggerData); err != nil {
		return nil, fmt.Errorf("decoding trigger_data: %w", err)
	}
	if err := json.Unmarshal(resultsJSON, &exec.NodeResults); err != nil {
		return nil, fmt.Errorf("decoding node_results: %w", err)
	}
	return &exec, nil
}
