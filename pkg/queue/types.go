// Package queue implements the Task Queue / Worker Pool (C8): a durable,
// at-least-once work queue over WorkflowExecution rows, grounded on the
// teacher's pkg/queue (claim-poll-heartbeat-orphan worker pool) but
// adapted to claim WorkflowExecution rows instead of AlertSession rows
// and to drive a workflow.Engine instead of an agent session executor.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/conductorhq/conductor/pkg/models"
)

// ErrAtCapacity indicates the pool-wide concurrent execution limit has
// been reached; callers should back off and retry the poll.
var ErrAtCapacity = errors.New("at capacity")

// ExecutionRunner runs a single already-claimed WorkflowExecution to
// completion and persists its terminal outcome. Satisfied by
// *workflow.Engine; declared here so the queue package doesn't need to
// import workflow's other dependencies (tools, a2a, chat) into its own
// test doubles.
type ExecutionRunner interface {
	Execute(ctx context.Context, workflow *models.Workflow, execution *models.WorkflowExecution, userID string) (*models.WorkflowExecution, error)
}

// PoolHealth reports the aggregate health of a worker pool.
type PoolHealth struct {
	IsHealthy        bool           `json:"is_healthy"`
	DBReachable      bool           `json:"db_reachable"`
	DBError          string         `json:"db_error,omitempty"`
	PodID            string         `json:"pod_id"`
	ActiveWorkers    int            `json:"active_workers"`
	TotalWorkers     int            `json:"total_workers"`
	ActiveExecutions int            `json:"active_executions"`
	MaxConcurrent    int            `json:"max_concurrent"`
	QueueDepth       int            `json:"queue_depth"`
	WorkerStats      []WorkerHealth `json:"worker_stats"`
	LastOrphanScan   time.Time      `json:"last_orphan_scan"`
	OrphansRecovered int            `json:"orphans_recovered"`
}

// WorkerHealth reports the health of a single worker.
type WorkerHealth struct {
	ID                  string    `json:"id"`
	Status              string    `json:"status"`
	CurrentExecutionID  string    `json:"current_execution_id,omitempty"`
	ExecutionsProcessed int       `json:"executions_processed"`
	LastActivity        time.Time `json:"last_activity"`
}
