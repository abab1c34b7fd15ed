package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/conductorhq/conductor/pkg/config"
	"github.com/conductorhq/conductor/pkg/database"
	"github.com/conductorhq/conductor/pkg/models"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// ExecutionRegistry is the subset of WorkerPool used by Worker to register
// a running execution's cancel function for API-triggered cancellation.
type ExecutionRegistry interface {
	RegisterExecution(executionID string, cancel context.CancelFunc)
	UnregisterExecution(executionID string)
}

// Worker is a single queue worker that polls for and runs
// WorkflowExecutions.
type Worker struct {
	id     string
	podID  string
	client *database.Client
	config config.QueueConfig
	runner ExecutionRunner
	pool   ExecutionRegistry

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu                  sync.RWMutex
	status              WorkerStatus
	currentExecutionID  string
	executionsProcessed int
	lastActivity        time.Time
}

// NewWorker creates a new queue worker.
func NewWorker(id, podID string, client *database.Client, cfg config.QueueConfig, runner ExecutionRunner, pool ExecutionRegistry) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		client:       client,
		config:       cfg,
		runner:       runner,
		pool:         pool,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish. Safe to
// call multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:                  w.id,
		Status:              string(w.status),
		CurrentExecutionID:  w.currentExecutionID,
		ExecutionsProcessed: w.executionsProcessed,
		LastActivity:        w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, database.ErrNoExecutionsAvailable) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("error processing execution", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess checks capacity, claims an execution, and runs it
// through to a terminal outcome.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	var active int
	if err := w.client.DB().QueryRowContext(ctx,
		`SELECT count(*) FROM workflow_executions WHERE status = 'running'`).Scan(&active); err != nil {
		return fmt.Errorf("counting running executions: %w", err)
	}
	if active >= w.config.MaxConcurrentExecutions {
		return ErrAtCapacity
	}

	execution, err := w.client.Executions.ClaimNext(ctx)
	if err != nil {
		return err
	}

	log := slog.With("execution_id", execution.ID, "worker_id", w.id)
	log.Info("execution claimed")

	wf, err := w.client.Workflows.GetByIDUnscoped(ctx, execution.WorkflowID)
	if err != nil {
		if reqErr := w.client.Executions.Requeue(context.Background(), execution.ID, w.config.MaxRetries, fmt.Sprintf("loading workflow: %v", err)); reqErr != nil {
			log.Error("failed to requeue execution after workflow load failure", "error", reqErr)
		}
		return fmt.Errorf("loading workflow %q: %w", execution.WorkflowID, err)
	}

	w.setStatus(WorkerStatusWorking, execution.ID)
	defer w.setStatus(WorkerStatusIdle, "")

	execCtx, cancel := context.WithTimeout(ctx, w.config.TaskTimeLimit)
	defer cancel()

	w.pool.RegisterExecution(execution.ID, cancel)
	defer w.pool.UnregisterExecution(execution.ID)

	heartbeatCtx, cancelHeartbeat := context.WithCancel(execCtx)
	go w.runHeartbeat(heartbeatCtx, execution.ID)
	defer cancelHeartbeat()

	if runErr := w.runExecution(execCtx, wf, execution); runErr != nil {
		return runErr
	}

	// task_time_limit: a job that ran past the wall-clock bound is
	// abandoned and retried even though Execute may already have
	// persisted a failed outcome from the cancelled node it was
	// mid-running — Requeue below supersedes that with a fresh pending
	// attempt (or a dead-letter once MaxRetries is exhausted).
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		if reqErr := w.client.Executions.Requeue(context.Background(), execution.ID, w.config.MaxRetries,
			fmt.Sprintf("exceeded task_time_limit of %s", w.config.TaskTimeLimit)); reqErr != nil {
			log.Error("failed to requeue timed-out execution", "error", reqErr)
		}
	}

	w.mu.Lock()
	w.executionsProcessed++
	w.mu.Unlock()

	log.Info("execution processing complete")
	return nil
}

// runExecution invokes the engine, recovering from a panic the way the
// spec's "on panic/unhandled error: retry with bounded attempts" contract
// requires — a crashed node must requeue the job, not take the worker
// down with it.
func (w *Worker) runExecution(ctx context.Context, wf *models.Workflow, execution *models.WorkflowExecution) (err error) {
	defer func() {
		if r := recover(); r != nil {
			reqErr := w.client.Executions.Requeue(context.Background(), execution.ID, w.config.MaxRetries, fmt.Sprintf("panic: %v", r))
			if reqErr != nil {
				err = fmt.Errorf("execution %q panicked (%v) and requeue failed: %w", execution.ID, r, reqErr)
				return
			}
			err = fmt.Errorf("execution %q panicked: %v", execution.ID, r)
		}
	}()

	if _, execErr := w.runner.Execute(ctx, wf, execution, wf.UserID); execErr != nil {
		// Execute only returns a non-nil error when persisting the terminal
		// outcome itself failed; the row is left running, so it surfaces
		// through the next orphan scan instead.
		return fmt.Errorf("executing workflow %q: %w", wf.ID, execErr)
	}
	return nil
}

// runHeartbeat periodically refreshes last_interaction_at while this
// worker owns the execution, so ReclaimOrphans can tell a job still being
// actively worked apart from one whose worker died mid-run.
func (w *Worker) runHeartbeat(ctx context.Context, executionID string) {
	ticker := time.NewTicker(w.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.client.Executions.UpdateHeartbeat(ctx, executionID); err != nil {
				slog.Warn("heartbeat update failed", "execution_id", executionID, "error", err)
			}
		}
	}
}

// pollInterval returns the poll duration with jitter, in
// [base-jitter, base+jitter]. A non-positive jitter disables it.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, executionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentExecutionID = executionID
	w.lastActivity = time.Now()
}
