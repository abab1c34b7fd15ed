package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/conductorhq/conductor/pkg/config"
	"github.com/conductorhq/conductor/pkg/database"
)

// WorkerPool manages a pool of queue workers that claim and run
// WorkflowExecutions.
type WorkerPool struct {
	podID  string
	client *database.Client
	config config.QueueConfig
	runner ExecutionRunner

	workers  []*Worker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Execution cancel registry: execution_id -> cancel function.
	activeExecutions map[string]context.CancelFunc
	mu               sync.RWMutex
	started          bool

	orphans orphanState
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(podID string, client *database.Client, cfg config.QueueConfig, runner ExecutionRunner) *WorkerPool {
	return &WorkerPool{
		podID:            podID,
		client:           client,
		config:           cfg,
		runner:           runner,
		workers:          make([]*Worker, 0, cfg.WorkerCount),
		stopCh:           make(chan struct{}),
		activeExecutions: make(map[string]context.CancelFunc),
	}
}

// Start runs a one-time orphan sweep (recovering anything left running by
// a previous crashed process), then spawns worker goroutines and the
// periodic orphan-detection loop. Safe to call multiple times; subsequent
// calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("worker pool already started, ignoring duplicate Start call", "pod_id", p.podID)
		return nil
	}
	p.started = true

	slog.Info("starting worker pool", "pod_id", p.podID, "worker_count", p.config.WorkerCount)

	if err := p.detectAndRecoverOrphans(ctx); err != nil {
		slog.Error("startup orphan sweep failed", "error", err)
	}

	for i := 0; i < p.config.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", p.podID, i)
		worker := NewWorker(workerID, p.podID, p.client, p.config, p.runner, p)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanDetection(ctx)
	}()

	slog.Info("worker pool started")
	return nil
}

// Stop signals all workers to stop and waits for them to finish. Workers
// finish their current execution before exiting (graceful shutdown).
func (p *WorkerPool) Stop() {
	slog.Info("stopping worker pool gracefully")

	active := p.getActiveExecutionIDs()
	if len(active) > 0 {
		slog.Info("waiting for active executions to complete", "count", len(active), "execution_ids", active)
	}

	for _, worker := range p.workers {
		worker.Stop()
	}

	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	slog.Info("worker pool stopped gracefully")
}

// RegisterExecution stores a cancel function for manual cancellation.
func (p *WorkerPool) RegisterExecution(executionID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeExecutions[executionID] = cancel
}

// UnregisterExecution removes the cancel function when processing ends.
func (p *WorkerPool) UnregisterExecution(executionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.activeExecutions, executionID)
}

// CancelExecution triggers context cancellation for an execution running
// on this pod. Returns true if the execution was found and cancelled
// here; a false return means it isn't running on this pod (it may still
// be running elsewhere, or already finished).
func (p *WorkerPool) CancelExecution(executionID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if cancel, ok := p.activeExecutions[executionID]; ok {
		cancel()
		return true
	}
	return false
}

// Health returns the current health status of the pool. ActiveExecutions
// reflects only executions running on this pod — the schema has no
// pod-ownership column to query pool-wide counts from, unlike the
// teacher's AlertSession.pod_id.
func (p *WorkerPool) Health() *PoolHealth {
	ctx := context.Background()

	queueDepth, errQ := p.client.Executions.QueueDepth(ctx)
	if errQ != nil {
		slog.Error("failed to query queue depth for health check", "pod_id", p.podID, "error", errQ)
	}

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == string(WorkerStatusWorking) {
			activeWorkers++
		}
	}

	dbHealthy := errQ == nil
	activeExecutions := len(p.getActiveExecutionIDs())
	isHealthy := len(p.workers) > 0 && activeExecutions <= p.config.MaxConcurrentExecutions && dbHealthy

	p.orphans.mu.Lock()
	lastOrphanScan := p.orphans.lastOrphanScan
	orphansRecovered := p.orphans.orphansRecovered
	p.orphans.mu.Unlock()

	var dbError string
	if !dbHealthy {
		dbError = fmt.Sprintf("queue depth query failed: %v", errQ)
	}

	return &PoolHealth{
		IsHealthy:        isHealthy,
		DBReachable:      dbHealthy,
		DBError:          dbError,
		PodID:            p.podID,
		ActiveWorkers:    activeWorkers,
		TotalWorkers:     len(p.workers),
		ActiveExecutions: activeExecutions,
		MaxConcurrent:    p.config.MaxConcurrentExecutions,
		QueueDepth:       queueDepth,
		WorkerStats:      workerStats,
		LastOrphanScan:   lastOrphanScan,
		OrphansRecovered: orphansRecovered,
	}
}

// getActiveExecutionIDs returns IDs of currently processing executions
// (for logging).
func (p *WorkerPool) getActiveExecutionIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.activeExecutions))
	for id := range p.activeExecutions {
		ids = append(ids, id)
	}
	return ids
}
