package config

import (
	"fmt"
	"time"
)

// QueueConfig controls how the worker pool polls, claims, and retries
// WorkflowExecution jobs, mirroring the Celery defaults the original
// system used (task_time_limit=300s, acks_late, reject_on_worker_lost,
// bounded retries).
type QueueConfig struct {
	WorkerCount             int
	MaxConcurrentExecutions int
	PollInterval            time.Duration
	PollIntervalJitter      time.Duration
	TaskTimeLimit           time.Duration // per-job wall clock bound (task_time_limit)
	GracefulShutdownTimeout time.Duration
	HeartbeatInterval       time.Duration // how often a worker refreshes last_interaction_at while running a job
	OrphanDetectionInterval time.Duration
	OrphanThreshold         time.Duration
	MaxRetries              int // bounded retries before dead-letter
}

// DefaultQueueConfig mirrors celery_app.py's numeric defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		WorkerCount:             5,
		MaxConcurrentExecutions: 10,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		TaskTimeLimit:           300 * time.Second,
		GracefulShutdownTimeout: 300 * time.Second,
		HeartbeatInterval:       30 * time.Second,
		OrphanDetectionInterval: 1 * time.Minute,
		OrphanThreshold:         5 * time.Minute,
		MaxRetries:              3,
	}
}

// Validate checks internal consistency of the queue settings.
func (c QueueConfig) Validate() error {
	if c.WorkerCount < 1 {
		return fmt.Errorf("worker_count must be >= 1, got %d", c.WorkerCount)
	}
	if c.MaxConcurrentExecutions < 1 {
		return fmt.Errorf("max_concurrent_executions must be >= 1, got %d", c.MaxConcurrentExecutions)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.TaskTimeLimit <= 0 {
		return fmt.Errorf("task_time_limit must be > 0")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be > 0")
	}
	return nil
}
