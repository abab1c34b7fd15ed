package config

import (
	"fmt"
	"time"
)

// SchedulerConfig controls the cron reconciliation loop.
type SchedulerConfig struct {
	ReconcileInterval time.Duration // default: every minute
}

// DefaultSchedulerConfig returns the scheduler's defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{ReconcileInterval: time.Minute}
}

// Validate checks internal consistency.
func (c SchedulerConfig) Validate() error {
	if c.ReconcileInterval <= 0 {
		return fmt.Errorf("reconcile_interval must be > 0")
	}
	return nil
}
