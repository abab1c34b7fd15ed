package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// orphanState tracks orphan detection metrics (thread-safe).
type orphanState struct {
	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// runOrphanDetection periodically scans for orphaned executions. All pods
// run this independently — ExecutionRepo.ReclaimOrphans is idempotent.
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.detectAndRecoverOrphans(ctx); err != nil {
				slog.Error("orphan detection failed", "error", err)
			}
		}
	}
}

// detectAndRecoverOrphans requeues (or dead-letters) running executions
// whose heartbeat (last_interaction_at) is older than OrphanThreshold.
func (p *WorkerPool) detectAndRecoverOrphans(ctx context.Context) error {
	n, err := p.client.Executions.ReclaimOrphans(ctx, p.config.OrphanThreshold, p.config.MaxRetries)
	if err != nil {
		return fmt.Errorf("reclaiming orphaned executions: %w", err)
	}

	p.orphans.mu.Lock()
	p.orphans.lastOrphanScan = time.Now()
	p.orphans.orphansRecovered += n
	p.orphans.mu.Unlock()

	if n > 0 {
		slog.Warn("reclaimed orphaned executions", "count", n)
	}
	return nil
}
