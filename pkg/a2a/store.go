// Package a2a implements the A2A Task Store (C6) and the Agent-to-Agent
// HTTP surface (agent card, task submit/poll/cancel), grounded on the
// original system's per-agent TaskStore/get_task_store pair
// (a2a/task_store.py) but reshaped per the design direction to replace
// module-level directory state with an explicit TaskStoreManager value
// constructed once and injected, rather than a package-level map guarded
// by a package-level lock.
package a2a

import (
	"sync"
	"time"

	"github.com/conductorhq/conductor/pkg/models"
)

// defaultTaskTTL bounds how long a terminal task is retained before the
// sweep reclaims it — the spec leaves A2A task retention as an open
// question and suggests a bounded LRU or TTL; TTL was chosen because it
// needs no access-order bookkeeping on the hot get/save path.
const defaultTaskTTL = 1 * time.Hour

// taskRecord pairs an A2ATask with the bookkeeping the store's sweep
// needs; not exported, callers only ever see *models.A2ATask.
type taskRecord struct {
	task       *models.A2ATask
	finishedAt time.Time // zero until the task reaches a terminal state
}

// Store is one agent's task table, guarded by its own mutex so that
// operations on different agents never contend.
type Store struct {
	mu    sync.Mutex
	tasks map[string]*taskRecord
}

func newStore() *Store {
	return &Store{tasks: make(map[string]*taskRecord)}
}

// Save inserts or replaces a task.
func (s *Store) Save(task *models.A2ATask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &taskRecord{task: task.Clone()}
	if isFinal(task.Status) {
		rec.finishedAt = time.Now()
	}
	s.tasks[task.TaskID] = rec
}

// Get returns a copy of the task, or false if absent.
func (s *Store) Get(taskID string) (*models.A2ATask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tasks[taskID]
	if !ok {
		return nil, false
	}
	return rec.task.Clone(), true
}

// Delete removes a task unconditionally.
func (s *Store) Delete(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, taskID)
}

// UpdateStatus transitions a task's status, optionally attaching a
// result or error. It is a no-op (returning the unchanged terminal
// record) if the task is already completed or failed.
func (s *Store) UpdateStatus(taskID string, status models.A2ATaskStatus, result map[string]any, errMsg string) (*models.A2ATask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tasks[taskID]
	if !ok {
		return nil, false
	}
	if rec.task.Status == models.A2ATaskCompleted || rec.task.Status == models.A2ATaskFailed {
		return rec.task.Clone(), true
	}

	rec.task.Status = status
	if result != nil {
		rec.task.Result = result
	}
	if errMsg != "" {
		rec.task.Error = errMsg
	}
	if isFinal(status) {
		rec.finishedAt = time.Now()
	}
	return rec.task.Clone(), true
}

// Cancel transitions a task to cancelled. A task already in a terminal
// state (completed/failed) is left untouched and its unchanged terminal
// record is returned — cancellation never reopens a finished task.
func (s *Store) Cancel(taskID string) (*models.A2ATask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tasks[taskID]
	if !ok {
		return nil, false
	}
	if rec.task.Status == models.A2ATaskCompleted || rec.task.Status == models.A2ATaskFailed {
		return rec.task.Clone(), true
	}
	rec.task.Status = models.A2ATaskCancelled
	rec.finishedAt = time.Now()
	return rec.task.Clone(), true
}

// List returns every task currently held, in no particular order.
func (s *Store) List() []*models.A2ATask {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.A2ATask, 0, len(s.tasks))
	for _, rec := range s.tasks {
		out = append(out, rec.task.Clone())
	}
	return out
}

// isFinal reports whether status should be eligible for TTL reclamation
// — wider than models.A2ATaskStatus.Terminal(), which governs only
// cancel-blocking and excludes cancelled itself.
func isFinal(status models.A2ATaskStatus) bool {
	return status.Terminal() || status == models.A2ATaskCancelled
}

// sweep removes terminal tasks older than ttl. Called by the manager's
// periodic sweep, never by request-path code.
func (s *Store) sweep(ttl time.Duration, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.tasks {
		if rec.finishedAt.IsZero() {
			continue
		}
		if now.Sub(rec.finishedAt) > ttl {
			delete(s.tasks, id)
			removed++
		}
	}
	return removed
}

// TaskStoreManager owns the per-agent store directory. The directory
// itself is guarded by one mutex so the first access for a given agent
// creates its Store exactly once; each Store then serializes its own
// operations independently, so traffic for distinct agents never
// contends on the same lock.
type TaskStoreManager struct {
	ttl time.Duration

	dirMu sync.Mutex
	dir   map[string]*Store
}

// NewTaskStoreManager constructs a manager. ttl <= 0 uses defaultTaskTTL.
func NewTaskStoreManager(ttl time.Duration) *TaskStoreManager {
	if ttl <= 0 {
		ttl = defaultTaskTTL
	}
	return &TaskStoreManager{ttl: ttl, dir: make(map[string]*Store)}
}

// For returns the Store for agentID, creating it on first access.
func (m *TaskStoreManager) For(agentID string) *Store {
	m.dirMu.Lock()
	defer m.dirMu.Unlock()
	s, ok := m.dir[agentID]
	if !ok {
		s = newStore()
		m.dir[agentID] = s
	}
	return s
}

// Sweep reclaims terminal tasks past their TTL across every known agent
// store. Intended to run on a slow ticker (e.g. alongside the scheduler
// reconciliation loop), never inline with a request.
func (m *TaskStoreManager) Sweep() int {
	m.dirMu.Lock()
	stores := make([]*Store, 0, len(m.dir))
	for _, s := range m.dir {
		stores = append(stores, s)
	}
	m.dirMu.Unlock()

	now := time.Now()
	total := 0
	for _, s := range stores {
		total += s.sweep(m.ttl, now)
	}
	return total
}
