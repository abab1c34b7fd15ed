package a2a_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conductorhq/conductor/pkg/a2a"
	"github.com/conductorhq/conductor/pkg/models"
)

func TestStore_SaveAndGet(t *testing.T) {
	mgr := a2a.NewTaskStoreManager(time.Hour)
	store := mgr.For("agent-1")

	task := &models.A2ATask{TaskID: "t1", AgentID: "agent-1", Status: models.A2ATaskPending}
	store.Save(task)

	got, ok := store.Get("t1")
	require.True(t, ok)
	require.Equal(t, "t1", got.TaskID)

	// returned value is a copy: mutating it must not affect the store
	got.Status = models.A2ATaskFailed
	again, _ := store.Get("t1")
	require.Equal(t, models.A2ATaskPending, again.Status)
}

func TestStore_Get_MissingReturnsFalse(t *testing.T) {
	mgr := a2a.NewTaskStoreManager(time.Hour)
	store := mgr.For("agent-1")

	_, ok := store.Get("nope")
	require.False(t, ok)
}

func TestStore_Delete(t *testing.T) {
	mgr := a2a.NewTaskStoreManager(time.Hour)
	store := mgr.For("agent-1")
	store.Save(&models.A2ATask{TaskID: "t1", Status: models.A2ATaskPending})

	store.Delete("t1")
	_, ok := store.Get("t1")
	require.False(t, ok)
}

func TestTaskStoreManager_For_IsolatesPerAgentAndIsStableAcrossCalls(t *testing.T) {
	mgr := a2a.NewTaskStoreManager(time.Hour)

	storeA := mgr.For("agent-a")
	storeA.Save(&models.A2ATask{TaskID: "t1", Status: models.A2ATaskPending})

	storeB := mgr.For("agent-b")
	_, ok := storeB.Get("t1")
	require.False(t, ok, "agents must not see each other's tasks")

	// calling For again for the same agent returns the same store
	again := mgr.For("agent-a")
	_, ok = again.Get("t1")
	require.True(t, ok)
}

func TestStore_UpdateStatus_TransitionsAndAttachesResultOrError(t *testing.T) {
	mgr := a2a.NewTaskStoreManager(time.Hour)
	store := mgr.For("agent-1")
	store.Save(&models.A2ATask{TaskID: "t1", Status: models.A2ATaskPending})

	updated, ok := store.UpdateStatus("t1", models.A2ATaskRunning, nil, "")
	require.True(t, ok)
	require.Equal(t, models.A2ATaskRunning, updated.Status)

	result := map[string]any{"answer": 42}
	updated, ok = store.UpdateStatus("t1", models.A2ATaskCompleted, result, "")
	require.True(t, ok)
	require.Equal(t, models.A2ATaskCompleted, updated.Status)
	require.Equal(t, 42, updated.Result["answer"])
}

func TestStore_UpdateStatus_NoOpOnceCompleted(t *testing.T) {
	mgr := a2a.NewTaskStoreManager(time.Hour)
	store := mgr.For("agent-1")
	store.Save(&models.A2ATask{TaskID: "t1", Status: models.A2ATaskCompleted, Result: map[string]any{"final": true}})

	updated, ok := store.UpdateStatus("t1", models.A2ATaskFailed, nil, "should not apply")
	require.True(t, ok)
	require.Equal(t, models.A2ATaskCompleted, updated.Status, "a completed task can never be moved back to failed")
	require.Empty(t, updated.Error)
}

func TestStore_UpdateStatus_NoOpOnceFailed(t *testing.T) {
	mgr := a2a.NewTaskStoreManager(time.Hour)
	store := mgr.For("agent-1")
	store.Save(&models.A2ATask{TaskID: "t1", Status: models.A2ATaskFailed, Error: "boom"})

	updated, ok := store.UpdateStatus("t1", models.A2ATaskCompleted, map[string]any{"x": 1}, "")
	require.True(t, ok)
	require.Equal(t, models.A2ATaskFailed, updated.Status)
	require.Equal(t, "boom", updated.Error)
}

func TestStore_UpdateStatus_MissingTaskReturnsFalse(t *testing.T) {
	mgr := a2a.NewTaskStoreManager(time.Hour)
	store := mgr.For("agent-1")

	_, ok := store.UpdateStatus("nope", models.A2ATaskRunning, nil, "")
	require.False(t, ok)
}

func TestStore_Cancel_TransitionsPendingOrRunningToCancelled(t *testing.T) {
	mgr := a2a.NewTaskStoreManager(time.Hour)
	store := mgr.For("agent-1")
	store.Save(&models.A2ATask{TaskID: "t1", Status: models.A2ATaskRunning})

	cancelled, ok := store.Cancel("t1")
	require.True(t, ok)
	require.Equal(t, models.A2ATaskCancelled, cancelled.Status)
}

func TestStore_Cancel_NoOpOnTerminalStates(t *testing.T) {
	mgr := a2a.NewTaskStoreManager(time.Hour)

	completedStore := mgr.For("agent-1")
	completedStore.Save(&models.A2ATask{TaskID: "t1", Status: models.A2ATaskCompleted})
	result, ok := completedStore.Cancel("t1")
	require.True(t, ok)
	require.Equal(t, models.A2ATaskCompleted, result.Status, "cancel must never reopen a completed task")

	failedStore := mgr.For("agent-2")
	failedStore.Save(&models.A2ATask{TaskID: "t2", Status: models.A2ATaskFailed})
	result, ok = failedStore.Cancel("t2")
	require.True(t, ok)
	require.Equal(t, models.A2ATaskFailed, result.Status)
}

func TestStore_List(t *testing.T) {
	mgr := a2a.NewTaskStoreManager(time.Hour)
	store := mgr.For("agent-1")
	store.Save(&models.A2ATask{TaskID: "t1", Status: models.A2ATaskPending})
	store.Save(&models.A2ATask{TaskID: "t2", Status: models.A2ATaskRunning})

	all := store.List()
	require.Len(t, all, 2)
}

func TestTaskStoreManager_Sweep_ReclaimsOldTerminalTasksAcrossAgents(t *testing.T) {
	mgr := a2a.NewTaskStoreManager(time.Millisecond)

	storeA := mgr.For("agent-a")
	storeA.Save(&models.A2ATask{TaskID: "done-a", Status: models.A2ATaskCompleted})
	storeA.Save(&models.A2ATask{TaskID: "pending-a", Status: models.A2ATaskPending})

	storeB := mgr.For("agent-b")
	storeB.Save(&models.A2ATask{TaskID: "cancelled-b", Status: models.A2ATaskCancelled})

	time.Sleep(5 * time.Millisecond)

	removed := mgr.Sweep()
	require.Equal(t, 2, removed, "both the completed and the cancelled task are past TTL")

	_, ok := storeA.Get("done-a")
	require.False(t, ok)
	_, ok = storeA.Get("pending-a")
	require.True(t, ok, "a non-terminal task must never be swept regardless of age")
	_, ok = storeB.Get("cancelled-b")
	require.False(t, ok)
}

func TestTaskStoreManager_Sweep_LeavesFreshTerminalTasksAlone(t *testing.T) {
	mgr := a2a.NewTaskStoreManager(time.Hour)
	store := mgr.For("agent-1")
	store.Save(&models.A2ATask{TaskID: "t1", Status: models.A2ATaskCompleted})

	removed := mgr.Sweep()
	require.Equal(t, 0, removed)
	_, ok := store.Get("t1")
	require.True(t, ok)
}

func TestNewTaskStoreManager_NonPositiveTTLUsesDefault(t *testing.T) {
	mgr := a2a.NewTaskStoreManager(0)
	store := mgr.For("agent-1")
	store.Save(&models.A2ATask{TaskID: "t1", Status: models.A2ATaskCompleted})

	// a zero ttl falling back to the 1h default means an immediate sweep
	// must not reclaim a task that just finished.
	removed := mgr.Sweep()
	require.Equal(t, 0, removed)
}
