package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/conductorhq/conductor/pkg/config"
	"github.com/conductorhq/conductor/pkg/database"
	"github.com/conductorhq/conductor/pkg/models"
	"github.com/conductorhq/conductor/pkg/queue"
	"github.com/conductorhq/conductor/pkg/tools"
	"github.com/conductorhq/conductor/pkg/workflow"
	"github.com/conductorhq/conductor/test/testutil"
)

func seedExecution(t *testing.T, client *database.Client) *models.Workflow {
	t.Helper()
	wf := &models.Workflow{
		ID:     uuid.NewString(),
		UserID: "user-1",
		Name:   "queue-test",
		Nodes: []models.Node{
			{ID: "t", Type: models.NodeTrigger, Raw: []byte(`{}`)},
			{ID: "o", Type: models.NodeOutput, Raw: []byte(`{"output_type":"return"}`)},
		},
		Edges:    []models.Edge{{Source: "t", Target: "o"}},
		IsActive: true,
	}
	require.NoError(t, client.Workflows.Create(context.Background(), wf))
	require.NoError(t, client.Executions.Create(context.Background(), wf.ID, uuid.NewString(), map[string]any{"x": float64(1)}))
	return wf
}

func TestWorkerPool_StartProcessesQueuedExecutionThenStop(t *testing.T) {
	client := testutil.NewTestClient(t)
	seedExecution(t, client)

	engine := workflow.NewEngine(client.Executions, client.Agents, tools.NewRegistry(), nil, nil, nil, nil)
	cfg := config.DefaultQueueConfig()
	cfg.WorkerCount = 1
	cfg.PollInterval = 20 * time.Millisecond
	cfg.PollIntervalJitter = 0

	pool := queue.NewWorkerPool("test-pod", client, cfg, engine)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, pool.Start(ctx))

	require.Eventually(t, func() bool {
		depth, err := client.Executions.QueueDepth(context.Background())
		return err == nil && depth == 0
	}, 2*time.Second, 20*time.Millisecond, "expected the queued execution to be claimed")

	pool.Stop()

	health := pool.Health()
	require.Equal(t, 1, health.TotalWorkers)
	require.GreaterOrEqual(t, health.WorkerStats[0].ExecutionsProcessed, 1)
}

func TestWorkerPool_Health_ReportsQueueDepth(t *testing.T) {
	client := testutil.NewTestClient(t)
	seedExecution(t, client)

	engine := workflow.NewEngine(client.Executions, client.Agents, tools.NewRegistry(), nil, nil, nil, nil)
	cfg := config.DefaultQueueConfig()
	cfg.WorkerCount = 0

	pool := queue.NewWorkerPool("test-pod", client, cfg, engine)
	health := pool.Health()
	require.Equal(t, 1, health.QueueDepth)
	require.True(t, health.DBReachable)
}

func TestDetectAndRecoverOrphans_RequeuesStaleRunningExecution(t *testing.T) {
	client := testutil.NewTestClient(t)
	wf := seedExecution(t, client)

	claimed, err := client.Executions.ClaimNext(context.Background())
	require.NoError(t, err)
	require.Equal(t, wf.ID, claimed.WorkflowID)

	// Simulate a dead worker by backdating the heartbeat past the orphan
	// threshold; started_at stays recent, since a healthy long-running job
	// would still look fresh by that measure alone.
	_, err = client.DB().ExecContext(context.Background(),
		`UPDATE workflow_executions SET last_interaction_at = $2 WHERE id = $1`,
		claimed.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	n, err := client.Executions.ReclaimOrphans(context.Background(), time.Minute, 3)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	reloaded, err := client.Executions.GetByID(context.Background(), claimed.ID)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionPending, reloaded.Status)
	require.Equal(t, 1, reloaded.RetryCount)
}
