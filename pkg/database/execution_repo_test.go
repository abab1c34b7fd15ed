package database_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/conductorhq/conductor/pkg/database"
	"github.com/conductorhq/conductor/pkg/models"
	"github.com/conductorhq/conductor/test/testutil"
)

func seedWorkflow(t *testing.T, client *database.Client) string {
	t.Helper()
	w := &models.Workflow{
		ID:     uuid.NewString(),
		UserID: "user-1",
		Name:   "test-workflow",
		Nodes: []models.Node{
			{ID: "t", Type: models.NodeTrigger, Raw: []byte(`{"trigger_type":"manual"}`)},
		},
		IsActive: true,
	}
	require.NoError(t, w.Nodes[0].DecodeData())
	require.NoError(t, client.Workflows.Create(context.Background(), w))
	return w.ID
}

func TestExecutionRepo_ClaimNext_SkipsLockedAndFIFO(t *testing.T) {
	client := testutil.NewTestClient(t)
	ctx := context.Background()
	workflowID := seedWorkflow(t, client)

	first := uuid.NewString()
	second := uuid.NewString()
	require.NoError(t, client.Executions.Create(ctx, workflowID, first, map[string]any{"order": 1}))
	require.NoError(t, client.Executions.Create(ctx, workflowID, second, map[string]any{"order": 2}))

	claimed, err := client.Executions.ClaimNext(ctx)
	require.NoError(t, err)
	require.Equal(t, first, claimed.ID, "FIFO: oldest pending execution claimed first")
	require.Equal(t, models.ExecutionRunning, claimed.Status)

	claimedSecond, err := client.Executions.ClaimNext(ctx)
	require.NoError(t, err)
	require.Equal(t, second, claimedSecond.ID)

	_, err = client.Executions.ClaimNext(ctx)
	require.ErrorIs(t, err, database.ErrNoExecutionsAvailable)
}

func TestExecutionRepo_CompleteAndGetByID(t *testing.T) {
	client := testutil.NewTestClient(t)
	ctx := context.Background()
	workflowID := seedWorkflow(t, client)

	id := uuid.NewString()
	require.NoError(t, client.Executions.Create(ctx, workflowID, id, map[string]any{"x": 1}))
	_, err := client.Executions.ClaimNext(ctx)
	require.NoError(t, err)

	results := map[string]models.NodeResult{
		"t": {Status: models.NodeResultCompleted, Result: map[string]any{"ok": true}},
	}
	require.NoError(t, client.Executions.Complete(ctx, id, models.ExecutionCompleted, results, ""))

	got, err := client.Executions.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	require.Contains(t, got.NodeResults, "t")
}

func TestExecutionRepo_Requeue_DeadLettersAfterMaxRetries(t *testing.T) {
	client := testutil.NewTestClient(t)
	ctx := context.Background()
	workflowID := seedWorkflow(t, client)

	id := uuid.NewString()
	require.NoError(t, client.Executions.Create(ctx, workflowID, id, nil))
	_, err := client.Executions.ClaimNext(ctx)
	require.NoError(t, err)

	require.NoError(t, client.Executions.Requeue(ctx, id, 1, "worker crashed"))
	got, err := client.Executions.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionPending, got.Status)
	require.Equal(t, 1, got.RetryCount)

	_, err = client.Executions.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, client.Executions.Requeue(ctx, id, 1, "worker crashed again"))
	got, err = client.Executions.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionFailed, got.Status)
	require.Contains(t, got.Error, "dead-lettered")
}
