package a2a_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conductorhq/conductor/pkg/a2a"
	"github.com/conductorhq/conductor/pkg/chat"
	"github.com/conductorhq/conductor/pkg/llm"
	"github.com/conductorhq/conductor/pkg/models"
	"github.com/conductorhq/conductor/pkg/tools"
	"github.com/conductorhq/conductor/test/testutil"
)

func newServer(t *testing.T, provider llm.Provider) (*a2a.Server, *a2a.TaskStoreManager) {
	client := testutil.NewTestClient(t)
	chatSvc := chat.New(client.Conversations, tools.NewRegistry(), provider, nil, nil)
	tasks := a2a.NewTaskStoreManager(time.Hour)
	return a2a.NewServer(chatSvc, tasks, nil), tasks
}

func TestServer_SubmitTask_ReturnsPendingThenReachesCompleted(t *testing.T) {
	provider := &llm.FakeProvider{Responses: []llm.Response{{Content: "hello from agent"}}}
	server, tasks := newServer(t, provider)
	agent := &models.Agent{ID: "agent-1", Name: "tester", SystemPrompt: "be helpful", LLMModel: "gpt-4o"}

	resp := server.SubmitTask(agent, "task-1", "hi")
	require.Equal(t, "task-1", resp.ID)
	require.Contains(t, []string{string(models.A2ATaskPending), string(models.A2ATaskRunning)}, resp.Status)

	require.Eventually(t, func() bool {
		task, ok := tasks.For("agent-1").Get("task-1")
		return ok && task.Status == models.A2ATaskCompleted
	}, time.Second, 5*time.Millisecond)

	final, err := server.GetTaskStatus("agent-1", "task-1")
	require.NoError(t, err)
	require.Equal(t, string(models.A2ATaskCompleted), final.Status)
	require.Equal(t, "hello from agent", final.Result.Message.Parts[0].Text)
}

func TestServer_GetTaskStatus_UnknownTaskIsNotFound(t *testing.T) {
	server, _ := newServer(t, &llm.FakeProvider{})
	_, err := server.GetTaskStatus("agent-1", "nope")
	require.Error(t, err)
}

func TestServer_CancelTask_UnknownTaskIsNotFound(t *testing.T) {
	server, _ := newServer(t, &llm.FakeProvider{})
	_, err := server.CancelTask("agent-1", "nope")
	require.Error(t, err)
}

func TestServer_CancelTask_CooperativelyCancelsPendingTask(t *testing.T) {
	server, tasks := newServer(t, &llm.FakeProvider{})
	store := tasks.For("agent-1")
	store.Save(&models.A2ATask{TaskID: "task-1", AgentID: "agent-1", Status: models.A2ATaskPending})

	resp, err := server.CancelTask("agent-1", "task-1")
	require.NoError(t, err)
	require.Equal(t, string(models.A2ATaskCancelled), resp.Status)
}
