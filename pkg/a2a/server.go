package a2a

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/conductorhq/conductor/pkg/apierr"
	"github.com/conductorhq/conductor/pkg/chat"
	"github.com/conductorhq/conductor/pkg/models"
)

// SystemUserID is the synthetic user id attached to conversations created
// by inbound A2A task dispatch, distinguishing them from conversations a
// real authenticated user started.
const SystemUserID = "a2a-system"

// Server handles inbound A2A tasks against a single process's Chat
// Service, grounded on the original A2AServer (itself a thin wrapper over
// ChatService), reshaped around the explicit TaskStoreManager this
// package already constructs instead of a module-level directory lookup.
type Server struct {
	chat  *chat.Service
	tasks *TaskStoreManager
	log   *slog.Logger
}

// NewServer constructs a Server.
func NewServer(chatService *chat.Service, tasks *TaskStoreManager, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{chat: chatService, tasks: tasks, log: log}
}

// SubmitTask records a new pending task for agent and dispatches it to
// the chat loop on a background goroutine, returning immediately with the
// task's initial (pending) state — submission is async per the HTTP
// surface's 202-accepted contract; callers poll GetTaskStatus for the
// outcome. The background execution runs with context.Background(),
// deliberately outlasting the originating HTTP request's context.
func (s *Server) SubmitTask(agent *models.Agent, taskID, message string) *TaskResponse {
	store := s.tasks.For(agent.ID)
	task := &models.A2ATask{TaskID: taskID, AgentID: agent.ID, Status: models.A2ATaskPending}
	store.Save(task)

	go s.runTask(agent, taskID, message)

	return toTaskResponse(task)
}

func (s *Server) runTask(agent *models.Agent, taskID, message string) {
	store := s.tasks.For(agent.ID)
	store.UpdateStatus(taskID, models.A2ATaskRunning, nil, "")

	convID, response, err := s.chat.Chat(context.Background(), agent, SystemUserID, message, "")
	if err != nil {
		s.log.Error("a2a task execution failed", "task_id", taskID, "agent_id", agent.ID, "error", err)
		store.UpdateStatus(taskID, models.A2ATaskFailed, nil, err.Error())
		return
	}

	result := map[string]any{"conversation_id": convID, "response": response}
	store.UpdateStatus(taskID, models.A2ATaskCompleted, result, "")
}

// GetTaskStatus looks up a previously submitted task for agent.
func (s *Server) GetTaskStatus(agentID, taskID string) (*TaskResponse, error) {
	store := s.tasks.For(agentID)
	task, ok := store.Get(taskID)
	if !ok {
		return nil, apierr.New(apierr.NotFound, fmt.Sprintf("task %q not found", taskID))
	}
	return toTaskResponse(task), nil
}

// CancelTask cooperatively cancels a previously submitted task for agent.
// Completed/failed tasks are left untouched, per the store's own no-op
// semantics.
func (s *Server) CancelTask(agentID, taskID string) (*TaskResponse, error) {
	store := s.tasks.For(agentID)
	task, ok := store.Cancel(taskID)
	if !ok {
		return nil, apierr.New(apierr.NotFound, fmt.Sprintf("task %q not found", taskID))
	}
	return toTaskResponse(task), nil
}

func toTaskResponse(task *models.A2ATask) *TaskResponse {
	resp := &TaskResponse{ID: task.TaskID, Status: string(task.Status), AgentID: task.AgentID, Error: task.Error}
	if task.Status == models.A2ATaskCompleted && task.Result != nil {
		if text, ok := task.Result["response"].(string); ok {
			resp.Result = &TaskResult{Message: Message{Role: "agent", Parts: []Part{{Type: "text", Text: text}}}}
		}
	}
	return resp
}
