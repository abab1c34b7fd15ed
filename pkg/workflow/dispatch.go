package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/conductorhq/conductor/pkg/a2a"
	"github.com/conductorhq/conductor/pkg/chat"
	"github.com/conductorhq/conductor/pkg/models"
	"github.com/conductorhq/conductor/pkg/tools"
)

// AgentRunner invokes an already-loaded agent in-process, returning its reply.
// Satisfied by *chat.Service through the adapter below.
type AgentRunner interface {
	Run(ctx context.Context, participant models.ChatParticipant, userID, message string) (string, error)
}

// chatRunner adapts chat.Service's multi-return Chat method to the
// single-purpose AgentRunner the workflow engine's agent node needs.
type chatRunner struct {
	svc *chat.Service
}

func (r chatRunner) Run(ctx context.Context, participant models.ChatParticipant, userID, message string) (string, error) {
	_, content, err := r.svc.Chat(ctx, participant, userID, message, "")
	return content, err
}

// NewAgentRunner wraps a chat.Service as an AgentRunner.
func NewAgentRunner(svc *chat.Service) AgentRunner {
	return chatRunner{svc: svc}
}

// remoteAgentPollInterval and remoteAgentPollTimeout bound how long an
// agent node waits on a remote A2A task before giving up — the dispatch
// itself is fire-and-poll since the remote server answers task submission
// asynchronously.
const (
	remoteAgentPollInterval = 200 * time.Millisecond
	remoteAgentPollTimeout  = 55 * time.Second
)

// dispatchAgentNode resolves data's input_mapping against ctx, then either
// invokes the referenced agent in-process or, when AgentURL is set,
// dispatches to it over A2A and polls for completion.
func (e *Engine) dispatchAgentNode(ctx context.Context, data *models.AgentNodeData, wfCtx *Context, userID string) (map[string]any, error) {
	resolvedInputs := make(map[string]any, len(data.InputMapping))
	for key, template := range data.InputMapping {
		resolvedInputs[key] = ResolveTemplate(template, wfCtx.ToMap())
	}

	var output string
	var err error
	if data.AgentURL != "" {
		output, err = e.dispatchRemoteAgent(ctx, data.AgentURL, fmt.Sprintf("%v", resolvedInputs))
	} else {
		output, err = e.dispatchLocalAgent(ctx, data.AgentID, userID, fmt.Sprintf("%v", resolvedInputs))
	}
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"agent_id": data.AgentID,
		"inputs":   resolvedInputs,
		"output":   output,
	}, nil
}

func (e *Engine) dispatchLocalAgent(ctx context.Context, agentID, userID, message string) (string, error) {
	if e.Agents == nil || e.Runner == nil {
		return "", fmt.Errorf("agent dispatch not configured")
	}
	agent, err := e.Agents.GetByID(ctx, userID, agentID)
	if err != nil {
		return "", fmt.Errorf("loading agent %q: %w", agentID, err)
	}
	return e.Runner.Run(ctx, agent, userID, message)
}

func (e *Engine) dispatchRemoteAgent(ctx context.Context, agentURL, message string) (string, error) {
	if e.A2AClient == nil {
		return "", fmt.Errorf("a2a client not configured")
	}
	submitted, err := e.A2AClient.SendTask(ctx, agentURL, message, "")
	if err != nil {
		return "", fmt.Errorf("submitting a2a task: %w", err)
	}

	deadline := time.Now().Add(remoteAgentPollTimeout)
	status := submitted
	for !isTerminalA2A(status.Status) {
		if time.Now().After(deadline) {
			return "", fmt.Errorf("a2a task %q did not finish before %s", status.ID, remoteAgentPollTimeout)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(remoteAgentPollInterval):
		}
		status, err = e.A2AClient.GetTaskStatus(ctx, agentURL, submitted.ID)
		if err != nil {
			return "", fmt.Errorf("polling a2a task %q: %w", submitted.ID, err)
		}
	}

	if status.Status != string(models.A2ATaskCompleted) {
		return "", fmt.Errorf("a2a task %q finished as %s: %s", status.ID, status.Status, status.Error)
	}
	if status.Result != nil {
		return status.Result.Message.ExtractText(), nil
	}
	return "", nil
}

func isTerminalA2A(status string) bool {
	return status == string(models.A2ATaskCompleted) || status == string(models.A2ATaskFailed) || status == string(models.A2ATaskCancelled)
}

// dispatchToolNode resolves string values in data's tool_config as
// templates against ctx, then invokes the registered tool directly — this
// is not part of a bounded chat turn, so it bypasses the Executor's
// per-turn call cap.
func (e *Engine) dispatchToolNode(ctx context.Context, data *models.ToolNodeData, wfCtx *Context) (map[string]any, error) {
	resolvedConfig := make(map[string]any, len(data.ToolConfig))
	ctxMap := wfCtx.ToMap()
	for key, value := range data.ToolConfig {
		if s, ok := value.(string); ok {
			resolvedConfig[key] = ResolveTemplate(s, ctxMap)
		} else {
			resolvedConfig[key] = value
		}
	}

	tool, ok := e.Tools.Get(data.ToolName)
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", data.ToolName)
	}

	callCtx, cancel := context.WithTimeout(ctx, tools.DefaultTimeout)
	defer cancel()
	result, err := tool.Execute(callCtx, resolvedConfig)
	if err != nil {
		return nil, fmt.Errorf("executing tool %q: %w", data.ToolName, err)
	}
	if !result.OK {
		return nil, fmt.Errorf("tool %q failed: %s", data.ToolName, result.Error)
	}

	return map[string]any{
		"tool_name": data.ToolName,
		"config":    resolvedConfig,
		"output":    result.Output,
	}, nil
}

// dispatchA2AInterface is satisfied by *a2a.Client; declared so engine.go
// can depend on the narrow shape it needs without importing a2a.Client's
// concrete type into every test double.
type dispatchA2AInterface interface {
	SendTask(ctx context.Context, baseURL, message, taskID string) (*a2a.TaskResponse, error)
	GetTaskStatus(ctx context.Context, baseURL, taskID string) (*a2a.TaskResponse, error)
}
