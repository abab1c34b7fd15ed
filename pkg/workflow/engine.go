// Package workflow implements the Workflow Engine (C7): DAG construction,
// topological scheduling via Kahn's algorithm, per-node-type dispatch, and
// JMESPath-based template resolution, grounded on the original
// WorkflowEngine/WorkflowContext pair.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/conductorhq/conductor/pkg/database"
	"github.com/conductorhq/conductor/pkg/events"
	"github.com/conductorhq/conductor/pkg/models"
	"github.com/conductorhq/conductor/pkg/tools"
)

// Engine executes a single Workflow end to end.
type Engine struct {
	Executions *database.ExecutionRepo
	Agents     *database.AgentRepo
	Tools      *tools.Registry
	Runner     AgentRunner
	A2AClient  dispatchA2AInterface
	Events     *events.EventPublisher // optional; nil disables live progress streaming
	Log        *slog.Logger
}

// NewEngine constructs an Engine. Any dependency an execution doesn't
// exercise (e.g. A2AClient, if no workflow run uses remote agent
// dispatch, or Events, if no WebSocket client ever subscribes) may be
// left nil.
func NewEngine(executions *database.ExecutionRepo, agents *database.AgentRepo, registry *tools.Registry, runner AgentRunner, a2aClient dispatchA2AInterface, publisher *events.EventPublisher, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{Executions: executions, Agents: agents, Tools: registry, Runner: runner, A2AClient: a2aClient, Events: publisher, Log: log}
}

// Execute runs workflow against an already-claimed execution (status
// running, started_at set — the caller, typically the worker pool after
// ExecutionRepo.ClaimNext, owns that transition) and persists the
// terminal outcome via Executions.Complete. userID scopes agent-node
// lookups to the workflow's owner. The returned execution is always
// non-nil, even on failure; the returned error is only non-nil when
// persisting the terminal outcome itself fails.
func (e *Engine) Execute(ctx context.Context, workflow *models.Workflow, execution *models.WorkflowExecution, userID string) (*models.WorkflowExecution, error) {
	execution.NodeResults = make(map[string]models.NodeResult)
	wfCtx := NewContext(execution.TriggerData)
	e.publishStatus(ctx, execution, "running", "")

	nodeIDs := make([]string, len(workflow.Nodes))
	nodeMap := make(map[string]models.Node, len(workflow.Nodes))
	for i, n := range workflow.Nodes {
		nodeIDs[i] = n.ID
		nodeMap[n.ID] = n
	}
	edgePairs := make([][2]string, len(workflow.Edges))
	for i, edge := range workflow.Edges {
		edgePairs[i] = [2]string{edge.Source, edge.Target}
	}

	dag := BuildDAG(nodeIDs, edgePairs)
	order, err := Sort(dag, nodeIDs)
	if err != nil {
		return e.fail(ctx, execution, map[string]models.NodeResult{}, err.Error())
	}

	for i, nodeID := range order {
		node, ok := nodeMap[nodeID]
		if !ok {
			continue
		}

		result, execErr := e.executeNode(ctx, node, wfCtx, userID)
		if execErr != nil {
			execution.NodeResults[nodeID] = models.NodeResult{Status: models.NodeResultFailed, Error: execErr.Error()}
			e.publishNodeResult(ctx, execution.ID, node, nil, execErr.Error())
			return e.fail(ctx, execution, execution.NodeResults, execErr.Error())
		}

		wfCtx.SetResult(nodeID, result)
		execution.NodeResults[nodeID] = models.NodeResult{Status: models.NodeResultCompleted, Result: result}
		e.publishNodeResult(ctx, execution.ID, node, result, "")
		e.publishProgress(ctx, execution.ID, i+1, len(order))
	}

	execution.Status = models.ExecutionCompleted
	completedAt := time.Now()
	execution.CompletedAt = &completedAt
	if err := e.Executions.Complete(ctx, execution.ID, execution.Status, execution.NodeResults, ""); err != nil {
		return execution, err
	}
	e.publishStatus(ctx, execution, "completed", "")
	return execution, nil
}

func (e *Engine) fail(ctx context.Context, execution *models.WorkflowExecution, nodeResults map[string]models.NodeResult, message string) (*models.WorkflowExecution, error) {
	execution.Status = models.ExecutionFailed
	execution.Error = message
	execution.NodeResults = nodeResults
	completedAt := time.Now()
	execution.CompletedAt = &completedAt
	if err := e.Executions.Complete(ctx, execution.ID, execution.Status, execution.NodeResults, message); err != nil {
		return execution, err
	}
	e.publishStatus(ctx, execution, "failed", message)
	return execution, nil
}

// publishStatus broadcasts an execution.status event. Best-effort: a
// publish failure is logged but never fails the execution itself.
func (e *Engine) publishStatus(ctx context.Context, execution *models.WorkflowExecution, status, errMsg string) {
	if e.Events == nil {
		return
	}
	err := e.Events.PublishExecutionStatus(ctx, execution.ID, events.ExecutionStatusPayload{
		Type:        events.EventTypeExecutionStatus,
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		Status:      status,
		Error:       errMsg,
		Timestamp:   time.Now().Format(time.RFC3339Nano),
	})
	if err != nil {
		e.Log.Warn("failed to publish execution status", "execution_id", execution.ID, "status", status, "error", err)
	}
}

// publishNodeResult broadcasts a node.result event for one completed or
// failed node. result is marshaled as the output map when present.
func (e *Engine) publishNodeResult(ctx context.Context, executionID string, node models.Node, result any, errMsg string) {
	if e.Events == nil {
		return
	}
	status := "completed"
	var output map[string]any
	if errMsg != "" {
		status = "failed"
	} else if m, ok := result.(map[string]any); ok {
		output = m
	}
	err := e.Events.PublishNodeResult(ctx, executionID, events.NodeResultPayload{
		Type:        events.EventTypeNodeResult,
		ExecutionID: executionID,
		NodeID:      node.ID,
		NodeType:    string(node.Type),
		Status:      status,
		Output:      output,
		Error:       errMsg,
		Timestamp:   time.Now().Format(time.RFC3339Nano),
	})
	if err != nil {
		e.Log.Warn("failed to publish node result", "execution_id", executionID, "node_id", node.ID, "error", err)
	}
}

// publishProgress broadcasts a transient execution.progress counter update.
func (e *Engine) publishProgress(ctx context.Context, executionID string, completed, total int) {
	if e.Events == nil {
		return
	}
	err := e.Events.PublishExecutionProgress(ctx, executionID, events.ExecutionProgressPayload{
		Type:           events.EventTypeExecutionProgress,
		ExecutionID:    executionID,
		NodesCompleted: completed,
		NodesTotal:     total,
		Timestamp:      time.Now().Format(time.RFC3339Nano),
	})
	if err != nil {
		e.Log.Warn("failed to publish execution progress", "execution_id", executionID, "error", err)
	}
}

// executeNode dispatches by node.Type. An unrecognized type is not an
// error: the workflow continues with a marker result.
func (e *Engine) executeNode(ctx context.Context, node models.Node, wfCtx *Context, userID string) (any, error) {
	switch node.Type {
	case models.NodeTrigger:
		return e.executeTriggerNode(node.Trigger, wfCtx), nil
	case models.NodeAgent:
		return e.dispatchAgentNode(ctx, node.Agent, wfCtx, userID)
	case models.NodeCondition:
		return e.executeConditionNode(node.Condition, wfCtx), nil
	case models.NodeTransform:
		return e.executeTransformNode(node.Transform, wfCtx), nil
	case models.NodeTool:
		return e.dispatchToolNode(ctx, node.Tool, wfCtx)
	case models.NodeOutput:
		return e.executeOutputNode(node.Output, wfCtx), nil
	default:
		return map[string]any{"message": "unknown node type"}, nil
	}
}

func (e *Engine) executeTriggerNode(data *models.TriggerNodeData, wfCtx *Context) map[string]any {
	triggerType := "manual"
	if data != nil && data.TriggerType != "" {
		triggerType = data.TriggerType
	}
	return map[string]any{"trigger_type": triggerType, "trigger_data": wfCtx.TriggerData}
}

func (e *Engine) executeConditionNode(data *models.ConditionNodeData, wfCtx *Context) map[string]any {
	if data == nil {
		data = &models.ConditionNodeData{}
	}
	ctxMap := wfCtx.ToMap()

	evaluated := make([]bool, len(data.Conditions))
	for i, clause := range data.Conditions {
		fieldValue := ResolveTemplate("{{"+clause.Field+"}}", ctxMap)
		evaluated[i] = EvaluateCondition(fieldValue, clause.Operator, clause.Value)
	}

	var final bool
	switch data.Logic {
	case "or":
		final = anyTrue(evaluated)
	default: // "and" and unset both default to AND per the empty-list convention
		final = allTrue(evaluated)
	}

	return map[string]any{"result": final, "conditions_evaluated": evaluated}
}

func allTrue(bs []bool) bool {
	for _, b := range bs {
		if !b {
			return false
		}
	}
	return true
}

func anyTrue(bs []bool) bool {
	for _, b := range bs {
		if b {
			return true
		}
	}
	return false
}

func (e *Engine) executeTransformNode(data *models.TransformNodeData, wfCtx *Context) any {
	if data == nil {
		data = &models.TransformNodeData{}
	}
	ctxMap := wfCtx.ToMap()

	switch data.TransformType {
	case "template":
		return ResolveTemplate(data.Expression, ctxMap)
	case "jmespath", "":
		return ResolveTemplate("{{"+data.Expression+"}}", ctxMap)
	default:
		return map[string]any{"error": fmt.Sprintf("unknown transform type: %s", data.TransformType)}
	}
}

func (e *Engine) executeOutputNode(data *models.OutputNodeData, wfCtx *Context) map[string]any {
	if data == nil {
		data = &models.OutputNodeData{}
	}

	switch data.OutputType {
	case "return", "":
		return map[string]any{"type": "return", "data": wfCtx.ToMap()}
	case "webhook":
		return map[string]any{"type": "webhook", "url": data.OutputConfig["webhook_url"], "status": "not_implemented"}
	case "store":
		return map[string]any{"type": "store", "key": data.OutputConfig["store_key"], "status": "not_implemented"}
	default:
		return map[string]any{"type": data.OutputType, "status": "unknown"}
	}
}
