package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// NodeType tags the kind of work a Node performs.
type NodeType string

// Node type constants.
const (
	NodeTrigger   NodeType = "trigger"
	NodeAgent     NodeType = "agent"
	NodeCondition NodeType = "condition"
	NodeTransform NodeType = "transform"
	NodeTool      NodeType = "tool"
	NodeOutput    NodeType = "output"
	NodeUnknown   NodeType = "unknown"
)

// Node is one unit of workflow execution, tagged by Type. Data holds the
// type-specific payload as a tagged union (spec's preferred option over a
// raw opaque map): a known Type decodes into its matching *Data struct,
// anything else is retained verbatim in Raw and surfaces as NodeUnknown
// behavior at execution time.
type Node struct {
	ID   string
	Type NodeType
	Raw  json.RawMessage // original data blob, always retained

	Trigger   *TriggerNodeData
	Agent     *AgentNodeData
	Condition *ConditionNodeData
	Transform *TransformNodeData
	Tool      *ToolNodeData
	Output    *OutputNodeData
}

// TriggerNodeData is the data shape for a NodeTrigger node.
type TriggerNodeData struct {
	TriggerType string `json:"trigger_type"`
}

// AgentNodeData is the data shape for a NodeAgent node.
type AgentNodeData struct {
	AgentID      string            `json:"agent_id"`
	AgentURL     string            `json:"agent_url,omitempty"` // presence selects A2A dispatch
	InputMapping map[string]string `json:"input_mapping"`
}

// ConditionClause is one clause of a condition node's evaluation.
type ConditionClause struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// ConditionNodeData is the data shape for a NodeCondition node.
type ConditionNodeData struct {
	Conditions []ConditionClause `json:"conditions"`
	Logic      string            `json:"logic"` // "and" | "or"
}

// TransformNodeData is the data shape for a NodeTransform node.
type TransformNodeData struct {
	TransformType string `json:"transform_type"` // "jmespath" | "template"
	Expression    string `json:"expression"`
}

// ToolNodeData is the data shape for a NodeTool node.
type ToolNodeData struct {
	ToolName   string         `json:"tool_name"`
	ToolConfig map[string]any `json:"tool_config"`
}

// OutputNodeData is the data shape for a NodeOutput node.
type OutputNodeData struct {
	OutputType   string         `json:"output_type"` // "return" | "webhook" | "store"
	OutputConfig map[string]any `json:"output_config"`
}

// DecodeData populates the typed Data field matching n.Type from n.Raw.
// Unknown types are left with all typed fields nil; callers must treat
// that as NodeUnknown behavior, not an error.
func (n *Node) DecodeData() error {
	if len(n.Raw) == 0 {
		n.Raw = []byte("{}")
	}
	switch n.Type {
	case NodeTrigger:
		n.Trigger = &TriggerNodeData{}
		return unmarshalInto(n.Raw, n.Trigger)
	case NodeAgent:
		n.Agent = &AgentNodeData{}
		return unmarshalInto(n.Raw, n.Agent)
	case NodeCondition:
		n.Condition = &ConditionNodeData{}
		return unmarshalInto(n.Raw, n.Condition)
	case NodeTransform:
		n.Transform = &TransformNodeData{}
		return unmarshalInto(n.Raw, n.Transform)
	case NodeTool:
		n.Tool = &ToolNodeData{}
		return unmarshalInto(n.Raw, n.Tool)
	case NodeOutput:
		n.Output = &OutputNodeData{}
		return unmarshalInto(n.Raw, n.Output)
	default:
		return nil
	}
}

func unmarshalInto(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding node data: %w", err)
	}
	return nil
}

// Edge denotes that Target depends on Source.
type Edge struct {
	ID     string
	Source string
	Target string
}

// Workflow is a user-owned DAG of Nodes connected by Edges.
type Workflow struct {
	ID        string
	UserID    string
	Name      string
	Nodes     []Node
	Edges     []Edge
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExecutionStatus is the lifecycle state of a WorkflowExecution.
type ExecutionStatus string

// Execution status constants.
const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// NodeResultStatus is the per-node outcome recorded in a WorkflowExecution.
type NodeResultStatus string

// Node result status constants.
const (
	NodeResultCompleted NodeResultStatus = "completed"
	NodeResultFailed    NodeResultStatus = "failed"
)

// NodeResult is the recorded outcome of one node's execution.
type NodeResult struct {
	Status NodeResultStatus `json:"status"`
	Result any              `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// TriggerKind identifies what caused a WorkflowExecution to run.
type TriggerKind string

// Trigger kind constants.
const (
	TriggerAPI      TriggerKind = "api"
	TriggerWebhook  TriggerKind = "webhook"
	TriggerSchedule TriggerKind = "schedule"
	TriggerManual   TriggerKind = "manual"
)

// WorkflowExecution is a single run of a Workflow.
type WorkflowExecution struct {
	ID                string
	WorkflowID        string
	Status            ExecutionStatus
	TriggerData       map[string]any
	NodeResults       map[string]NodeResult
	Error             string
	RetryCount        int
	StartedAt         *time.Time
	LastInteractionAt *time.Time // refreshed by the worker's heartbeat; orphan detection keys off this, not StartedAt
	CompletedAt       *time.Time
	CreatedAt         time.Time
}
