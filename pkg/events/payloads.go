package events

// ExecutionStatusPayload is the payload for execution.status events,
// published when a WorkflowExecution transitions between lifecycle
// states (running, completed, failed).
type ExecutionStatusPayload struct {
	Type        string `json:"type"` // always EventTypeExecutionStatus
	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	Timestamp   string `json:"timestamp"` // RFC3339Nano
}

// NodeResultPayload is the payload for node.result events, published
// once per node as it finishes executing within a run.
type NodeResultPayload struct {
	Type        string         `json:"type"` // always EventTypeNodeResult
	ExecutionID string         `json:"execution_id"`
	NodeID      string         `json:"node_id"`
	NodeType    string         `json:"node_type"`
	Status      string         `json:"status"` // "completed" or "failed"
	Output      map[string]any `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	Timestamp   string         `json:"timestamp"` // RFC3339Nano
}

// ExecutionProgressPayload is the payload for the transient
// execution.progress event, broadcast to both the execution's own
// channel and GlobalExecutionsChannel for a live dashboard counter.
type ExecutionProgressPayload struct {
	Type           string `json:"type"` // always EventTypeExecutionProgress
	ExecutionID    string `json:"execution_id"`
	NodesCompleted int    `json:"nodes_completed"`
	NodesTotal     int    `json:"nodes_total"`
	Timestamp      string `json:"timestamp"` // RFC3339Nano
}

// ChatMessagePayload is the payload for chat.message events, published
// once a full assistant or tool message is persisted.
type ChatMessagePayload struct {
	Type           string `json:"type"` // always EventTypeChatMessage
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	Timestamp      string `json:"timestamp"` // RFC3339Nano
}

// StreamChunkPayload is the payload for stream.chunk transient events.
// Published by the chat loop once per completed reply — ephemeral.
type StreamChunkPayload struct {
	Type           string `json:"type"` // always EventTypeStreamChunk
	ConversationID string `json:"conversation_id"`
	Delta          string `json:"delta"`
	Timestamp      string `json:"timestamp"` // RFC3339Nano
}
