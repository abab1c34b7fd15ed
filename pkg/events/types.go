// Package events provides real-time event delivery via WebSocket and
// PostgreSQL NOTIFY/LISTEN for cross-pod distribution: workflow
// execution progress (C7/C8) and chat streaming (C5), fanned out to
// subscribed WebSocket clients regardless of which pod's worker
// produced the event.
//
// Two channel families exist:
//
//   - execution:{execution_id} — node-by-node progress for one
//     workflow execution: execution.status (persisted, lifecycle
//     transitions) and node.result (persisted, one per completed
//     node), plus execution.progress (transient) for a live counter.
//   - conversation:{conversation_id} — chat.message (persisted, one
//     per assistant/tool turn) and stream.chunk (transient, one per
//     completed reply's content) for the Chat/Tool-Use Loop.
//
// A client subscribes to one or more channels over a single WebSocket
// connection and receives every event published to those channels
// regardless of which pod produced it, via a dedicated LISTEN
// connection per pod (NotifyListener) bridging PostgreSQL NOTIFY to
// the pod-local ConnectionManager.
package events

// Persistent event types (stored in the events table + NOTIFY).
const (
	EventTypeExecutionStatus = "execution.status"
	EventTypeNodeResult      = "node.result"
	EventTypeChatMessage     = "chat.message"
)

// Transient event types (NOTIFY only, no DB persistence).
const (
	EventTypeExecutionProgress = "execution.progress"
	EventTypeStreamChunk       = "stream.chunk"
)

// GlobalExecutionsChannel carries a transient copy of every
// execution.progress event, for a dashboard-wide live view that isn't
// scoped to one execution.
const GlobalExecutionsChannel = "executions"

// ExecutionChannel returns the channel name for a specific workflow
// execution's events. Format: "execution:{execution_id}"
func ExecutionChannel(executionID string) string {
	return "execution:" + executionID
}

// ConversationChannel returns the channel name for a specific
// conversation's events. Format: "conversation:{conversation_id}"
func ConversationChannel(conversationID string) string {
	return "conversation:" + conversationID
}

// ClientMessage is the JSON structure for client → server WebSocket messages.
type ClientMessage struct {
	Action      string `json:"action"`                   // "subscribe", "unsubscribe", "catchup", "ping"
	Channel     string `json:"channel,omitempty"`        // Channel name (e.g., "execution:abc-123")
	LastEventID *int   `json:"last_event_id,omitempty"` // For catchup
}
