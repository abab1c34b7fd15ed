package models

import "time"

// MessageRole is the role of a message within a conversation.
type MessageRole string

// Message role constants.
const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// ToolCallAttachment is the structured tool_calls attachment carried by
// role=assistant messages that triggered tool dispatch.
type ToolCallAttachment struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Message is a single turn in a Conversation. Messages are totally ordered
// by CreatedAt; ties within the same logical write are broken by Seq, which
// is assigned monotonically by the conversation's single writer.
type Message struct {
	ID           string
	ConversationID string
	Role         MessageRole
	Content      string
	ToolCallID   string               // set only when Role == RoleTool
	ToolCalls    []ToolCallAttachment // set only when Role == RoleAssistant and tools were invoked
	Seq          int64
	CreatedAt    time.Time
}

// Conversation is an ordered sequence of Messages exchanged with one Agent.
type Conversation struct {
	ID        string
	AgentID   string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
