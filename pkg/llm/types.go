// Package llm implements the LLM Provider Adapter (C4): one uniform
// chat/chat_stream/chat_with_tools interface with variant dispatch per
// model family, grounded on the multi-provider OpenAI/Anthropic adapters
// in the example pack's rakunlabs-at service/llm package, and like them
// built on the klient HTTP client wrapper (see DESIGN.md).
package llm

import "context"

// Role is a chat message's speaker, mirroring the shared Message model.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn of conversation sent to a provider.
type Message struct {
	Role       Role
	Content    string
	ToolCallID string     // set on RoleTool messages: which call this answers
	ToolCalls  []ToolCall // set on RoleAssistant messages that requested tools
}

// ToolSpec describes a callable tool in provider-agnostic form.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a single tool invocation requested by the model. Arguments
// is always populated: when the provider's argument JSON fails to parse,
// it is surfaced as {"raw": <string>} instead of aborting the response.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Usage reports token accounting, when the provider supplies it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the result of a non-streaming chat call.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *Usage
}

// StreamChunk is one increment of a streaming chat call.
type StreamChunk struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        *Usage
	Err          error
}

// ChatRequest carries everything a provider needs to answer one turn.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Tools       []ToolSpec
}

// Provider is the one interface every model family implements.
type Provider interface {
	// Chat returns a single complete Response.
	Chat(ctx context.Context, req ChatRequest) (*Response, error)

	// ChatStream returns a finite, non-restartable sequence of chunks
	// that completes when the upstream closes the stream.
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
}

// ChatWithTools is semantically identical to Chat, named separately so
// call sites that intend to run a tool loop read as such.
func ChatWithTools(ctx context.Context, p Provider, req ChatRequest) (*Response, error) {
	return p.Chat(ctx, req)
}
