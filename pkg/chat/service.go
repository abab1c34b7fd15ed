package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/conductorhq/conductor/pkg/database"
	"github.com/conductorhq/conductor/pkg/events"
	"github.com/conductorhq/conductor/pkg/llm"
	"github.com/conductorhq/conductor/pkg/models"
	"github.com/conductorhq/conductor/pkg/tools"
)

// MaxToolIterations bounds the tool-use loop regardless of model
// behavior.
const MaxToolIterations = 5

// Service runs the bounded chat/tool-use loop for an Agent.
type Service struct {
	conversations *database.ConversationRepo
	registry      *tools.Registry
	provider      llm.Provider
	events        *events.EventPublisher // optional; nil disables WS fanout of chat activity
	log           *slog.Logger
}

// New constructs a Service. publisher may be nil, in which case chat
// activity is persisted but never broadcast over WebSocket.
func New(conversations *database.ConversationRepo, registry *tools.Registry, provider llm.Provider, publisher *events.EventPublisher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{conversations: conversations, registry: registry, provider: provider, events: publisher, log: log}
}

// publishMessage broadcasts a persisted chat message over the
// conversation's WebSocket channel. Best-effort: publish failures are
// logged, never surfaced to the caller.
func (s *Service) publishMessage(ctx context.Context, conversationID string, role models.MessageRole, content string) {
	if s.events == nil {
		return
	}
	err := s.events.PublishChatMessage(ctx, conversationID, events.ChatMessagePayload{
		Type:           events.EventTypeChatMessage,
		ConversationID: conversationID,
		Role:           string(role),
		Content:        content,
		Timestamp:      time.Now().Format(time.RFC3339Nano),
	})
	if err != nil {
		s.log.Warn("failed to publish chat message", "conversation_id", conversationID, "error", err)
	}
}

// publishChunk broadcasts one incremental content delta for live
// streaming UIs. Transient: never persisted, best-effort delivery.
func (s *Service) publishChunk(ctx context.Context, conversationID, delta string) {
	if s.events == nil {
		return
	}
	err := s.events.PublishStreamChunk(ctx, conversationID, events.StreamChunkPayload{
		Type:           events.EventTypeStreamChunk,
		ConversationID: conversationID,
		Delta:          delta,
		Timestamp:      time.Now().Format(time.RFC3339Nano),
	})
	if err != nil {
		s.log.Warn("failed to publish stream chunk", "conversation_id", conversationID, "error", err)
	}
}

// resolveConversation loads an existing conversation or creates a new
// one for participant/userID.
func (s *Service) resolveConversation(ctx context.Context, participant models.ChatParticipant, userID, conversationID string) (string, error) {
	if conversationID != "" {
		if conv, err := s.conversations.GetByID(ctx, conversationID); err == nil {
			return conv.ID, nil
		}
	}
	conv := &models.Conversation{ID: uuid.NewString(), AgentID: participant.ParticipantID(), UserID: userID}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return "", err
	}
	return conv.ID, nil
}

func (s *Service) persistMessage(ctx context.Context, conversationID string, role models.MessageRole, content string, toolCallID string, toolCalls []models.ToolCallAttachment) error {
	seq, err := s.conversations.NextSeq(ctx, conversationID)
	if err != nil {
		return err
	}
	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		ToolCallID:     toolCallID,
		ToolCalls:      toolCalls,
		Seq:            seq,
	}
	return s.conversations.AppendMessage(ctx, msg)
}

// buildMessages assembles [system_prompt] ++ full_history ++
// [new_user_message] in the llm package's wire shape.
func (s *Service) buildMessages(ctx context.Context, participant models.ChatParticipant, conversationID, userMessage string) ([]llm.Message, error) {
	history, err := s.conversations.History(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	out := make([]llm.Message, 0, len(history)+2)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: participant.Prompt()})
	for _, m := range history {
		out = append(out, llm.Message{Role: llm.Role(m.Role), Content: m.Content, ToolCallID: m.ToolCallID})
	}
	out = append(out, llm.Message{Role: llm.RoleUser, Content: userMessage})
	return out, nil
}

func (s *Service) toolSpecs(participant models.ChatParticipant) []llm.ToolSpec {
	defs := s.registry.DefinitionsFor(participant.ToolNames())
	if len(defs) == 0 {
		return nil
	}
	specs := make([]llm.ToolSpec, len(defs))
	for i, d := range defs {
		specs[i] = llm.ToolSpec{Name: d.Name, Description: d.Description, Parameters: d.Parameters}
	}
	return specs
}

// resultJSON mirrors the original system's json.dumps(result.to_dict())
// tool-result message content.
func resultJSON(r tools.Result) string {
	payload := map[string]any{"success": r.OK, "output": r.Output, "error": r.Error}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":%q}`, err.Error())
	}
	return string(b)
}

// Chat runs the non-streaming form of the loop: it returns once a
// response with no tool calls is produced, or MaxToolIterations is
// exhausted.
func (s *Service) Chat(ctx context.Context, participant models.ChatParticipant, userID, userMessage, conversationID string) (string, string, error) {
	convID, err := s.resolveConversation(ctx, participant, userID, conversationID)
	if err != nil {
		return "", "", err
	}
	if err := s.persistMessage(ctx, convID, models.RoleUser, userMessage, "", nil); err != nil {
		return "", "", err
	}

	messages, err := s.buildMessages(ctx, participant, convID, userMessage)
	if err != nil {
		return "", "", err
	}
	toolSpecs := s.toolSpecs(participant)

	executor := tools.NewExecutor(s.registry, tools.DefaultMaxCallsPerTurn, tools.DefaultTimeout)
	executor.ResetTurn()

	var finalContent string
	for iteration := 0; iteration < MaxToolIterations; iteration++ {
		resp, err := s.provider.Chat(ctx, llm.ChatRequest{Model: participant.Model(), Messages: messages, Tools: toolSpecs})
		if err != nil {
			return convID, "", fmt.Errorf("calling llm: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			finalContent = resp.Content
			break
		}

		for _, tc := range resp.ToolCalls {
			result := executor.Execute(ctx, tc.Name, tc.Arguments, 0)

			callerNote := fmt.Sprintf("Calling tool: %s", tc.Name)
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: callerNote})
			messages = append(messages, llm.Message{Role: llm.RoleTool, Content: resultJSON(result), ToolCallID: tc.ID})

			if err := s.persistMessage(ctx, convID, models.RoleAssistant, callerNote, "", []models.ToolCallAttachment{
				{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments},
			}); err != nil {
				return convID, "", err
			}
			if err := s.persistMessage(ctx, convID, models.RoleTool, resultJSON(result), tc.ID, nil); err != nil {
				return convID, "", err
			}
		}
		finalContent = resp.Content
	}

	if err := s.persistMessage(ctx, convID, models.RoleAssistant, finalContent, "", nil); err != nil {
		return convID, "", err
	}
	return convID, finalContent, nil
}

// ChatStreamWithTools runs the streaming form of the loop. The returned
// channel is closed after exactly one terminal event (done or error);
// every tool_call emitted has exactly one matching tool_result emitted
// after it, and content is only ever emitted on the final, no-tool-calls
// iteration. On any failure mid-loop an error event is emitted and
// whatever messages were already persisted remain — partial durability
// is intentional, not a bug to paper over.
func (s *Service) ChatStreamWithTools(ctx context.Context, participant models.ChatParticipant, userID, userMessage, conversationID string) (<-chan StreamEvent, error) {
	convID, err := s.resolveConversation(ctx, participant, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if err := s.persistMessage(ctx, convID, models.RoleUser, userMessage, "", nil); err != nil {
		return nil, err
	}

	messages, err := s.buildMessages(ctx, participant, convID, userMessage)
	if err != nil {
		return nil, err
	}
	toolSpecs := s.toolSpecs(participant)

	stream := make(chan StreamEvent, 8)
	go func() {
		defer close(stream)

		emit := func(e StreamEvent) bool {
			select {
			case stream <- e:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit(StreamEvent{Type: EventStart, ConversationID: convID}) {
			return
		}

		executor := tools.NewExecutor(s.registry, tools.DefaultMaxCallsPerTurn, tools.DefaultTimeout)
		executor.ResetTurn()

		for iteration := 0; iteration < MaxToolIterations; iteration++ {
			resp, err := s.provider.Chat(ctx, llm.ChatRequest{Model: participant.Model(), Messages: messages, Tools: toolSpecs})
			if err != nil {
				emit(StreamEvent{Type: EventError, Message: fmt.Sprintf("calling llm: %s", err)})
				return
			}

			if len(resp.ToolCalls) == 0 {
				if resp.Content != "" {
					s.publishChunk(ctx, convID, resp.Content)
					if !emit(StreamEvent{Type: EventContent, Content: resp.Content}) {
						return
					}
					if err := s.persistMessage(ctx, convID, models.RoleAssistant, resp.Content, "", nil); err != nil {
						emit(StreamEvent{Type: EventError, Message: fmt.Sprintf("persisting final message: %s", err)})
						return
					}
					s.publishMessage(ctx, convID, models.RoleAssistant, resp.Content)
				}
				emit(StreamEvent{Type: EventDone})
				return
			}

			for _, tc := range resp.ToolCalls {
				if !emit(StreamEvent{Type: EventToolCall, ToolCallID: tc.ID, ToolName: tc.Name, ToolArgs: tc.Arguments}) {
					return
				}

				result := executor.Execute(ctx, tc.Name, tc.Arguments, 0)

				if !emit(StreamEvent{
					Type:        EventToolResult,
					ToolCallID:  tc.ID,
					ToolSuccess: result.OK,
					ToolOutput:  result.Output,
					ToolError:   result.Error,
				}) {
					return
				}

				callerNote := fmt.Sprintf("Calling tool: %s", tc.Name)
				messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: callerNote})
				messages = append(messages, llm.Message{Role: llm.RoleTool, Content: resultJSON(result), ToolCallID: tc.ID})

				if err := s.persistMessage(ctx, convID, models.RoleAssistant, callerNote, "", []models.ToolCallAttachment{
					{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments},
				}); err != nil {
					emit(StreamEvent{Type: EventError, Message: fmt.Sprintf("persisting tool call: %s", err)})
					return
				}
				s.publishMessage(ctx, convID, models.RoleAssistant, callerNote)
				if err := s.persistMessage(ctx, convID, models.RoleTool, resultJSON(result), tc.ID, nil); err != nil {
					emit(StreamEvent{Type: EventError, Message: fmt.Sprintf("persisting tool result: %s", err)})
					return
				}
				s.publishMessage(ctx, convID, models.RoleTool, resultJSON(result))
			}
		}

		emit(StreamEvent{Type: EventDone})
	}()

	return stream, nil
}

// Simple runs a non-tool chat turn: one LLM call, no tool-use round
// trip, kept for callers (e.g. a plain conversational agent with no
// registered tools) that don't need ChatStreamWithTools's detection
// loop. The returned channel emits exactly EventStart, then either
// EventContent+EventDone or EventError.
func (s *Service) Simple(ctx context.Context, participant models.ChatParticipant, userID, userMessage, conversationID string) (<-chan StreamEvent, error) {
	convID, err := s.resolveConversation(ctx, participant, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if err := s.persistMessage(ctx, convID, models.RoleUser, userMessage, "", nil); err != nil {
		return nil, err
	}

	messages, err := s.buildMessages(ctx, participant, convID, userMessage)
	if err != nil {
		return nil, err
	}

	stream := make(chan StreamEvent, 4)
	go func() {
		defer close(stream)

		emit := func(e StreamEvent) bool {
			select {
			case stream <- e:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit(StreamEvent{Type: EventStart, ConversationID: convID}) {
			return
		}

		resp, err := s.provider.Chat(ctx, llm.ChatRequest{Model: participant.Model(), Messages: messages})
		if err != nil {
			emit(StreamEvent{Type: EventError, Message: fmt.Sprintf("calling llm: %s", err)})
			return
		}

		s.publishChunk(ctx, convID, resp.Content)
		if !emit(StreamEvent{Type: EventContent, Content: resp.Content}) {
			return
		}
		if err := s.persistMessage(ctx, convID, models.RoleAssistant, resp.Content, "", nil); err != nil {
			emit(StreamEvent{Type: EventError, Message: fmt.Sprintf("persisting final message: %s", err)})
			return
		}
		s.publishMessage(ctx, convID, models.RoleAssistant, resp.Content)
		emit(StreamEvent{Type: EventDone})
	}()

	return stream, nil
}
