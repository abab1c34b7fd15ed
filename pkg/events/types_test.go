package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutionChannel(t *testing.T) {
	tests := []struct {
		name        string
		executionID string
		want        string
	}{
		{
			name:        "formats execution channel correctly",
			executionID: "abc-123",
			want:        "execution:abc-123",
		},
		{
			name:        "handles UUID format",
			executionID: "550e8400-e29b-41d4-a716-446655440000",
			want:        "execution:550e8400-e29b-41d4-a716-446655440000",
		},
		{
			name:        "handles empty string",
			executionID: "",
			want:        "execution:",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExecutionChannel(tt.executionID)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConversationChannel(t *testing.T) {
	tests := []struct {
		name           string
		conversationID string
		want           string
	}{
		{
			name:           "formats conversation channel correctly",
			conversationID: "conv-1",
			want:           "conversation:conv-1",
		},
		{
			name:           "handles UUID format",
			conversationID: "550e8400-e29b-41d4-a716-446655440000",
			want:           "conversation:550e8400-e29b-41d4-a716-446655440000",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConversationChannel(tt.conversationID)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEventTypeConstants(t *testing.T) {
	// Verify event types are non-empty and distinct
	types := []string{
		EventTypeExecutionStatus,
		EventTypeNodeResult,
		EventTypeChatMessage,
		EventTypeExecutionProgress,
		EventTypeStreamChunk,
	}

	seen := make(map[string]bool)
	for _, typ := range types {
		assert.NotEmpty(t, typ, "event type should not be empty")
		assert.False(t, seen[typ], "duplicate event type: %s", typ)
		seen[typ] = true
	}
}

func TestGlobalExecutionsChannel(t *testing.T) {
	assert.Equal(t, "executions", GlobalExecutionsChannel)
}
