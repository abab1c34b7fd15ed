package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateIfNeeded(t *testing.T) {
	t.Run("passes through normal payload", func(t *testing.T) {
		payload, _ := json.Marshal(ExecutionStatusPayload{
			Type:        EventTypeExecutionStatus,
			ExecutionID: "abc-123",
			Status:      "running",
		})

		result, err := truncateIfNeeded(string(payload))
		require.NoError(t, err)
		assert.Contains(t, result, EventTypeExecutionStatus)
		assert.Contains(t, result, "abc-123")
	})

	t.Run("truncates oversized payload", func(t *testing.T) {
		longOutput := make([]byte, 8000)
		for i := range longOutput {
			longOutput[i] = 'a'
		}
		payload, _ := json.Marshal(NodeResultPayload{
			Type:        EventTypeNodeResult,
			ExecutionID: "abc-123",
			NodeID:      "node-1",
			Status:      "completed",
			Output:      map[string]any{"blob": string(longOutput)},
		})

		result, err := truncateIfNeeded(string(payload))
		require.NoError(t, err)
		assert.Contains(t, result, "truncated")
		assert.Less(t, len(result), 8000)
	})

	t.Run("does not truncate small payload", func(t *testing.T) {
		payload, _ := json.Marshal(StreamChunkPayload{
			Type:  EventTypeStreamChunk,
			Delta: "hello",
		})

		result, err := truncateIfNeeded(string(payload))
		require.NoError(t, err)
		assert.NotContains(t, result, "truncated")
	})

	t.Run("truncated payload preserves key routing fields", func(t *testing.T) {
		longOutput := make([]byte, 8000)
		for i := range longOutput {
			longOutput[i] = 'x'
		}
		payload, _ := json.Marshal(NodeResultPayload{
			Type:        EventTypeNodeResult,
			ExecutionID: "exec-789",
			NodeID:      "node-1",
			Status:      "completed",
			Output:      map[string]any{"blob": string(longOutput)},
		})

		result, err := truncateIfNeeded(string(payload))
		require.NoError(t, err)

		assert.Contains(t, result, EventTypeNodeResult)
		assert.Contains(t, result, "exec-789")
		assert.Contains(t, result, `"truncated":true`)
		assert.NotContains(t, result, "xxxx")
	})

	t.Run("boundary: payload just under limit is not truncated", func(t *testing.T) {
		// Build a payload whose JSON is just under 7900 bytes. Marshal an
		// empty struct first to measure the overhead of fixed fields; the
		// 20-byte margin absorbs encoding variability if fields are added.
		base, _ := json.Marshal(NodeResultPayload{Type: "t"})
		contentSize := 7900 - len(base) - 20
		content := make([]byte, contentSize)
		for i := range content {
			content[i] = 'b'
		}
		payload, _ := json.Marshal(NodeResultPayload{
			Type:   "t",
			Output: map[string]any{"blob": string(content)},
		})
		require.LessOrEqual(t, len(payload), 7900, "test payload should be under limit")

		result, err := truncateIfNeeded(string(payload))
		require.NoError(t, err)
		assert.NotContains(t, result, "truncated")
	})

	t.Run("empty JSON object", func(t *testing.T) {
		result, err := truncateIfNeeded("{}")
		require.NoError(t, err)
		assert.Equal(t, "{}", result)
	})
}

func TestInjectDBEventIDAndTruncate(t *testing.T) {
	t.Run("injects db_event_id into normal payload", func(t *testing.T) {
		payload, _ := json.Marshal(ExecutionStatusPayload{
			Type:        EventTypeExecutionStatus,
			ExecutionID: "exec-1",
			Status:      "running",
		})

		result, err := injectDBEventIDAndTruncate(payload, 42)
		require.NoError(t, err)
		assert.Contains(t, result, `"db_event_id":42`)
		assert.Contains(t, result, "exec-1")
	})

	t.Run("truncated payload preserves db_event_id", func(t *testing.T) {
		longOutput := make([]byte, 8000)
		for i := range longOutput {
			longOutput[i] = 'x'
		}
		payload, _ := json.Marshal(NodeResultPayload{
			Type:        EventTypeNodeResult,
			ExecutionID: "exec-789",
			NodeID:      "node-1",
			Status:      "completed",
			Output:      map[string]any{"blob": string(longOutput)},
		})

		result, err := injectDBEventIDAndTruncate(payload, 42)
		require.NoError(t, err)
		assert.Contains(t, result, `"truncated":true`)
		assert.Contains(t, result, `"db_event_id":42`)
		assert.Contains(t, result, "exec-789")
	})

	t.Run("truncated payload without execution_id or conversation_id omits both", func(t *testing.T) {
		longOutput := make([]byte, 8000)
		for i := range longOutput {
			longOutput[i] = 'x'
		}
		payload, _ := json.Marshal(map[string]any{
			"type": EventTypeStreamChunk,
			"blob": string(longOutput),
		})

		result, err := injectDBEventIDAndTruncate(payload, 99)
		require.NoError(t, err)
		assert.Contains(t, result, `"truncated":true`)
		assert.Contains(t, result, `"db_event_id":99`)
		assert.NotContains(t, result, "execution_id")
		assert.NotContains(t, result, "conversation_id")
	})

	t.Run("truncated payload keeps conversation_id when execution_id absent", func(t *testing.T) {
		longOutput := make([]byte, 8000)
		for i := range longOutput {
			longOutput[i] = 'x'
		}
		payload, _ := json.Marshal(StreamChunkPayload{
			Type:           EventTypeStreamChunk,
			ConversationID: "conv-1",
			Delta:          string(longOutput),
		})

		result, err := injectDBEventIDAndTruncate(payload, 7)
		require.NoError(t, err)
		assert.Contains(t, result, `"conversation_id":"conv-1"`)
		assert.NotContains(t, result, "execution_id")
	})
}

func TestNewEventPublisher(t *testing.T) {
	publisher := NewEventPublisher(nil)
	assert.NotNil(t, publisher)
	assert.Nil(t, publisher.db)
}

func TestExecutionStatusPayload_JSON(t *testing.T) {
	payload := ExecutionStatusPayload{
		Type:        EventTypeExecutionStatus,
		ExecutionID: "exec-123",
		WorkflowID:  "wf-1",
		Status:      "running",
		Timestamp:   "2026-02-10T12:00:00Z",
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded ExecutionStatusPayload
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, EventTypeExecutionStatus, decoded.Type)
	assert.Equal(t, "exec-123", decoded.ExecutionID)
	assert.Equal(t, "wf-1", decoded.WorkflowID)
	assert.Equal(t, "running", decoded.Status)
	assert.Equal(t, "2026-02-10T12:00:00Z", decoded.Timestamp)
}

func TestNodeResultPayload_EmptyErrorOmitted(t *testing.T) {
	payload := NodeResultPayload{
		Type:        EventTypeNodeResult,
		ExecutionID: "exec-1",
		NodeID:      "node-1",
		Status:      "completed",
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "\"error\"")
}

func TestExecutionProgressPayload_JSON(t *testing.T) {
	payload := ExecutionProgressPayload{
		Type:           EventTypeExecutionProgress,
		ExecutionID:    "exec-200",
		NodesCompleted: 2,
		NodesTotal:     3,
		Timestamp:      "2026-02-13T10:00:00Z",
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded ExecutionProgressPayload
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, EventTypeExecutionProgress, decoded.Type)
	assert.Equal(t, "exec-200", decoded.ExecutionID)
	assert.Equal(t, 2, decoded.NodesCompleted)
	assert.Equal(t, 3, decoded.NodesTotal)
}

func TestChatMessagePayload_JSON(t *testing.T) {
	payload := ChatMessagePayload{
		Type:           EventTypeChatMessage,
		ConversationID: "conv-300",
		Role:           "tool",
		Content:        "result: ok",
		Timestamp:      "2026-02-13T10:00:00Z",
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded ChatMessagePayload
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, EventTypeChatMessage, decoded.Type)
	assert.Equal(t, "conv-300", decoded.ConversationID)
	assert.Equal(t, "tool", decoded.Role)
	assert.Equal(t, "result: ok", decoded.Content)
}
