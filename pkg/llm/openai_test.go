package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conductorhq/conductor/pkg/llm"
)

func TestOpenAIProvider_Chat_ParsesToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		resp := map[string]any{
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"content": "",
						"tool_calls": []map[string]any{
							{
								"id": "call_1",
								"function": map[string]any{
									"name":      "get_weather",
									"arguments": `{"city":"Lisbon"}`,
								},
							},
						},
					},
					"finish_reason": "tool_calls",
				},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p, err := llm.NewOpenAIProvider("test-key", server.URL)
	require.NoError(t, err)
	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		Model:    "gpt-4o",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "weather in Lisbon?"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	require.Equal(t, "get_weather", resp.ToolCalls[0].Name)
	require.Equal(t, "Lisbon", resp.ToolCalls[0].Arguments["city"])
	require.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestOpenAIProvider_Chat_MalformedToolArgumentsSurfaceAsRaw(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"tool_calls": []map[string]any{
							{
								"id": "call_1",
								"function": map[string]any{
									"name":      "broken",
									"arguments": `not-json{`,
								},
							},
						},
					},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p, err := llm.NewOpenAIProvider("k", server.URL)
	require.NoError(t, err)
	resp, err := p.Chat(context.Background(), llm.ChatRequest{Model: "gpt-4o"})
	require.NoError(t, err)
	require.Equal(t, "not-json{", resp.ToolCalls[0].Arguments["raw"])
}

func TestOpenAIProvider_Chat_UpstreamErrorSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"error": map[string]any{"message": "rate limited upstream"}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p, err := llm.NewOpenAIProvider("k", server.URL)
	require.NoError(t, err)
	_, err = p.Chat(context.Background(), llm.ChatRequest{Model: "gpt-4o"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limited upstream")
}

func TestOpenAIProvider_ChatStream_AccumulatesContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"choices":[{"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"delta":{"content":"lo"},"finish_reason":"stop"}]}`,
			`{"choices":[],"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`,
		}
		for _, c := range chunks {
			_, _ = w.Write([]byte("data: " + c + "\n\n"))
			flusher.Flush()
		}
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
		flusher.Flush()
	}))
	defer server.Close()

	p, err := llm.NewOpenAIProvider("k", server.URL)
	require.NoError(t, err)
	ch, err := p.ChatStream(context.Background(), llm.ChatRequest{Model: "gpt-4o"})
	require.NoError(t, err)

	var content string
	var sawUsage bool
	for chunk := range ch {
		require.NoError(t, chunk.Err)
		content += chunk.Content
		if chunk.Usage != nil {
			sawUsage = true
			require.Equal(t, 3, chunk.Usage.TotalTokens)
		}
	}
	require.Equal(t, "Hello", content)
	require.True(t, sawUsage)
}
