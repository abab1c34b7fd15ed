package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/worldline-go/klient"
)

// OpenAIBaseURL is the default upstream for OpenAIProvider.
const OpenAIBaseURL = "https://api.openai.com/v1/chat/completions"

// OpenAIProvider talks to OpenAI's (and OpenAI-compatible) chat
// completions API.
type OpenAIProvider struct {
	APIKey  string
	BaseURL string
	client  *klient.Client
}

// NewOpenAIProvider constructs an OpenAIProvider backed by a klient.Client
// carrying the bearer auth header, mirroring the pack's own OpenAI
// provider (rakunlabs-at's internal/service/llm/openai).
func NewOpenAIProvider(apiKey, baseURL string) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = OpenAIBaseURL
	}

	headers := http.Header{"Content-Type": []string{"application/json"}}
	if apiKey != "" {
		headers["Authorization"] = []string{"Bearer " + apiKey}
	}

	client, err := klient.New(
		klient.WithBaseURL(baseURL),
		klient.WithLogger(slog.Default()),
		klient.WithHeaderSet(headers),
		klient.WithDisableRetry(true),
		klient.WithDisableEnvValues(true),
	)
	if err != nil {
		return nil, fmt.Errorf("building openai client: %w", err)
	}

	return &OpenAIProvider{APIKey: apiKey, BaseURL: baseURL, client: client}, nil
}

type openAIChoice struct {
	Message struct {
		Content   string             `json:"content"`
		ToolCalls []openAIToolCallIn `json:"tool_calls"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type openAIToolCallIn struct {
	ID       string `json:"id"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIError struct {
	Message string `json:"message"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIResponse struct {
	Error   *openAIError   `json:"error,omitempty"`
	Choices []openAIChoice `json:"choices"`
	Usage   *openAIUsage   `json:"usage,omitempty"`
}

func (p *OpenAIProvider) buildBody(req ChatRequest, stream bool) map[string]any {
	messages := make([]map[string]any, len(req.Messages))
	for i, m := range req.Messages {
		msg := map[string]any{"role": string(m.Role), "content": m.Content}
		if m.ToolCallID != "" {
			msg["tool_call_id"] = m.ToolCallID
		}
		messages[i] = msg
	}

	body := map[string]any{"model": req.Model, "messages": messages}
	if req.Temperature != 0 {
		body["temperature"] = req.Temperature
	}
	if req.MaxTokens != 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		tools := make([]map[string]any, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.Parameters,
				},
			}
		}
		body["tools"] = tools
	}
	if stream {
		body["stream"] = true
	}
	return body
}

func decodeToolCallArgs(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{"raw": raw}
	}
	return args
}

// Chat implements Provider. The request path is relative and empty
// because BaseURL already names the full chat-completions endpoint;
// klient resolves it against the client's configured base URL, same as
// the pack's own openai.Provider.Chat.
func (p *OpenAIProvider) Chat(ctx context.Context, chatReq ChatRequest) (*Response, error) {
	payload, err := json.Marshal(p.buildBody(chatReq, false))
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	var parsed openAIResponse
	if err := p.client.Do(httpReq, func(r *http.Response) error {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("decoding openai response: %w (body: %s)", err, string(body))
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("calling openai: %w", err)
	}

	if parsed.Error != nil {
		return nil, fmt.Errorf("openai error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	choice := parsed.Choices[0]
	out := &Response{Content: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: decodeToolCallArgs(tc.Function.Arguments),
		})
	}
	if parsed.Usage != nil {
		out.Usage = &Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		}
	}
	return out, nil
}

type openAIStreamChoice struct {
	Delta struct {
		Content   string             `json:"content"`
		ToolCalls []openAIToolCallIn `json:"tool_calls"`
	} `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

type openAIStreamResponse struct {
	Error   *openAIError         `json:"error,omitempty"`
	Choices []openAIStreamChoice `json:"choices"`
	Usage   *openAIUsage         `json:"usage,omitempty"`
}

// ChatStream implements Provider via OpenAI's server-sent-events stream
// format. Streaming bypasses klient.Client.Do's buffered-response
// callback (which reads the whole body before returning) and instead
// issues the request directly through the klient-managed *http.Client, the
// same split the pack's own openai.Provider.ChatStream makes.
func (p *OpenAIProvider) ChatStream(ctx context.Context, chatReq ChatRequest) (<-chan StreamChunk, error) {
	body := p.buildBody(chatReq, true)
	body["stream_options"] = map[string]any{"include_usage": true}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	resp, err := p.client.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling openai stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai stream returned status %d: %s", resp.StatusCode, string(b))
	}

	ch := make(chan StreamChunk, 16)
	go func() {
		defer close(ch)
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" || strings.HasPrefix(line, ":") {
				continue
			}
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				return
			}

			var sr openAIStreamResponse
			if err := json.Unmarshal([]byte(data), &sr); err != nil {
				select {
				case ch <- StreamChunk{Err: fmt.Errorf("decoding stream chunk: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
			if sr.Error != nil {
				select {
				case ch <- StreamChunk{Err: fmt.Errorf("openai stream error: %s", sr.Error.Message)}:
				case <-ctx.Done():
				}
				return
			}
			if len(sr.Choices) == 0 {
				if sr.Usage != nil {
					select {
					case ch <- StreamChunk{Usage: &Usage{
						PromptTokens:     sr.Usage.PromptTokens,
						CompletionTokens: sr.Usage.CompletionTokens,
						TotalTokens:      sr.Usage.TotalTokens,
					}}:
					case <-ctx.Done():
						return
					}
				}
				continue
			}

			choice := sr.Choices[0]
			chunk := StreamChunk{Content: choice.Delta.Content}
			for _, tc := range choice.Delta.ToolCalls {
				chunk.ToolCalls = append(chunk.ToolCalls, ToolCall{
					ID:        tc.ID,
					Name:      tc.Function.Name,
					Arguments: decodeToolCallArgs(tc.Function.Arguments),
				})
			}
			if choice.FinishReason != nil {
				chunk.FinishReason = *choice.FinishReason
			}

			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case ch <- StreamChunk{Err: fmt.Errorf("reading stream: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}
