package llm

import "context"

// FakeProvider is a scripted Provider for tests: each call to Chat or
// ChatStream pops the next entry off Responses (looping on the last one
// once exhausted isn't supported — tests should supply exactly as many
// as they expect calls).
type FakeProvider struct {
	Responses []Response
	Err       error
	calls     int
	Requests  []ChatRequest
}

// Chat implements Provider.
func (f *FakeProvider) Chat(_ context.Context, req ChatRequest) (*Response, error) {
	f.Requests = append(f.Requests, req)
	if f.Err != nil {
		return nil, f.Err
	}
	idx := f.calls
	f.calls++
	if idx >= len(f.Responses) {
		return &Response{}, nil
	}
	resp := f.Responses[idx]
	return &resp, nil
}

// ChatStream implements Provider by replaying the next scripted Response
// as a single chunk.
func (f *FakeProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	resp, err := f.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan StreamChunk, 1)
	ch <- StreamChunk{Content: resp.Content, ToolCalls: resp.ToolCalls, Usage: resp.Usage, FinishReason: "stop"}
	close(ch)
	return ch, nil
}
