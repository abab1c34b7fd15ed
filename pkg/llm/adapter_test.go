package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conductorhq/conductor/pkg/llm"
)

func TestAdapter_DispatchesByModelPrefix(t *testing.T) {
	a := llm.NewAdapter()
	gpt := &llm.FakeProvider{Responses: []llm.Response{{Content: "from gpt"}}}
	claude := &llm.FakeProvider{Responses: []llm.Response{{Content: "from claude"}}}
	a.Register("gpt-", gpt)
	a.Register("claude-", claude)

	resp, err := a.Chat(context.Background(), llm.ChatRequest{Model: "gpt-4o"})
	require.NoError(t, err)
	require.Equal(t, "from gpt", resp.Content)

	resp, err = a.Chat(context.Background(), llm.ChatRequest{Model: "claude-3-5-sonnet"})
	require.NoError(t, err)
	require.Equal(t, "from claude", resp.Content)
}

func TestAdapter_UnknownModelWithoutFallbackErrors(t *testing.T) {
	a := llm.NewAdapter()
	_, err := a.Chat(context.Background(), llm.ChatRequest{Model: "mystery-model"})
	require.Error(t, err)
}

func TestAdapter_FallbackUsedWhenNoPrefixMatches(t *testing.T) {
	a := llm.NewAdapter()
	fallback := &llm.FakeProvider{Responses: []llm.Response{{Content: "fallback"}}}
	a.SetFallback(fallback)

	resp, err := a.Chat(context.Background(), llm.ChatRequest{Model: "mystery-model"})
	require.NoError(t, err)
	require.Equal(t, "fallback", resp.Content)
}
