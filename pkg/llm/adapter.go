package llm

import (
	"context"
	"fmt"
	"strings"
)

// Adapter dispatches a ChatRequest to the Provider registered for its
// model's family (matched by prefix, e.g. "gpt-" or "claude-"), giving
// callers one interface regardless of which upstream answers.
type Adapter struct {
	byPrefix map[string]Provider
	fallback Provider
}

// NewAdapter constructs an empty Adapter.
func NewAdapter() *Adapter {
	return &Adapter{byPrefix: make(map[string]Provider)}
}

// Register associates a model-name prefix with a Provider.
func (a *Adapter) Register(modelPrefix string, p Provider) {
	a.byPrefix[modelPrefix] = p
}

// SetFallback sets the Provider used when no prefix matches.
func (a *Adapter) SetFallback(p Provider) {
	a.fallback = p
}

func (a *Adapter) resolve(model string) (Provider, error) {
	for prefix, p := range a.byPrefix {
		if strings.HasPrefix(model, prefix) {
			return p, nil
		}
	}
	if a.fallback != nil {
		return a.fallback, nil
	}
	return nil, fmt.Errorf("no llm provider registered for model %q", model)
}

// Chat implements Provider by dispatching to the matching registered
// Provider.
func (a *Adapter) Chat(ctx context.Context, req ChatRequest) (*Response, error) {
	p, err := a.resolve(req.Model)
	if err != nil {
		return nil, err
	}
	return p.Chat(ctx, req)
}

// ChatStream implements Provider by dispatching to the matching
// registered Provider.
func (a *Adapter) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	p, err := a.resolve(req.Model)
	if err != nil {
		return nil, err
	}
	return p.ChatStream(ctx, req)
}
