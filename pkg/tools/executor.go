package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxCallsPerTurn and DefaultTimeout are the spec's stated
// defaults for C3.
const (
	DefaultMaxCallsPerTurn = 5
	DefaultTimeout         = 60 * time.Second
)

// Call is a single requested tool invocation, as emitted by an LLM's
// tool_calls response.
type Call struct {
	Name string
	Args map[string]any
}

// Executor runs tool calls against a Registry, enforcing a per-turn call
// cap and a per-call timeout. One Executor is scoped to one chat turn's
// lifetime; ResetTurn starts a fresh budget for the next turn.
type Executor struct {
	registry        *Registry
	maxCallsPerTurn int
	defaultTimeout  time.Duration

	mu        sync.Mutex
	callCount int
}

// NewExecutor constructs an Executor. maxCallsPerTurn <= 0 and
// defaultTimeout <= 0 fall back to the package defaults.
func NewExecutor(registry *Registry, maxCallsPerTurn int, defaultTimeout time.Duration) *Executor {
	if maxCallsPerTurn <= 0 {
		maxCallsPerTurn = DefaultMaxCallsPerTurn
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &Executor{registry: registry, maxCallsPerTurn: maxCallsPerTurn, defaultTimeout: defaultTimeout}
}

// ResetTurn resets the call counter. Call once at the start of every chat
// turn, before the first Execute/ExecuteParallel of that turn.
func (e *Executor) ResetTurn() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callCount = 0
}

// CallsRemaining reports the budget left in the current turn.
func (e *Executor) CallsRemaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remainingLocked()
}

func (e *Executor) remainingLocked() int {
	remaining := e.maxCallsPerTurn - e.callCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// claim reserves one slot of budget, returning false if none remain.
func (e *Executor) claim() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.callCount >= e.maxCallsPerTurn {
		return false
	}
	e.callCount++
	return true
}

// Execute runs a single tool call. A zero timeout uses the executor's
// default. The call-limit counter is incremented before dispatch; once
// the cap is reached, further calls return an over-limit Result without
// invoking the tool.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any, timeout time.Duration) Result {
	if !e.claim() {
		return ErrResult(fmt.Sprintf("tool call limit reached (%d calls per turn)", e.maxCallsPerTurn))
	}
	return e.dispatch(ctx, name, args, timeout)
}

func (e *Executor) dispatch(ctx context.Context, name string, args map[string]any, timeout time.Duration) Result {
	tool, ok := e.registry.Get(name)
	if !ok {
		return ErrResult(fmt.Sprintf("unknown tool: %s", name))
	}

	effectiveTimeout := timeout
	if effectiveTimeout <= 0 {
		effectiveTimeout = e.defaultTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, effectiveTimeout)
	defer cancel()

	type outcome struct {
		result Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{result: ErrResult(fmt.Sprintf("invalid arguments: %v", r))}
			}
		}()
		result, err := tool.Execute(callCtx, args)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-callCtx.Done():
		return ErrResult(fmt.Sprintf("tool execution timed out after %s", effectiveTimeout))
	case o := <-done:
		if o.err != nil {
			return ErrResult(fmt.Sprintf("execution error: %s", o.err))
		}
		return o.result
	}
}

// ExecuteParallel runs calls concurrently, in index order, against the
// remaining turn budget. If len(calls) exceeds the remaining budget, the
// first remaining-budget calls execute and the rest receive an
// over-limit Result at their original index — Results are always
// returned in the same order as calls.
func (e *Executor) ExecuteParallel(ctx context.Context, calls []Call, timeout time.Duration) []Result {
	if len(calls) == 0 {
		return nil
	}

	remaining := e.CallsRemaining()
	executable := calls
	var overflow []Call
	if len(calls) > remaining {
		executable = calls[:remaining]
		overflow = calls[remaining:]
	}

	results := make([]Result, len(calls))
	var wg errgroup.Group
	for i, c := range executable {
		i, c := i, c
		wg.Go(func() error {
			results[i] = e.Execute(ctx, c.Name, c.Args, timeout)
			return nil
		})
	}
	_ = wg.Wait()

	for i, c := range overflow {
		idx := len(executable) + i
		results[idx] = ErrResult(fmt.Sprintf("tool call limit reached, %s not executed", c.Name))
	}
	return results
}
