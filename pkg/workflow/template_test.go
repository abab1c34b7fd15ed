package workflow_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conductorhq/conductor/pkg/workflow"
)

func TestResolveTemplate_WholeStringPreservesType(t *testing.T) {
	// S4 — whole-string template preserves type.
	ctx := map[string]any{"trigger": map[string]any{"n": 42}}
	result := workflow.ResolveTemplate("{{trigger.n}}", ctx)
	require.Equal(t, 42, result)
}

func TestResolveTemplate_SplicingStringifiesAndPreservesSurroundingText(t *testing.T) {
	// S3 — template splicing.
	ctx := map[string]any{"trigger": map[string]any{"name": "Ada"}}
	result := workflow.ResolveTemplate("Hello, {{trigger.name}}!", ctx)
	require.Equal(t, "Hello, Ada!", result)
}

func TestResolveTemplate_SplicedNullBecomesEmptyString(t *testing.T) {
	ctx := map[string]any{"trigger": map[string]any{}}
	result := workflow.ResolveTemplate("value=[{{trigger.missing}}]", ctx)
	require.Equal(t, "value=[]", result)
}

func TestResolveTemplate_WholeStringNullPreservesNil(t *testing.T) {
	ctx := map[string]any{"trigger": map[string]any{}}
	result := workflow.ResolveTemplate("{{trigger.missing}}", ctx)
	require.Nil(t, result)
}

func TestResolveTemplate_NonStringPassesThroughUnchanged(t *testing.T) {
	result := workflow.ResolveTemplate(42, map[string]any{})
	require.Equal(t, 42, result)
}

func TestResolveTemplate_NoBracesReturnsStringUnchanged(t *testing.T) {
	result := workflow.ResolveTemplate("plain text", map[string]any{})
	require.Equal(t, "plain text", result)
}

func TestResolveTemplate_FailingExpressionDoesNotPanic(t *testing.T) {
	ctx := map[string]any{}
	require.NotPanics(t, func() {
		workflow.ResolveTemplate("{{invalid[}", ctx)
	})
}
