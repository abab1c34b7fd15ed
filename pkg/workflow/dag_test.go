package workflow_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conductorhq/conductor/pkg/workflow"
)

func TestSort_ValidDAGProducesTopologicalOrder(t *testing.T) {
	nodeIDs := []string{"a", "b", "c"}
	edges := [][2]string{{"a", "b"}, {"b", "c"}}

	dag := workflow.BuildDAG(nodeIDs, edges)
	order, err := workflow.Sort(dag, nodeIDs)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestSort_TieBreaksFollowFirstAppearanceOrder(t *testing.T) {
	// b and c both depend only on a, so once a is popped both become
	// ready simultaneously; the tie must resolve to nodes order (c, b).
	nodeIDs := []string{"a", "c", "b", "d"}
	edges := [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}}

	dag := workflow.BuildDAG(nodeIDs, edges)
	order, err := workflow.Sort(dag, nodeIDs)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c", "b", "d"}, order)
}

func TestSort_CycleIsRejected(t *testing.T) {
	// S1 — Cycle rejection.
	nodeIDs := []string{"a", "b", "c"}
	edges := [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}}

	dag := workflow.BuildDAG(nodeIDs, edges)
	_, err := workflow.Sort(dag, nodeIDs)
	require.Error(t, err)
	require.Contains(t, err.Error(), "circular")
}

func TestBuildDAG_EveryNodeIsAKeyEvenWithNoEdges(t *testing.T) {
	dag := workflow.BuildDAG([]string{"solo"}, nil)
	require.Contains(t, dag, "solo")
	require.Empty(t, dag["solo"])
}

func TestBuildDAG_IgnoresEdgesWithUnknownEndpoints(t *testing.T) {
	dag := workflow.BuildDAG([]string{"a", "b"}, [][2]string{{"a", "ghost"}, {"a", "b"}})
	require.Equal(t, []string{"a"}, dag["b"])
}

func TestBuildDAG_DeduplicatesDuplicateEdges(t *testing.T) {
	dag := workflow.BuildDAG([]string{"a", "b"}, [][2]string{{"a", "b"}, {"a", "b"}})
	require.Len(t, dag["b"], 1)
}

func TestSort_TrivialTwoNodeDAG(t *testing.T) {
	// S2 — trivial trigger -> output DAG.
	nodeIDs := []string{"t", "o"}
	edges := [][2]string{{"t", "o"}}

	dag := workflow.BuildDAG(nodeIDs, edges)
	order, err := workflow.Sort(dag, nodeIDs)
	require.NoError(t, err)
	require.Equal(t, []string{"t", "o"}, order)
}
