package tools_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conductorhq/conductor/pkg/tools"
)

func TestRegistry_RegisterGetAndDefinitions(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(echoTool{name: "b"})
	reg.Register(echoTool{name: "a"})

	tool, ok := reg.Get("a")
	require.True(t, ok)
	require.Equal(t, "a", tool.Definition().Name)

	_, ok = reg.Get("missing")
	require.False(t, ok)

	defs := reg.Definitions()
	require.Len(t, defs, 2)
	require.Equal(t, "a", defs[0].Name, "definitions are sorted by name")
	require.Equal(t, "b", defs[1].Name)
}

func TestRegistry_DefinitionsFor_SkipsUnknown(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(echoTool{name: "known"})

	defs := reg.DefinitionsFor([]string{"known", "unknown"})
	require.Len(t, defs, 1)
	require.Equal(t, "known", defs[0].Name)
}

func TestRegistry_Names(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(echoTool{name: "known"})

	require.NoError(t, reg.Names([]string{"known"}))
	require.Error(t, reg.Names([]string{"known", "unknown"}))
}
