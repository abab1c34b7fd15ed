package a2a_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conductorhq/conductor/pkg/a2a"
	"github.com/conductorhq/conductor/pkg/models"
)

func TestGenerateCard_IncludesToolSkillsAndDefaultConversationSkill(t *testing.T) {
	agent := &models.Agent{ID: "agent-1", Name: "Support Bot", Tools: []string{"web_search", "send_email"}}

	card := a2a.GenerateCard(agent, "http://localhost:8080/", "conductor", "0.3.0")

	require.Equal(t, "Support Bot", card.Name)
	require.Equal(t, "http://localhost:8080/a2a/agents/agent-1", card.URL)
	require.Equal(t, "0.3.0", card.ProtocolVersion)
	require.True(t, card.Capabilities.Streaming)
	require.False(t, card.Capabilities.PushNotifications)

	require.Len(t, card.Skills, 3)
	require.Equal(t, "web_search", card.Skills[0].ID)
	require.Equal(t, "Web Search", card.Skills[0].Name)
	require.Equal(t, "conversation", card.Skills[2].ID, "default conversation skill is always appended last")
}

func TestGenerateCard_NoToolsStillYieldsConversationSkill(t *testing.T) {
	agent := &models.Agent{ID: "agent-2", Name: "Bare Agent"}

	card := a2a.GenerateCard(agent, "http://localhost:8080", "conductor", "0.3.0")

	require.Len(t, card.Skills, 1)
	require.Equal(t, "conversation", card.Skills[0].ID)
}
