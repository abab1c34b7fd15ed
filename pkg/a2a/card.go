package a2a

import (
	"fmt"
	"strings"

	"github.com/conductorhq/conductor/pkg/models"
)

// Capabilities describes which optional A2A features this instance
// supports.
type Capabilities struct {
	Streaming            bool `json:"streaming"`
	PushNotifications    bool `json:"pushNotifications"`
	StateTransitionHistory bool `json:"stateTransitionHistory"`
}

// Skill is one capability an agent exposes, surfaced in its card.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Provider identifies the organization hosting an agent.
type Provider struct {
	Organization string `json:"organization"`
}

// Card is the A2A agent card: the public, unauthenticated document other
// agents fetch to discover an agent's capabilities before dispatching a
// task to it.
type Card struct {
	Name               string       `json:"name"`
	Description        string       `json:"description"`
	URL                string       `json:"url"`
	Version            string       `json:"version"`
	ProtocolVersion    string       `json:"protocolVersion"`
	Capabilities       Capabilities `json:"capabilities"`
	Skills             []Skill      `json:"skills"`
	DefaultInputModes  []string     `json:"defaultInputModes"`
	DefaultOutputModes []string     `json:"defaultOutputModes"`
	Provider           Provider     `json:"provider"`
}

// GenerateCard builds the agent card for agent, rooted at baseURL
// (typically the A2A config's configured base URL) and stamped with
// appName as the hosting organization. Every tool in the agent's
// allow-list becomes a skill, plus a default "conversation" skill so an
// agent with no tools still advertises at least one capability.
func GenerateCard(agent *models.Agent, baseURL, appName, protocolVersion string) Card {
	skills := make([]Skill, 0, len(agent.Tools)+1)
	for _, name := range agent.Tools {
		skills = append(skills, Skill{
			ID:          name,
			Name:        titleizeToolName(name),
			Description: fmt.Sprintf("Tool capability: %s", name),
			Tags:        []string{name},
		})
	}
	skills = append(skills, Skill{
		ID:          "conversation",
		Name:        "Conversation",
		Description: fmt.Sprintf("Conversational AI: %s", agent.Name),
		Tags:        []string{"conversation", "chat", "general"},
	})

	return Card{
		Name:            agent.Name,
		Description:     fmt.Sprintf("AI Agent: %s", agent.Name),
		URL:             fmt.Sprintf("%s/a2a/agents/%s", strings.TrimRight(baseURL, "/"), agent.ID),
		Version:         "1.0.0",
		ProtocolVersion: protocolVersion,
		Capabilities: Capabilities{
			Streaming:         true,
			PushNotifications: false,
		},
		Skills:             skills,
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
		Provider:           Provider{Organization: appName},
	}
}

func titleizeToolName(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
