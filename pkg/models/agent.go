// Package models defines the domain entities shared across the workflow
// engine, chat loop, trigger plane, and persistence layers.
package models

import "time"

// Agent is a user-owned configuration bundling a system prompt, a model
// identifier, and an allow-list of tool names.
type Agent struct {
	ID           string
	UserID       string
	Name         string
	SystemPrompt string
	LLMModel     string
	Tools        []string
	A2AEnabled   bool
	AgentURL     string // non-empty selects remote A2A dispatch over in-process execution
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasTool reports whether name is in the agent's tool allow-list.
func (a *Agent) HasTool(name string) bool {
	for _, t := range a.Tools {
		if t == name {
			return true
		}
	}
	return false
}

// ChatParticipant is the narrow view of an Agent the chat loop needs.
// Modeled as a single interface per spec's "duck-typed agent-like inputs"
// design note: one seam with multiple implementers, no runtime attribute
// probing.
type ChatParticipant interface {
	ParticipantID() string
	Prompt() string
	Model() string
	ToolNames() []string
}

// ParticipantID implements ChatParticipant.
func (a *Agent) ParticipantID() string { return a.ID }

// Prompt implements ChatParticipant.
func (a *Agent) Prompt() string { return a.SystemPrompt }

// Model implements ChatParticipant.
func (a *Agent) Model() string { return a.LLMModel }

// ToolNames implements ChatParticipant.
func (a *Agent) ToolNames() []string { return a.Tools }
