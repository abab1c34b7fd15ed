package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/conductorhq/conductor/pkg/apierr"
	"github.com/conductorhq/conductor/pkg/models"
)

// AgentRepo persists Agent entities.
type AgentRepo struct {
	db *sql.DB
}

// Create inserts a new Agent.
func (r *AgentRepo) Create(ctx context.Context, a *models.Agent) error {
	toolsJSON, err := json.Marshal(a.Tools)
	if err != nil {
		return fmt.Errorf("encoding tools: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO agents (id, user_id, name, system_prompt, llm_model, tools, a2a_enabled, agent_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())`,
		a.ID, a.UserID, a.Name, a.SystemPrompt, a.LLMModel, toolsJSON, a.A2AEnabled, a.AgentURL)
	if err != nil {
		return fmt.Errorf("inserting agent: %w", err)
	}
	return nil
}

// GetByID loads an Agent owned by userID. Cross-tenant access reports the
// same NotFound as a missing row.
func (r *AgentRepo) GetByID(ctx context.Context, userID, id string) (*models.Agent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, system_prompt, llm_model, tools, a2a_enabled, agent_url, created_at, updated_at
		FROM agents WHERE id = $1 AND user_id = $2`, id, userID)
	return scanAgent(row)
}

// GetByIDUnscoped loads an Agent by id regardless of owner — used by the
// A2A server, which authorizes via the agent's a2a_enabled flag rather
// than request-time tenant identity.
func (r *AgentRepo) GetByIDUnscoped(ctx context.Context, id string) (*models.Agent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, system_prompt, llm_model, tools, a2a_enabled, agent_url, created_at, updated_at
		FROM agents WHERE id = $1`, id)
	return scanAgent(row)
}

func scanAgent(row *sql.Row) (*models.Agent, error) {
	var a models.Agent
	var toolsJSON []byte
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.SystemPrompt, &a.LLMModel, &toolsJSON, &a.A2AEnabled, &a.AgentURL, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierr.New(apierr.NotFound, "agent not found")
		}
		return nil, fmt.Errorf("loading agent: %w", err)
	}
	if len(toolsJSON) > 0 {
		if err := json.Unmarshal(toolsJSON, &a.Tools); err != nil {
			return nil, fmt.Errorf("decoding tools: %w", err)
		}
	}
	return &a, nil
}

// List returns every Agent owned by userID.
func (r *AgentRepo) List(ctx context.Context, userID string) ([]*models.Agent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, system_prompt, llm_model, tools, a2a_enabled, agent_url, created_at, updated_at
		FROM agents WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	defer rows.Close()

	var out []*models.Agent
	for rows.Next() {
		var a models.Agent
		var toolsJSON []byte
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.SystemPrompt, &a.LLMModel, &toolsJSON, &a.A2AEnabled, &a.AgentURL, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning agent: %w", err)
		}
		if len(toolsJSON) > 0 {
			if err := json.Unmarshal(toolsJSON, &a.Tools); err != nil {
				return nil, fmt.Errorf("decoding tools: %w", err)
			}
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
