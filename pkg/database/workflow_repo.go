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

// WorkflowRepo persists Workflow entities and their Node/Edge graph.
type WorkflowRepo struct {
	db *sql.DB
}

type storedNode struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type storedEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Create inserts a new Workflow.
func (r *WorkflowRepo) Create(ctx context.Context, w *models.Workflow) error {
	nodesJSON, edgesJSON, err := encodeGraph(w.Nodes, w.Edges)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflows (id, user_id, name, nodes, edges, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())`,
		w.ID, w.UserID, w.Name, nodesJSON, edgesJSON, w.IsActive)
	if err != nil {
		return fmt.Errorf("inserting workflow: %w", err)
	}
	return nil
}

// GetByID loads a Workflow owned by userID. A workflow that exists but is
// owned by someone else returns the same NotFound error as a workflow that
// does not exist at all, per the cross-tenant invariant.
func (r *WorkflowRepo) GetByID(ctx context.Context, userID, id string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, nodes, edges, is_active, created_at, updated_at
		FROM workflows WHERE id = $1 AND user_id = $2`, id, userID)

	var w models.Workflow
	var nodesJSON, edgesJSON []byte
	if err := row.Scan(&w.ID, &w.UserID, &w.Name, &nodesJSON, &edgesJSON, &w.IsActive, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierr.New(apierr.NotFound, "workflow not found")
		}
		return nil, fmt.Errorf("loading workflow: %w", err)
	}

	nodes, edges, err := decodeGraph(nodesJSON, edgesJSON)
	if err != nil {
		return nil, err
	}
	w.Nodes, w.Edges = nodes, edges
	return &w, nil
}

// GetByIDUnscoped loads a Workflow by id regardless of owner — used by the
// task queue worker, which has already authorized the execution via the
// row it claimed and needs the owning user_id to scope downstream agent
// lookups, not the other way around.
func (r *WorkflowRepo) GetByIDUnscoped(ctx context.Context, id string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, nodes, edges, is_active, created_at, updated_at
		FROM workflows WHERE id = $1`, id)

	var w models.Workflow
	var nodesJSON, edgesJSON []byte
	if err := row.Scan(&w.ID, &w.UserID, &w.Name, &nodesJSON, &edgesJSON, &w.IsActive, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierr.New(apierr.NotFound, "workflow not found")
		}
		return nil, fmt.Errorf("loading workflow: %w", err)
	}

	nodes, edges, err := decodeGraph(nodesJSON, edgesJSON)
	if err != nil {
		return nil, err
	}
	w.Nodes, w.Edges = nodes, edges
	return &w, nil
}

func encodeGraph(nodes []models.Node, edges []models.Edge) (nodesJSON, edgesJSON []byte, err error) {
	sNodes := make([]storedNode, len(nodes))
	for i, n := range nodes {
		raw := n.Raw
		if raw == nil {
			raw = []byte("{}")
		}
		sNodes[i] = storedNode{ID: n.ID, Type: string(n.Type), Data: raw}
	}
	sEdges := make([]storedEdge, len(edges))
	for i, e := range edges {
		sEdges[i] = storedEdge{ID: e.ID, Source: e.Source, Target: e.Target}
	}

	nodesJSON, err = json.Marshal(sNodes)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding nodes: %w", err)
	}
	edgesJSON, err = json.Marshal(sEdges)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding edges: %w", err)
	}
	return nodesJSON, edgesJSON, nil
}

func decodeGraph(nodesJSON, edgesJSON []byte) ([]models.Node, []models.Edge, error) {
	var sNodes []storedNode
	if err := json.Unmarshal(nodesJSON, &sNodes); err != nil {
		return nil, nil, fmt.Errorf("decoding nodes: %w", err)
	}
	var sEdges []storedEdge
	if err := json.Unmarshal(edgesJSON, &sEdges); err != nil {
		return nil, nil, fmt.Errorf("decoding edges: %w", err)
	}

	nodes := make([]models.Node, len(sNodes))
	for i, sn := range sNodes {
		n := models.Node{ID: sn.ID, Type: models.NodeType(sn.Type), Raw: sn.Data}
		if err := n.DecodeData(); err != nil {
			return nil, nil, fmt.Errorf("decoding node %q: %w", sn.ID, err)
		}
		nodes[i] = n
	}
	edges := make([]models.Edge, len(sEdges))
	for i, se := range sEdges {
		edges[i] = models.Edge{ID: se.ID, Source: se.Source, Target: se.Target}
	}
	return nodes, edges, nil
}
