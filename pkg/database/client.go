// Package database owns the Postgres connection pool, schema migrations,
// and per-entity repositories backing the workflow engine and trigger
// plane. Persistence is implemented directly against pgx rather than
// through a generated ORM client: see DESIGN.md for why entgo.io/ent's
// code-generation step was dropped in favor of hand-written repositories
// over the same driver the teacher used underneath its ORM.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/conductorhq/conductor/pkg/config"
)

// Client wraps a pooled Postgres connection and exposes the repositories
// built on top of it.
type Client struct {
	db *sql.DB

	Workflows     *WorkflowRepo
	Executions    *ExecutionRepo
	ScheduleTrigs *ScheduleTriggerRepo
	WebhookTrigs  *WebhookTriggerRepo
	ApiKeys       *ApiKeyRepo
	Conversations *ConversationRepo
	Agents        *AgentRepo
	Events        *EventRepo
}

// DB returns the underlying *sql.DB, mainly for health checks and tests.
func (c *Client) DB() *sql.DB { return c.db }

// NewClient opens a connection pool against cfg, verifies connectivity,
// and applies pending migrations before returning.
func NewClient(ctx context.Context, cfg config.DatabaseConfig) (*Client, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return newClientFromDB(db), nil
}

// NewClientFromDB wraps an already-open *sql.DB — used by integration
// tests against a testcontainers-managed Postgres instance.
func NewClientFromDB(db *sql.DB) *Client {
	return newClientFromDB(db)
}

func newClientFromDB(db *sql.DB) *Client {
	return &Client{
		db:            db,
		Workflows:     &WorkflowRepo{db: db},
		Executions:    &ExecutionRepo{db: db},
		ScheduleTrigs: &ScheduleTriggerRepo{db: db},
		WebhookTrigs:  &WebhookTriggerRepo{db: db},
		ApiKeys:       &ApiKeyRepo{db: db},
		Conversations: &ConversationRepo{db: db},
		Agents:        &AgentRepo{db: db},
		Events:        &EventRepo{db: db},
	}
}

// Close closes the underlying connection pool.
func (c *Client) Close() error { return c.db.Close() }
