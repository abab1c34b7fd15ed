// Package testutil provides shared test scaffolding for integration tests
// that need a real Postgres instance, grounded on the teacher's
// testcontainers-based database test harness.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/conductorhq/conductor/pkg/database"
)

// NewTestClient returns a database.Client backed by a real Postgres — an
// external CI-provided instance when CI_DATABASE_URL is set, otherwise a
// throwaway testcontainers-managed one. Migrations are applied before
// returning; the container and pool are cleaned up via t.Cleanup.
func NewTestClient(t *testing.T) *database.Client {
	t.Helper()
	client, _ := NewTestClientAndConnString(t)
	return client
}

// NewTestClientAndConnString is like NewTestClient but also returns the raw
// connection string, for callers that need their own separate connection —
// e.g. a NotifyListener's dedicated LISTEN connection alongside the pool.
func NewTestClientAndConnString(t *testing.T) (*database.Client, string) {
	t.Helper()
	ctx := context.Background()

	connStr := os.Getenv("CI_DATABASE_URL")
	if connStr == "" {
		t.Log("no CI_DATABASE_URL set, starting a testcontainers Postgres instance")
		pgContainer, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("conductor_test"),
			postgres.WithUsername("conductor"),
			postgres.WithPassword("conductor"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		require.NoError(t, err)
		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(pgContainer); err != nil {
				t.Logf("failed to terminate postgres container: %v", err)
			}
		})

		connStr, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	db, err := sql.Open("pgx", connStr)
	require.NoError(t, err)

	require.NoError(t, db.PingContext(ctx))
	require.NoError(t, database.RunMigrations(db))

	client := database.NewClientFromDB(db)
	t.Cleanup(func() { _ = client.Close() })
	return client, connStr
}
