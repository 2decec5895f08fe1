// Package repotest starts throwaway Postgres instances for integration tests.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// NewPool starts a Postgres container and returns a pool connected to it.
// The container and pool are released when the test ends. Tests calling it
// are skipped in -short mode.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping Postgres integration test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("armoree-test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Errorf("failed to terminate container: %s", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	return pool
}

// SchemaExists reports whether a schema with the exact name exists.
func SchemaExists(t *testing.T, pool *pgxpool.Pool, schemaName string) bool {
	t.Helper()

	var exists bool
	err := pool.QueryRow(context.Background(),
		"SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)",
		schemaName,
	).Scan(&exists)
	if err != nil {
		t.Fatal(err)
	}
	return exists
}

// CountMappings returns the number of user_tenants rows for userID.
func CountMappings(t *testing.T, pool *pgxpool.Pool, userID string) int {
	t.Helper()

	var n int
	err := pool.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM public.user_tenants WHERE user_id = $1", userID,
	).Scan(&n)
	if err != nil {
		t.Fatal(err)
	}
	return n
}
