//go:build integration

// Package testutil provides the shared PostgreSQL harness for
// integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers postgres instance
type PostgresContainer struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
}

// containerInstance is a singleton for the test container
var containerInstance *PostgresContainer

// GetTestContainer returns a shared PostgreSQL container for integration tests.
// If DATABASE_URL is set, it uses that instead of starting a container.
// The container is shared across all tests to avoid startup overhead.
func GetTestContainer(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return setupExternalDB(t, dbURL)
	}

	if containerInstance == nil {
		containerInstance = startContainer(t)
	}

	return containerInstance.Pool
}

// setupExternalDB connects to an external database specified by DATABASE_URL
func setupExternalDB(t *testing.T, dbURL string) *pgxpool.Pool {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("failed to ping database: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
	})

	return pool
}

// startContainer starts a new PostgreSQL container and applies the schema
func startContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("failed to get connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("failed to create pool: %v", err)
	}

	for i := 0; i < 30; i++ {
		if err := pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	if err := applySchema(pool); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// applySchema applies migrations/schema.sql from the project root.
func applySchema(pool *pgxpool.Pool) error {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return fmt.Errorf("failed to get current file path")
	}
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(filename)))
	schemaPath := filepath.Join(projectRoot, "migrations", "schema.sql")

	content, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	if _, err := pool.Exec(context.Background(), string(content)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// CleanupContainer cleans up the container (call from TestMain if needed)
func CleanupContainer() {
	if containerInstance != nil && containerInstance.Container != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		containerInstance.Pool.Close()
		containerInstance.Container.Terminate(ctx)
		containerInstance = nil
	}
}
