// Package util provides shared helpers for database-backed tests.
//
// A single PostgreSQL testcontainer is shared across all tests in a
// package run; each test gets its own schema with the full migration
// set applied, so tests stay isolated without paying container startup
// per test.
package util

import (
	"context"
	"crypto/rand"
	stdsql "database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for schema setup

	"github.com/mazebench/mazebench/pkg/database"
)

var (
	sharedConnStr string
	containerOnce sync.Once
	containerErr  error
)

// SetupTestPool creates a fresh schema in the shared test database,
// applies all migrations into it, and returns a pgx pool whose
// search_path is pinned to that schema. The schema is dropped when the
// test finishes. Callers wrap the pool in whatever layer they test
// (store.New, database.NewClientFromPool).
func SetupTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	connStr := getOrCreateSharedDatabase(t)
	schemaName := GenerateSchemaName(t)

	adminDB, err := stdsql.Open("pgx", connStr)
	require.NoError(t, err, "failed to open admin connection")
	_, err = adminDB.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA %s", schemaName))
	require.NoError(t, err, "failed to create test schema")
	require.NoError(t, adminDB.Close())

	schemaConnStr := AddSearchPathToConnString(connStr, schemaName)
	require.NoError(t, database.RunMigrationsDSN(schemaConnStr, "test"),
		"failed to migrate test schema")

	pool, err := pgxpool.New(ctx, schemaConnStr)
	require.NoError(t, err, "failed to create pgx pool")

	t.Cleanup(func() {
		pool.Close()
		cleanDB, err := stdsql.Open("pgx", connStr)
		if err != nil {
			t.Logf("cleanup: failed to open connection to drop schema %s: %v", schemaName, err)
			return
		}
		defer func() { _ = cleanDB.Close() }()
		if _, err := cleanDB.ExecContext(context.Background(),
			fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName)); err != nil {
			t.Logf("cleanup: failed to drop schema %s: %v", schemaName, err)
		}
	})

	return pool
}

// getOrCreateSharedDatabase starts the shared postgres container on
// first use, or returns the connection string from CI_DATABASE_URL when
// the environment provides a database (CI runs a postgres service
// instead of docker-in-docker).
func getOrCreateSharedDatabase(t *testing.T) string {
	t.Helper()

	if ciURL := os.Getenv("CI_DATABASE_URL"); ciURL != "" {
		return ciURL
	}

	containerOnce.Do(func() {
		ctx := context.Background()

		pgContainer, err := postgres.Run(ctx,
			"postgres:17-alpine",
			postgres.WithDatabase("test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		if err != nil {
			containerErr = fmt.Errorf("failed to start postgres container: %w", err)
			return
		}

		connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			containerErr = fmt.Errorf("failed to get connection string: %w", err)
			return
		}

		sharedConnStr = connStr
	})

	require.NoError(t, containerErr)
	return sharedConnStr
}

// GenerateSchemaName builds a schema name unique to this test run:
// the test name sanitized for SQL plus a random suffix, so parallel
// tests and repeated runs never collide.
func GenerateSchemaName(t *testing.T) string {
	t.Helper()

	name := strings.ToLower(t.Name())
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, name)
	if len(name) > 40 {
		name = name[:40]
	}

	suffix := make([]byte, 4)
	_, err := rand.Read(suffix)
	require.NoError(t, err, "failed to generate schema suffix")

	return fmt.Sprintf("test_%s_%s", name, hex.EncodeToString(suffix))
}

// AddSearchPathToConnString appends a search_path parameter so every
// connection opened from the string lands in the given schema.
func AddSearchPathToConnString(connStr, schemaName string) string {
	if strings.Contains(connStr, "?") {
		return fmt.Sprintf("%s&search_path=%s", connStr, schemaName)
	}
	return fmt.Sprintf("%s?search_path=%s", connStr, schemaName)
}
