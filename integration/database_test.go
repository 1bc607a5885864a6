//go:build database

package integration

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestApigradeWithMySQL tests the apigrade CLI with a MySQL backend.
func TestApigradeWithMySQL(t *testing.T) {
	ctx := context.Background()

	// Start MySQL container
	req := testcontainers.ContainerRequest{
		Image:        "mysql:8",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "secret123",
			"MYSQL_DATABASE":      "apigrade",
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(60 * time.Second),
	}
	mysqlC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer func() { _ = mysqlC.Terminate(ctx) }()

	// Get connection details
	host, err := mysqlC.Host(ctx)
	require.NoError(t, err)
	port, err := mysqlC.MappedPort(ctx, "3306")
	require.NoError(t, err)

	connStr := fmt.Sprintf("root:secret123@tcp(%s:%s)/apigrade", host, port.Port())
	exerciseBackend(t, []string{
		"APIGRADE_RUNS_BACKEND=mysql",
		"APIGRADE_RUNS_DB_CONNECT=" + connStr,
	})
}

// TestApigradeWithPostgres tests the apigrade CLI with a PostgreSQL backend.
func TestApigradeWithPostgres(t *testing.T) {
	ctx := context.Background()

	// Start Postgres container
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_HOST_AUTH_METHOD": "trust",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer func() { _ = pgC.Terminate(ctx) }()

	// Get connection details
	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connStr := fmt.Sprintf("host=%s port=%s user=postgres dbname=postgres sslmode=disable", host, port.Port())
	exerciseBackend(t, []string{
		"APIGRADE_RUNS_BACKEND=postgresql",
		"APIGRADE_RUNS_DB_CONNECT=" + connStr,
	})
}

// exerciseBackend migrates, grades, inspects and clears one backend.
func exerciseBackend(t *testing.T, env []string) {
	t.Helper()

	out, err := runApigrade(t, env, "runs", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "to version 2")

	port := strconv.Itoa(startReference(t))
	_, err = runApigrade(t, env, "grade", "--attach", "--port", port, "--name", "reference", "--fail-under", "1")
	require.NoError(t, err)

	out, err = runApigrade(t, env, "runs", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Connected: true")
	assert.Contains(t, out, "Total Runs: 1")
	assert.Contains(t, out, "apigrade_checks: 9 rows")

	_, err = runApigrade(t, env, "runs", "clear")
	require.NoError(t, err)
}
