//go:build database

package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startContainer starts req and returns host:port for the exposed port.
func startContainer(t *testing.T, req testcontainers.ContainerRequest, port string) (string, string) {
	t.Helper()
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	mapped, err := c.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)
	return host, mapped.Port()
}

// exerciseBackend runs the cache lifecycle against one store backend. The tree carries
// paths that differ only by case and a path longer than most column defaults.
func exerciseBackend(t *testing.T, backend, connStr string) {
	longPath := "deep/" + strings.Repeat("nested/", 85) + "file.go"
	api := newFakeGitHub(t, "Docs/Guide.md", "docs/guide.md", longPath)
	env := storeEnv(api, backend, connStr)

	analyzeTwice(t, api, env)

	out, err := runReposcout(t, env, "changes", "octocat/hello")
	require.NoError(t, err)
	assert.Contains(t, out, "No changes since the stored snapshot")

	out, err = runReposcout(t, env, "cache", "status")
	require.NoError(t, err)
	assert.Contains(t, out, backend)

	_, err = runReposcout(t, env, "reanalyze", "octocat/hello")
	require.NoError(t, err)

	_, err = runReposcout(t, env, "cache", "clear")
	require.NoError(t, err)
}

// TestReposcoutWithMySQL tests the reposcout CLI with a MySQL backend.
func TestReposcoutWithMySQL(t *testing.T) {
	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image:        "mysql:8",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "secret123",
			"MYSQL_DATABASE":      "reposcout",
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(60 * time.Second),
	}, "3306")

	exerciseBackend(t, "mysql", fmt.Sprintf("root:secret123@tcp(%s:%s)/reposcout?multiStatements=true", host, port))
}

// TestReposcoutWithPostgres tests the reposcout CLI with a PostgreSQL backend.
func TestReposcoutWithPostgres(t *testing.T) {
	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_HOST_AUTH_METHOD": "trust",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432")

	exerciseBackend(t, "postgresql", fmt.Sprintf("host=%s port=%s user=postgres dbname=postgres", host, port))
}

// TestReposcoutWithMongo tests the reposcout CLI with a MongoDB backend.
func TestReposcoutWithMongo(t *testing.T) {
	host, port := startContainer(t, testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
	}, "27017")

	exerciseBackend(t, "mongodb", fmt.Sprintf("mongodb://%s:%s/reposcout", host, port))
}
