// Package testutil starts the databases the backend tests run against.
package testutil

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	User     = "orchestrations"
	Password = "orchestrations"
	Database = "orchestrations_test"
)

func run(
	t *testing.T, image string, port string, waitFor wait.Strategy, env map[string]string, extra ...testcontainers.ContainerCustomizer,
) (testcontainers.Container, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)

	// Give generous timeout in CI environments
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	opts := []testcontainers.ContainerCustomizer{
		testcontainers.WithExposedPorts(port),
		testcontainers.WithWaitStrategy(waitFor),
	}
	if env != nil {
		opts = append(opts, testcontainers.WithEnv(env))
	}
	opts = append(opts, extra...)

	c, err := testcontainers.Run(ctx, image, opts...)
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err)

	endpoint, err := c.Endpoint(ctx, "")
	require.NoError(t, err)

	return c, endpoint
}

// StartPostgres starts a postgres container and returns its DSN.
func StartPostgres(t *testing.T) string {
	_, endpoint := run(t, "postgres:16", "5432/tcp",
		wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			// The init process restarts the server once
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(2*time.Minute),
		map[string]string{
			"POSTGRES_USER":     User,
			"POSTGRES_PASSWORD": Password,
			"POSTGRES_DB":       Database,
		})

	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", User, Password, endpoint, Database)
}

// StartMySQL starts a mysql container and returns its host:port.
func StartMySQL(t *testing.T) string {
	_, endpoint := run(t, "mysql:8", "3306/tcp",
		wait.ForAll(
			wait.ForListeningPort("3306/tcp"),
			wait.ForLog("port: 3306  MySQL Community Server"),
		).WithDeadline(2*time.Minute),
		map[string]string{
			"MYSQL_ROOT_PASSWORD": Password,
			"MYSQL_USER":          User,
			"MYSQL_PASSWORD":      Password,
			"MYSQL_DATABASE":      Database,
		})

	return endpoint
}

// StartRedis starts a redis container and returns its address.
func StartRedis(t *testing.T) string {
	_, endpoint := run(t, "redis:7", "6379/tcp",
		wait.ForAll(
			wait.ForListeningPort("6379/tcp"),
			wait.ForLog("Ready to accept connections"),
		),
		nil)

	return endpoint
}

// StartMongo starts a single node mongo replica set, transactions are not supported on standalone servers.
// Returns the connection URI.
func StartMongo(t *testing.T) string {
	c, endpoint := run(t, "mongo:7", "27017/tcp",
		wait.ForAll(
			wait.ForListeningPort("27017/tcp"),
			wait.ForLog("Waiting for connections"),
		),
		nil,
		testcontainers.WithCmd("--replSet", "rs0", "--bind_ip_all"),
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	_, _, err := c.Exec(ctx, []string{"mongosh", "--quiet", "--eval", "rs.initiate()"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, out, err := c.Exec(ctx, []string{"mongosh", "--quiet", "--eval", "db.hello().isWritablePrimary"})
		if err != nil {
			return false
		}

		b, err := io.ReadAll(out)
		return err == nil && strings.Contains(string(b), "true")
	}, time.Minute, 500*time.Millisecond)

	return fmt.Sprintf("mongodb://%s/?directConnection=true", endpoint)
}
