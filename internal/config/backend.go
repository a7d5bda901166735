package config

import (
	"fmt"

	redisv9 "github.com/redis/go-redis/v9"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/backend/memory"
	"github.com/cschleiden/go-orchestrations/backend/mongo"
	"github.com/cschleiden/go-orchestrations/backend/monoprocess"
	"github.com/cschleiden/go-orchestrations/backend/mysql"
	"github.com/cschleiden/go-orchestrations/backend/postgres"
	"github.com/cschleiden/go-orchestrations/backend/redis"
	"github.com/cschleiden/go-orchestrations/backend/sqlite"
)

// BackendOptions returns the generic backend options set in the configuration.
func (c *BackendConfig) BackendOptions() []backend.BackendOption {
	var opts []backend.BackendOption

	if c.TaskHub != "" {
		opts = append(opts, backend.WithTaskHub(c.TaskHub))
	}

	if c.OrchestrationLockTimeout > 0 {
		opts = append(opts, backend.WithOrchestrationLockTimeout(c.OrchestrationLockTimeout))
	}

	if c.ActivityLockTimeout > 0 {
		opts = append(opts, backend.WithActivityLockTimeout(c.ActivityLockTimeout))
	}

	return opts
}

// OpenBackend creates the configured backend. opts are applied after the configured options.
func (c *BackendConfig) OpenBackend(opts ...backend.BackendOption) (backend.Backend, error) {
	b, err := c.openProvider(append(c.BackendOptions(), opts...))
	if err != nil {
		return nil, err
	}

	if c.Monoprocess {
		return monoprocess.NewMonoprocessBackend(b, 10, 0), nil
	}

	return b, nil
}

func (c *BackendConfig) openProvider(opts []backend.BackendOption) (backend.Backend, error) {
	switch c.Type {
	case "memory":
		return memory.NewMemoryBackend(opts...), nil

	case "sqlite":
		if c.SQLite.Path == "" || c.SQLite.Path == ":memory:" {
			return sqlite.NewInMemoryBackend(sqlite.WithBackendOptions(opts...)), nil
		}

		return sqlite.NewSqliteBackend(c.SQLite.Path, sqlite.WithBackendOptions(opts...)), nil

	case "postgres":
		return postgres.NewPostgresBackendWithDSN(c.Postgres.DSN, postgres.WithBackendOptions(opts...)), nil

	case "mysql":
		m := c.MySQL
		return mysql.NewMysqlBackend(m.Host, m.Port, m.User, m.Password, m.Database, mysql.WithBackendOptions(opts...)), nil

	case "redis":
		client := redisv9.NewUniversalClient(&redisv9.UniversalOptions{
			Addrs:    []string{c.Redis.Address},
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})

		b, err := redis.NewRedisBackend(client, redis.WithKeyPrefix(c.Redis.KeyPrefix), redis.WithBackendOptions(opts...))
		if err != nil {
			return nil, fmt.Errorf("creating redis backend: %w", err)
		}

		return b, nil

	case "mongo":
		b, err := mongo.NewMongoBackend(c.Mongo.URI, c.Mongo.AppName, mongo.WithBackendOptions(opts...))
		if err != nil {
			return nil, fmt.Errorf("creating mongo backend: %w", err)
		}

		return b, nil
	}

	return nil, fmt.Errorf("unknown backend type %q", c.Type)
}
