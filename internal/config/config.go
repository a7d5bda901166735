// Package config holds the configuration of the orchestrator host. It is read from a YAML file, flags
// override single values.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cschleiden/go-orchestrations/backend"
)

type Config struct {
	LogLevel string `yaml:"log_level"`

	Backend BackendConfig `yaml:"backend"`
	Worker  WorkerConfig  `yaml:"worker"`
	Tracing TracingConfig `yaml:"tracing"`
	Starter StarterConfig `yaml:"starter"`
}

type BackendConfig struct {
	// Type is one of memory, sqlite, postgres, mysql, redis, mongo
	Type string `yaml:"type"`

	TaskHub string `yaml:"task_hub"`

	OrchestrationLockTimeout time.Duration `yaml:"orchestration_lock_timeout"`
	ActivityLockTimeout      time.Duration `yaml:"activity_lock_timeout"`

	// Monoprocess signals pollers in this process directly when work is enqueued
	Monoprocess bool `yaml:"monoprocess"`

	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Redis    RedisConfig    `yaml:"redis"`
	Mongo    MongoConfig    `yaml:"mongo"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type MongoConfig struct {
	URI     string `yaml:"uri"`
	AppName string `yaml:"app_name"`
}

type WorkerConfig struct {
	OrchestrationPollers int           `yaml:"orchestration_pollers"`
	ActivityPollers      int           `yaml:"activity_pollers"`
	MaxParallelTasks     int           `yaml:"max_parallel_tasks"`
	PollingInterval      time.Duration `yaml:"polling_interval"`
	ExecutorCacheSize    int           `yaml:"executor_cache_size"`
}

type TracingConfig struct {
	// Exporter is one of none, stdout, otlp
	Exporter string `yaml:"exporter"`

	Endpoint string `yaml:"endpoint"`
	URLPath  string `yaml:"url_path"`
	Insecure bool   `yaml:"insecure"`
}

type StarterConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

var backendTypes = map[string]bool{
	"memory":   true,
	"sqlite":   true,
	"postgres": true,
	"mysql":    true,
	"redis":    true,
	"mongo":    true,
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Backend: BackendConfig{
			Type:    "sqlite",
			TaskHub: backend.DefaultTaskHub,
			SQLite:  SQLiteConfig{Path: "orchestrations.sqlite"},
			MySQL:   MySQLConfig{Host: "localhost", Port: 3306, User: "root", Database: "orchestrations"},
			Redis:   RedisConfig{Address: "localhost:6379"},
			Mongo:   MongoConfig{URI: "mongodb://localhost:27017", AppName: "orchestrations"},
		},
		Tracing: TracingConfig{
			Exporter: "none",
		},
		Starter: StarterConfig{
			Schedule: "*/5 * * * *",
		},
	}
}

// Load reads the configuration from the given YAML file on top of the defaults. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := Parse(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes YAML into cfg and validates the result.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}

	return cfg.Validate()
}

func (c *Config) Validate() error {
	var errs []error

	if !backendTypes[c.Backend.Type] {
		errs = append(errs, fmt.Errorf("unknown backend type %q", c.Backend.Type))
	}

	switch c.Tracing.Exporter {
	case "", "none", "stdout":
	case "otlp":
		if c.Tracing.Endpoint == "" {
			errs = append(errs, errors.New("otlp exporter requires an endpoint"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown trace exporter %q", c.Tracing.Exporter))
	}

	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}

	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}

	return l, nil
}
