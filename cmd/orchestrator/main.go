// Command orchestrator hosts workers for the chunk processing orchestration and manages its instances.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/client"
	"github.com/cschleiden/go-orchestrations/internal/config"
)

type Globals struct {
	Config   string `help:"Path to a YAML configuration file." type:"path" env:"ORCHESTRATOR_CONFIG"`
	Backend  string `help:"Backend to use (memory, sqlite, postgres, mysql, redis, mongo), overrides the configuration file." env:"ORCHESTRATOR_BACKEND"`
	TaskHub  string `help:"Task hub, overrides the configuration file." env:"ORCHESTRATOR_TASK_HUB"`
	LogLevel string `help:"Log level (debug, info, warn, error), overrides the configuration file."`

	out io.Writer
}

type CLI struct {
	Globals

	Serve        ServeCmd        `cmd:"" help:"Run workers, and optionally the cron starter, until interrupted."`
	Start        StartCmd        `cmd:"" help:"Start a chunk processing instance."`
	Status       StatusCmd       `cmd:"" help:"Show the state of an instance."`
	Raise        RaiseCmd        `cmd:"" help:"Raise an external event for an instance."`
	Terminate    TerminateCmd    `cmd:"" help:"Terminate an instance and its sub-orchestrations."`
	Purge        PurgeCmd        `cmd:"" help:"Remove finished instances."`
	List         ListCmd         `cmd:"" help:"List instances."`
	TestActivity TestActivityCmd `cmd:"" name:"test-activity" help:"Run the chunk activity once, outside of an orchestration."`
}

func main() {
	cli := CLI{Globals: Globals{out: os.Stdout}}

	ctx := kong.Parse(&cli,
		kong.Name("orchestrator"),
		kong.Description("Deterministic replay orchestrations for chunked data processing."),
		kong.UsageOnError(),
		kong.Bind(&cli.Globals),
	)

	ctx.FatalIfErrorf(ctx.Run())
}

// load reads the configuration and applies flag overrides.
func (g *Globals) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, nil, err
	}

	if g.Backend != "" {
		cfg.Backend.Type = g.Backend
	}

	if g.TaskHub != "" {
		cfg.Backend.TaskHub = g.TaskHub
	}

	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return cfg, logger, nil
}

// client opens the configured backend and returns a client for it.
func (g *Globals) client(opts ...backend.BackendOption) (*client.Client, func(), error) {
	cfg, logger, err := g.load()
	if err != nil {
		return nil, nil, err
	}

	b, err := cfg.Backend.OpenBackend(append([]backend.BackendOption{backend.WithLogger(logger)}, opts...)...)
	if err != nil {
		return nil, nil, err
	}

	return client.New(b), func() {
		if err := b.Close(); err != nil {
			logger.Warn("Closing backend", "error", err)
		}
	}, nil
}

func (g *Globals) print(v any) error {
	enc := json.NewEncoder(g.out)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	return nil
}
