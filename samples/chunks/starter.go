package chunks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/robfig/cron/v3"

	"github.com/cschleiden/go-orchestrations/client"
	"github.com/cschleiden/go-orchestrations/log"
	"github.com/cschleiden/go-orchestrations/registry"
)

const (
	DefaultSchedule = "*/5 * * * *"

	window    = 10 * time.Minute
	chunkSize = 40
	totalRows = 200
)

// Registrar is implemented by worker.Worker and worker.Host.
type Registrar interface {
	RegisterOrchestrator(o registry.Orchestrator, opts ...registry.RegisterOption) error
	RegisterActivity(a registry.Activity, opts ...registry.RegisterOption) error
}

// Register registers the chunk orchestrator and the activities of p.
func Register(r Registrar, p *Processor) error {
	if err := r.RegisterOrchestrator(ChunkOrchestrator, registry.WithName(OrchestratorName)); err != nil {
		return fmt.Errorf("registering orchestrator: %w", err)
	}

	if err := r.RegisterActivity(p); err != nil {
		return fmt.Errorf("registering activities: %w", err)
	}

	return nil
}

// WindowInput returns the input for a run processing the ten minutes before the previous ten minutes.
func WindowInput(now time.Time) *Input {
	start := now.UTC().Add(-window)

	return &Input{
		Start:       start.Format(time.RFC3339Nano),
		End:         start.Add(window).Format(time.RFC3339Nano),
		TotalChunks: totalRows / chunkSize,
		Time:        start.Format(time.RFC3339Nano),
	}
}

// Start creates a new chunk processing instance for the window ending at now.
func Start(ctx context.Context, c *client.Client, now time.Time) (string, error) {
	return c.CreateOrchestrationInstance(ctx, client.InstanceOptions{}, OrchestratorName, WindowInput(now))
}

// Starter creates a chunk processing instance on a cron schedule.
type Starter struct {
	client *client.Client
	clock  clock.Clock
	logger *slog.Logger

	cron *cron.Cron
}

func NewStarter(c *client.Client, schedule string, logger *slog.Logger) (*Starter, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	if logger == nil {
		logger = slog.Default()
	}

	s := &Starter{
		client: c,
		clock:  clock.New(),
		logger: logger.With(log.CronScheduleKey, schedule),
		cron:   cron.New(),
	}

	if _, err := s.cron.AddFunc(schedule, s.trigger); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	return s, nil
}

func (s *Starter) trigger() {
	id, err := Start(context.Background(), s.client, s.clock.Now())
	if err != nil {
		s.logger.Error("Could not start chunk processing", "error", err)
		return
	}

	s.logger.Info("Started chunk processing", log.InstanceIDKey, id)
}

// Run starts the schedule and blocks until ctx is canceled. Runs in progress are waited for.
func (s *Starter) Run(ctx context.Context) {
	s.cron.Start()

	<-ctx.Done()

	<-s.cron.Stop().Done()
}
