package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/diag"
	"github.com/cschleiden/go-orchestrations/internal/config"
	"github.com/cschleiden/go-orchestrations/internal/metrics"
	"github.com/cschleiden/go-orchestrations/samples/chunks"
	"github.com/cschleiden/go-orchestrations/worker"
)

type ServeCmd struct {
	Starter  bool   `help:"Start new instances on the cron schedule, in addition to the configuration file setting."`
	Schedule string `help:"Cron schedule of the starter, overrides the configuration file."`
	DiagAddr string `help:"Address to serve the diagnostics API and the activity test endpoint on, disabled if empty." env:"ORCHESTRATOR_DIAG_ADDR"`
}

func (c *ServeCmd) Run(g *Globals) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := newTracerProvider(ctx, &cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("Shutting down tracer provider", "error", err)
		}
	}()

	recorder := metrics.NewRecorder()

	b, err := cfg.Backend.OpenBackend(backend.WithLogger(logger), backend.WithTracerProvider(tp), backend.WithMetrics(recorder))
	if err != nil {
		return err
	}
	defer b.Close()

	h := worker.NewHost(b, workerOptions(&cfg.Worker))
	if err := chunks.Register(h, chunks.NewProcessor()); err != nil {
		return err
	}

	if err := h.Start(ctx); err != nil {
		return fmt.Errorf("starting worker: %w", err)
	}

	logger.Info("Worker started", "backend", cfg.Backend.Type, "task_hub", b.Options().TaskHub)

	if cfg.Starter.Enabled || c.Starter {
		schedule := cfg.Starter.Schedule
		if c.Schedule != "" {
			schedule = c.Schedule
		}

		s, err := chunks.NewStarter(h.Client, schedule, logger)
		if err != nil {
			return err
		}

		go s.Run(ctx)
	}

	if c.DiagAddr != "" {
		srv := &http.Server{
			Addr:              c.DiagAddr,
			Handler:           newDiagHandler(b, recorder),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			logger.Info("Serving diagnostics", "addr", c.DiagAddr)

			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Serving diagnostics", "error", err)
			}
		}()

		defer srv.Shutdown(context.Background())
	}

	<-ctx.Done()

	logger.Info("Stopping worker")

	return h.WaitForCompletion()
}

func workerOptions(c *config.WorkerConfig) *worker.Options {
	o := worker.DefaultOptions

	if c.OrchestrationPollers > 0 {
		o.OrchestrationPollers = c.OrchestrationPollers
	}

	if c.ActivityPollers > 0 {
		o.ActivityPollers = c.ActivityPollers
	}

	if c.MaxParallelTasks > 0 {
		o.MaxParallelOrchestrationTasks = c.MaxParallelTasks
		o.MaxParallelActivityTasks = c.MaxParallelTasks
	}

	if c.PollingInterval > 0 {
		o.OrchestrationPollingInterval = c.PollingInterval
		o.ActivityPollingInterval = c.PollingInterval
		o.TimerPollingInterval = c.PollingInterval
	}

	if c.ExecutorCacheSize > 0 {
		o.ExecutorCacheSize = c.ExecutorCacheSize
	}

	return &o
}

// newDiagHandler serves the diagnostics API, a snapshot of the recorded metrics on GET /metrics and runs the
// chunk activity on GET /test-activity.
func newDiagHandler(b backend.Backend, recorder *metrics.Recorder) http.Handler {
	mux := diag.NewServeMux(b)

	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recorder.Snapshot())
	})

	mux.HandleFunc("/test-activity", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		result := chunks.TestActivity(r.Context(), chunks.NewProcessor())

		w.Header().Add("Content-Type", "application/json")
		if !result.Success {
			w.WriteHeader(http.StatusInternalServerError)
		}

		_ = json.NewEncoder(w).Encode(result)
	})

	return mux
}
