package worker

import (
	"context"
	"fmt"

	"github.com/cschleiden/go-orchestrations/backend"
	internal "github.com/cschleiden/go-orchestrations/internal/worker"
	"github.com/cschleiden/go-orchestrations/registry"
)

// Worker processes orchestrations, activities and timers of a backend.
type Worker struct {
	backend backend.Backend

	registry *registry.Registry

	workers []worker
}

type worker interface {
	Start(context.Context) error
	WaitForCompletion() error
}

// New creates a worker that processes all queues.
func New(backend backend.Backend, options *Options) *Worker {
	if options == nil {
		options = &DefaultOptions
	}

	r := registry.New()

	return newWorker(backend, r, []worker{
		newOrchestrationWorker(backend, r, &options.OrchestrationWorkerOptions),
		newActivityWorker(backend, r, &options.ActivityWorkerOptions),
		newTimerWorker(backend, &options.TimerWorkerOptions),
	})
}

// NewOrchestrationWorker creates a worker that only processes orchestrations and timers.
func NewOrchestrationWorker(backend backend.Backend, options *Options) *Worker {
	if options == nil {
		options = &DefaultOptions
	}

	r := registry.New()

	return newWorker(backend, r, []worker{
		newOrchestrationWorker(backend, r, &options.OrchestrationWorkerOptions),
		newTimerWorker(backend, &options.TimerWorkerOptions),
	})
}

// NewActivityWorker creates a worker that only processes activities.
func NewActivityWorker(backend backend.Backend, options *ActivityWorkerOptions) *Worker {
	r := registry.New()

	return newWorker(backend, r, []worker{newActivityWorker(backend, r, options)})
}

func newWorker(backend backend.Backend, registry *registry.Registry, workers []worker) *Worker {
	return &Worker{
		backend:  backend,
		workers:  workers,
		registry: registry,
	}
}

func newOrchestrationWorker(backend backend.Backend, registry *registry.Registry, options *OrchestrationWorkerOptions) worker {
	if options == nil {
		options = &DefaultOptions.OrchestrationWorkerOptions
	}

	return internal.NewOrchestrationWorker(backend, registry, internal.OrchestrationWorkerOptions{
		WorkerOptions: internal.WorkerOptions{
			Pollers:           options.OrchestrationPollers,
			PollingInterval:   options.OrchestrationPollingInterval,
			MaxParallelTasks:  options.MaxParallelOrchestrationTasks,
			HeartbeatInterval: options.OrchestrationHeartbeatInterval,
		},
		ExecutorCacheSize: options.ExecutorCacheSize,
		ExecutorCacheTTL:  options.ExecutorCacheTTL,
	})
}

func newActivityWorker(backend backend.Backend, registry *registry.Registry, options *ActivityWorkerOptions) worker {
	if options == nil {
		options = &DefaultOptions.ActivityWorkerOptions
	}

	return internal.NewActivityWorker(backend, registry, internal.WorkerOptions{
		Pollers:           options.ActivityPollers,
		PollingInterval:   options.ActivityPollingInterval,
		MaxParallelTasks:  options.MaxParallelActivityTasks,
		HeartbeatInterval: options.ActivityHeartbeatInterval,
	})
}

func newTimerWorker(backend backend.Backend, options *TimerWorkerOptions) worker {
	if options == nil {
		options = &DefaultOptions.TimerWorkerOptions
	}

	return internal.NewTimerWorker(backend, internal.WorkerOptions{
		Pollers:         options.TimerPollers,
		PollingInterval: options.TimerPollingInterval,
	})
}

// Start starts the worker.
//
// To stop the worker, cancel the context passed to Start. To wait for completion of the active
// tasks, call `WaitForCompletion`.
func (w *Worker) Start(ctx context.Context) error {
	for _, worker := range w.workers {
		if err := worker.Start(ctx); err != nil {
			return fmt.Errorf("starting worker: %w", err)
		}
	}

	return nil
}

// WaitForCompletion waits for all active tasks to complete.
func (w *Worker) WaitForCompletion() error {
	for _, worker := range w.workers {
		if err := worker.WaitForCompletion(); err != nil {
			return fmt.Errorf("waiting for worker completion: %w", err)
		}
	}

	return nil
}

// RegisterOrchestrator registers an orchestrator with the worker's registry.
func (w *Worker) RegisterOrchestrator(o registry.Orchestrator, opts ...registry.RegisterOption) error {
	return w.registry.RegisterOrchestrator(o, opts...)
}

// RegisterActivity registers an activity, or a struct of activities, with the worker's registry.
func (w *Worker) RegisterActivity(a registry.Activity, opts ...registry.RegisterOption) error {
	return w.registry.RegisterActivity(a, opts...)
}
