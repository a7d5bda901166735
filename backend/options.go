package backend

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/cschleiden/go-orchestrations/backend/converter"
	"github.com/cschleiden/go-orchestrations/backend/metrics"
	"github.com/cschleiden/go-orchestrations/core"
	mi "github.com/cschleiden/go-orchestrations/internal/metrics"
)

const DefaultTaskHub = "default"

type Options struct {
	Logger *slog.Logger

	Metrics metrics.Client

	TracerProvider trace.TracerProvider

	// Converter is the converter to use for serializing and deserializing inputs and results. If not explicitly set
	// converter.DefaultConverter is used.
	Converter converter.Converter

	// Clock is the time source for event timestamps, leases and timer visibility.
	Clock clock.Clock

	// TaskHub is the namespace isolating this deployment's instances, history and queues from others sharing
	// the same storage.
	TaskHub string

	// OrchestrationLockTimeout determines how long an orchestration work item is leased for. If the item is not
	// completed by then, it's considered abandoned and another worker might pick it up.
	OrchestrationLockTimeout time.Duration

	// ActivityLockTimeout determines how long an activity work item is leased for. Workers extend the lease
	// while the activity is running.
	ActivityLockTimeout time.Duration
}

var DefaultOptions Options = Options{
	OrchestrationLockTimeout: time.Minute,
	ActivityLockTimeout:      time.Minute * 2,

	Logger:         slog.Default(),
	Metrics:        mi.NewNoopMetricsClient(),
	TracerProvider: noop.NewTracerProvider(),
	Converter:      converter.DefaultConverter,
	Clock:          clock.New(),
	TaskHub:        DefaultTaskHub,
}

type BackendOption func(*Options)

func WithLogger(logger *slog.Logger) BackendOption {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithMetrics(client metrics.Client) BackendOption {
	return func(o *Options) {
		o.Metrics = client
	}
}

func WithTracerProvider(tp trace.TracerProvider) BackendOption {
	return func(o *Options) {
		o.TracerProvider = tp
	}
}

func WithConverter(converter converter.Converter) BackendOption {
	return func(o *Options) {
		o.Converter = converter
	}
}

func WithClock(c clock.Clock) BackendOption {
	return func(o *Options) {
		o.Clock = c
	}
}

func WithTaskHub(taskHub string) BackendOption {
	return func(o *Options) {
		o.TaskHub = taskHub
	}
}

func WithOrchestrationLockTimeout(timeout time.Duration) BackendOption {
	return func(o *Options) {
		o.OrchestrationLockTimeout = timeout
	}
}

func WithActivityLockTimeout(timeout time.Duration) BackendOption {
	return func(o *Options) {
		o.ActivityLockTimeout = timeout
	}
}

// LeaseTimeout returns how long items of the given queue are leased for.
func (o *Options) LeaseTimeout(queue core.Queue) time.Duration {
	if queue == core.QueueActivities {
		return o.ActivityLockTimeout
	}

	return o.OrchestrationLockTimeout
}

func ApplyOptions(opts ...BackendOption) Options {
	options := DefaultOptions

	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	if options.Clock == nil {
		options.Clock = clock.New()
	}

	if options.TaskHub == "" {
		options.TaskHub = DefaultTaskHub
	}

	return options
}
