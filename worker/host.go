package worker

import (
	"context"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/client"
)

// Host combines a worker processing all queues and a client for the same backend into a single entity.
type Host struct {
	*Worker

	Client *client.Client
}

// NewHost creates a host. Unless explicitly set, a single poller is started per queue.
func NewHost(backend backend.Backend, options *Options) *Host {
	if options == nil {
		options = &DefaultOptions
	}

	hostOptions := *options

	if hostOptions.OrchestrationPollers == DefaultOptions.OrchestrationPollers {
		hostOptions.OrchestrationPollers = 1
	}

	if hostOptions.ActivityPollers == DefaultOptions.ActivityPollers {
		hostOptions.ActivityPollers = 1
	}

	return &Host{
		Worker: New(backend, &hostOptions),
		Client: client.New(backend),
	}
}

// Start starts the worker. Cancel ctx to stop polling.
func (h *Host) Start(ctx context.Context) error {
	return h.Worker.Start(ctx)
}
