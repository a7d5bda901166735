package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/backend/metrics"
	"github.com/cschleiden/go-orchestrations/core"
	a "github.com/cschleiden/go-orchestrations/internal/args"
	"github.com/cschleiden/go-orchestrations/internal/fn"
	"github.com/cschleiden/go-orchestrations/internal/metrickeys"
	"github.com/cschleiden/go-orchestrations/internal/orchestrationerrors"
	"github.com/cschleiden/go-orchestrations/log"
)

var (
	ErrOrchestrationTerminated = errors.New("orchestration terminated")
	ErrTimeout                 = errors.New("orchestration did not finish in specified timeout")
)

const defaultWaitTimeout = 20 * time.Second

type Client struct {
	backend backend.Backend
	logger  *slog.Logger

	// clock paces polling, event timestamps use the backend's clock
	clock clock.Clock
}

func New(b backend.Backend) *Client {
	return &Client{
		backend: b,
		logger:  b.Options().Logger,
		clock:   clock.New(),
	}
}

func (c *Client) now() time.Time {
	return c.backend.Options().Clock.Now()
}

// CreateOrchestrationInstance starts a new instance of the given orchestrator, which is either the
// orchestrator function or its registered name. Returns the instance ID.
func (c *Client) CreateOrchestrationInstance(ctx context.Context, options InstanceOptions, orchestrator any, args ...any) (string, error) {
	var name string

	if n, ok := orchestrator.(string); ok {
		name = n
	} else {
		name = fn.Name(orchestrator)

		// Check arguments if actual orchestrator function given here
		if err := a.ParamsMatch(orchestrator, args...); err != nil {
			return "", err
		}
	}

	inputs, err := a.ArgsToInputs(c.backend.Options().Converter, args...)
	if err != nil {
		return "", fmt.Errorf("converting arguments: %w", err)
	}

	instanceID := options.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	ctx, span := c.backend.Tracer().Start(ctx, fmt.Sprintf("CreateOrchestrationInstance: %s", name), trace.WithAttributes(
		attribute.String(log.InstanceIDKey, instanceID),
		attribute.String(log.OrchestrationNameKey, name),
	))
	defer span.End()

	err = backend.RetryOnConflict(ctx, func() error {
		h, err := c.backend.ReadHistory(ctx, instanceID)
		if err != nil {
			return err
		}

		if len(h) > 0 {
			_, execution := history.CurrentExecution(h)
			if !history.Terminated(execution) || options.RestartPolicy == RestartNever {
				return backend.ErrInstanceAlreadyExists
			}
		}

		started := history.NewHistoryEvent(c.now(), history.EventType_ExecutionStarted, &history.ExecutionStartedAttributes{
			Name:   name,
			Inputs: inputs,
		})

		return c.backend.AppendEvents(ctx, instanceID, int64(len(h)), []*history.Event{started},
			backend.NewOrchestrateWorkItem(instanceID))
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("creating orchestration instance: %w", err)
	}

	c.logger.Debug("Created orchestration instance",
		log.InstanceIDKey, instanceID,
		log.OrchestrationNameKey, name,
	)

	c.backend.Metrics().Counter(metrickeys.InstanceCreated, metrics.Tags{}, 1)

	return instanceID, nil
}

// GetOrchestrationState returns the current state of the instance, backend.ErrInstanceNotFound for unknown
// instances.
func (c *Client) GetOrchestrationState(ctx context.Context, instanceID string) (*core.InstanceState, error) {
	ctx, span := c.backend.Tracer().Start(ctx, "GetOrchestrationState", trace.WithAttributes(
		attribute.String(log.InstanceIDKey, instanceID),
	))
	defer span.End()

	return c.backend.GetInstance(ctx, instanceID)
}

// WaitForOrchestrationInstance waits for the given instance to reach a terminal status or until the given
// timeout has expired.
func (c *Client) WaitForOrchestrationInstance(ctx context.Context, instanceID string, timeout time.Duration) (*core.InstanceState, error) {
	if timeout == 0 {
		timeout = defaultWaitTimeout
	}

	ctx, span := c.backend.Tracer().Start(ctx, "WaitForOrchestrationInstance", trace.WithAttributes(
		attribute.String(log.InstanceIDKey, instanceID),
	))
	defer span.End()

	b := backoff.ExponentialBackOff{
		InitialInterval:     time.Millisecond * 1,
		MaxInterval:         time.Second * 1,
		Multiplier:          1.5,
		RandomizationFactor: 0.5,
		MaxElapsedTime:      timeout,
		Stop:                backoff.Stop,
		Clock:               c.clock,
	}
	b.Reset()

	ticker := backoff.NewTickerWithTimer(backoff.WithContext(&b, ctx), nil)
	defer ticker.Stop()

	for range ticker.C {
		s, err := c.backend.GetInstance(ctx, instanceID)
		if err != nil {
			return nil, fmt.Errorf("getting orchestration state: %w", err)
		}

		if s.Terminal() {
			return s, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return nil, ErrTimeout
}

// GetOrchestrationResult waits for the instance to finish and returns its result. Failed instances return
// their error, terminated ones ErrOrchestrationTerminated.
func GetOrchestrationResult[T any](ctx context.Context, c *Client, instanceID string, timeout time.Duration) (T, error) {
	var zero T

	ctx, span := c.backend.Tracer().Start(ctx, "GetOrchestrationResult", trace.WithAttributes(
		attribute.String(log.InstanceIDKey, instanceID),
	))
	defer span.End()

	s, err := c.WaitForOrchestrationInstance(ctx, instanceID, timeout)
	if err != nil {
		return zero, fmt.Errorf("orchestration did not finish in time: %w", err)
	}

	switch s.Status {
	case core.StatusCompleted:
		var r T
		if err := c.backend.Options().Converter.From(s.Output, &r); err != nil {
			return zero, fmt.Errorf("converting result: %w", err)
		}

		return r, nil

	case core.StatusFailed:
		return zero, orchestrationerrors.ToError(s.Error)

	case core.StatusTerminated:
		return zero, ErrOrchestrationTerminated
	}

	return zero, fmt.Errorf("unexpected orchestration status %v", s.Status)
}

// RaiseEvent delivers an external event to the instance. Events for terminal instances are dropped.
func (c *Client) RaiseEvent(ctx context.Context, instanceID string, name string, arg any) error {
	ctx, span := c.backend.Tracer().Start(ctx, "RaiseEvent", trace.WithAttributes(
		attribute.String(log.InstanceIDKey, instanceID),
		attribute.String(log.EventNameKey, name),
	))
	defer span.End()

	input, err := c.backend.Options().Converter.To(arg)
	if err != nil {
		return fmt.Errorf("converting arguments: %w", err)
	}

	dropped := false

	err = backend.RetryOnConflict(ctx, func() error {
		h, err := c.backend.ReadHistory(ctx, instanceID)
		if err != nil {
			return err
		}

		_, execution := history.CurrentExecution(h)
		if execution == nil {
			return backend.ErrInstanceNotFound
		}

		if history.Terminated(execution) {
			dropped = true
			return nil
		}

		raised := history.NewHistoryEvent(c.now(), history.EventType_EventRaised, &history.EventRaisedAttributes{
			Name: name,
			Arg:  input,
		})

		return c.backend.AppendEvents(ctx, instanceID, int64(len(h)), []*history.Event{raised},
			backend.NewOrchestrateWorkItem(instanceID))
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	if dropped {
		c.logger.Debug("Dropped event for terminal instance", log.InstanceIDKey, instanceID, log.EventNameKey, name)
		return nil
	}

	c.logger.Debug("Raised event", log.InstanceIDKey, instanceID, log.EventNameKey, name)
	c.backend.Metrics().Counter(metrickeys.EventRaised, metrics.Tags{metrickeys.EventName: name}, 1)

	return nil
}

// TerminateOrchestrationInstance terminates the instance and all of its running sub-orchestrations.
// Terminating a terminal instance is a no-op.
func (c *Client) TerminateOrchestrationInstance(ctx context.Context, instanceID string, reason string) error {
	ctx, span := c.backend.Tracer().Start(ctx, "TerminateOrchestrationInstance", trace.WithAttributes(
		attribute.String(log.InstanceIDKey, instanceID),
	))
	defer span.End()

	if err := c.terminate(ctx, instanceID, reason); err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}

func (c *Client) terminate(ctx context.Context, instanceID string, reason string) error {
	terminated := false

	err := backend.RetryOnConflict(ctx, func() error {
		terminated = false

		h, err := c.backend.ReadHistory(ctx, instanceID)
		if err != nil {
			return err
		}

		_, execution := history.CurrentExecution(h)
		if execution == nil {
			return backend.ErrInstanceNotFound
		}

		if history.Terminated(execution) {
			return nil
		}

		event := history.NewHistoryEvent(c.now(), history.EventType_ExecutionTerminated, &history.ExecutionTerminatedAttributes{
			Reason: reason,
		})

		var work []*backend.WorkItem
		if a := execution[0].Attributes.(*history.ExecutionStartedAttributes); a.ParentInstanceID != "" {
			// The parent is waiting for this instance
			work = append(work, backend.NewChildResultWorkItem(instanceID, int64(len(h))+1))
		}

		if err := c.backend.AppendEvents(ctx, instanceID, int64(len(h)), []*history.Event{event}, work...); err != nil {
			return err
		}

		terminated = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("terminating instance %s: %w", instanceID, err)
	}

	if !terminated {
		return nil
	}

	c.logger.Debug("Terminated orchestration instance", log.InstanceIDKey, instanceID, log.ReasonKey, reason)
	c.backend.Metrics().Counter(metrickeys.InstanceTerminated, metrics.Tags{}, 1)

	children, err := c.backend.ListInstances(ctx, &core.InstanceFilter{
		ParentInstanceID: instanceID,
		Statuses:         []core.RuntimeStatus{core.StatusPending, core.StatusRunning},
	})
	if err != nil {
		return fmt.Errorf("listing sub-orchestrations: %w", err)
	}

	for _, child := range children {
		if err := c.terminate(ctx, child.InstanceID, reason); err != nil && !errors.Is(err, backend.ErrInstanceNotFound) {
			return err
		}
	}

	return nil
}

// PurgeOrchestrationInstance removes history and state of a terminal instance.
func (c *Client) PurgeOrchestrationInstance(ctx context.Context, instanceID string) error {
	ctx, span := c.backend.Tracer().Start(ctx, "PurgeOrchestrationInstance", trace.WithAttributes(
		attribute.String(log.InstanceIDKey, instanceID),
	))
	defer span.End()

	if err := c.backend.PurgeInstance(ctx, instanceID); err != nil {
		span.RecordError(err)
		return err
	}

	c.logger.Debug("Purged orchestration instance", log.InstanceIDKey, instanceID)
	c.backend.Metrics().Counter(metrickeys.InstancePurged, metrics.Tags{}, 1)

	return nil
}

// PurgeOrchestrationInstances purges all terminal instances matching the filter and returns how many were
// removed.
func (c *Client) PurgeOrchestrationInstances(ctx context.Context, filter *core.InstanceFilter) (int, error) {
	ctx, span := c.backend.Tracer().Start(ctx, "PurgeOrchestrationInstances")
	defer span.End()

	f := core.InstanceFilter{}
	if filter != nil {
		f = *filter
	}

	if len(f.Statuses) == 0 {
		f.Statuses = []core.RuntimeStatus{core.StatusCompleted, core.StatusFailed, core.StatusTerminated}
	}

	instances, err := c.backend.ListInstances(ctx, &f)
	if err != nil {
		return 0, fmt.Errorf("listing instances: %w", err)
	}

	purged := 0
	for _, s := range instances {
		if !s.Terminal() {
			continue
		}

		if err := c.backend.PurgeInstance(ctx, s.InstanceID); err != nil {
			if errors.Is(err, backend.ErrInstanceNotFound) || errors.Is(err, backend.ErrInstanceNotFinished) {
				// Purged or restarted in the meantime
				continue
			}

			return purged, fmt.Errorf("purging instance %s: %w", s.InstanceID, err)
		}

		purged++
	}

	c.backend.Metrics().Counter(metrickeys.InstancePurged, metrics.Tags{}, int64(purged))

	return purged, nil
}

// ListOrchestrationInstances returns the instances matching the filter, ordered by creation time.
func (c *Client) ListOrchestrationInstances(ctx context.Context, filter *core.InstanceFilter) ([]*core.InstanceState, error) {
	ctx, span := c.backend.Tracer().Start(ctx, "ListOrchestrationInstances")
	defer span.End()

	return c.backend.ListInstances(ctx, filter)
}
