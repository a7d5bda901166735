package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/trace"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/backend/metrics"
	"github.com/cschleiden/go-orchestrations/core"
	"github.com/cschleiden/go-orchestrations/internal/metrickeys"
	im "github.com/cschleiden/go-orchestrations/internal/metrics"
	"github.com/cschleiden/go-orchestrations/internal/orchestrationerrors"
	"github.com/cschleiden/go-orchestrations/internal/replay"
	"github.com/cschleiden/go-orchestrations/internal/replay/cache"
	"github.com/cschleiden/go-orchestrations/log"
	"github.com/cschleiden/go-orchestrations/registry"
)

type orchestrationResult struct {
	// NewEvents is the number of events appended while handling the item
	NewEvents int

	Completed bool
}

type orchestrationTaskWorker struct {
	backend  backend.Backend
	registry *registry.Registry
	cache    cache.ExecutorCache
	logger   *slog.Logger
	tracer   trace.Tracer
	clock    clock.Clock
}

// OrchestrationWorker is the worker processing the orchestrations queue. Besides replay triggers it
// creates sub-orchestrations and delivers their results to the parent.
type OrchestrationWorker struct {
	*Worker[backend.WorkItem, orchestrationResult]

	cache cache.ExecutorCache
}

func NewOrchestrationWorker(b backend.Backend, r *registry.Registry, options OrchestrationWorkerOptions) *OrchestrationWorker {
	bo := b.Options()

	var c cache.ExecutorCache
	if options.ExecutorCacheSize > 0 {
		c = cache.NewExecutorLRUCache(b.Metrics(), options.ExecutorCacheSize, options.ExecutorCacheTTL)
	}

	tw := &orchestrationTaskWorker{
		backend:  b,
		registry: r,
		cache:    c,
		logger:   bo.Logger,
		tracer:   b.Tracer(),
		clock:    bo.Clock,
	}

	return &OrchestrationWorker{
		Worker: NewWorker[backend.WorkItem, orchestrationResult](bo.Logger, tw, &options.WorkerOptions),
		cache:  c,
	}
}

func (ow *OrchestrationWorker) Start(ctx context.Context) error {
	if ow.cache != nil {
		go ow.cache.StartEviction(ctx)
	}

	return ow.Worker.Start(ctx)
}

func (ow *orchestrationTaskWorker) Get(ctx context.Context) (*backend.WorkItem, error) {
	return ow.backend.Dequeue(ctx, core.QueueOrchestrations)
}

func (ow *orchestrationTaskWorker) Extend(ctx context.Context, item *backend.WorkItem) error {
	return ow.backend.ExtendLease(ctx, item)
}

func (ow *orchestrationTaskWorker) Execute(ctx context.Context, item *backend.WorkItem) (*orchestrationResult, error) {
	ow.backend.Metrics().Distribution(metrickeys.OrchestrationTaskDelay, metrics.Tags{
		metrickeys.Queue: string(item.Queue),
	}, float64(ow.clock.Since(item.CreatedAt).Milliseconds()))

	switch item.Kind {
	case backend.WorkItemOrchestrate:
		return ow.orchestrate(ctx, item.InstanceID)

	case backend.WorkItemStartChild:
		return ow.startChild(ctx, item)

	case backend.WorkItemChildResult:
		return ow.deliverChildResult(ctx, item)

	default:
		ow.logger.WarnContext(ctx, "dropping unknown work item", log.WorkItemIDKey, item.ID, log.WorkItemKindKey, item.Kind)
		return &orchestrationResult{}, nil
	}
}

func (ow *orchestrationTaskWorker) Complete(ctx context.Context, _ *orchestrationResult, item *backend.WorkItem) error {
	return ow.backend.Complete(ctx, item)
}

// orchestrate runs one replay step for the given instance and appends the new decisions. Lost appends
// discard the executor and start over from a fresh read.
func (ow *orchestrationTaskWorker) orchestrate(ctx context.Context, instanceID string) (*orchestrationResult, error) {
	logger := ow.logger.With(log.InstanceIDKey, instanceID)

	timer := im.NewTimer(ow.backend.Metrics(), metrickeys.OrchestrationTaskProcessed, metrics.Tags{})
	defer timer.Stop()

	r := &orchestrationResult{}

	err := backend.RetryOnConflict(ctx, func() error {
		h, err := ow.backend.ReadHistory(ctx, instanceID)
		if err != nil {
			return fmt.Errorf("reading history: %w", err)
		}

		if len(h) == 0 {
			logger.WarnContext(ctx, "instance not found, dropping work item")
			return nil
		}

		e := ow.checkout(ctx, instanceID)

		result, err := e.Execute(ctx, h, ow.clock.Now())
		if errors.Is(err, replay.ErrHistoryMismatch) {
			logger.DebugContext(ctx, "cached executor out of date, replaying from scratch")

			e.Close()
			e = ow.newExecutor(instanceID)
			result, err = e.Execute(ctx, h, ow.clock.Now())
		}

		if err != nil {
			e.Close()

			if errors.Is(err, replay.ErrNoExecution) {
				logger.WarnContext(ctx, "instance has no execution, dropping work item")
				return nil
			}

			return fmt.Errorf("executing orchestration: %w", err)
		}

		if len(result.NewEvents) > 0 {
			if err := ow.backend.AppendEvents(ctx, instanceID, int64(len(h)), result.NewEvents, result.WorkItems...); err != nil {
				e.Close()

				if errors.Is(err, backend.ErrConflict) {
					ow.backend.Metrics().Counter(metrickeys.OrchestrationConflicts, metrics.Tags{}, 1)
					logger.DebugContext(ctx, "lost append, retrying", "error", err)
				}

				return err
			}

			ow.recordScheduled(result.WorkItems)

			logger.DebugContext(ctx, "appended events",
				log.ExpectedVersionKey, len(h),
				log.NewEventsKey, len(result.NewEvents),
				log.CompletedKey, result.Completed,
			)
		}

		if result.Completed {
			e.Close()

			if len(result.NewEvents) > 0 {
				ow.recordFinished(result.NewEvents)
			}
		} else if ow.cache != nil {
			ow.cache.Store(ctx, instanceID, e)
		} else {
			e.Close()
		}

		r.NewEvents = len(result.NewEvents)
		r.Completed = result.Completed

		return nil
	})

	return r, err
}

func (ow *orchestrationTaskWorker) checkout(ctx context.Context, instanceID string) replay.OrchestrationExecutor {
	if ow.cache != nil {
		if e, ok := ow.cache.Checkout(ctx, instanceID); ok {
			return e
		}
	}

	return ow.newExecutor(instanceID)
}

func (ow *orchestrationTaskWorker) newExecutor(instanceID string) replay.OrchestrationExecutor {
	return replay.NewExecutor(ow.logger, ow.tracer, ow.registry, ow.backend.Options().Converter, instanceID)
}

func (ow *orchestrationTaskWorker) recordScheduled(items []*backend.WorkItem) {
	var activities int64
	for _, item := range items {
		if item.Kind == backend.WorkItemActivity {
			activities++
		}
	}

	if activities > 0 {
		ow.backend.Metrics().Counter(metrickeys.ActivityTaskScheduled, metrics.Tags{}, activities)
	}
}

func (ow *orchestrationTaskWorker) recordFinished(events []*history.Event) {
	last := events[len(events)-1]
	if last.Type != history.EventType_ExecutionCompleted {
		return
	}

	status := core.StatusCompleted
	if last.Attributes.(*history.ExecutionCompletedAttributes).Error != nil {
		status = core.StatusFailed
	}

	ow.backend.Metrics().Counter(metrickeys.InstanceFinished, metrics.Tags{metrickeys.Status: status.String()}, 1)
}

// startChild creates the sub-orchestration scheduled by the parent's SubOrchestrationScheduled event. A
// running, unrelated instance with the same ID fails the call in the parent.
func (ow *orchestrationTaskWorker) startChild(ctx context.Context, item *backend.WorkItem) (*orchestrationResult, error) {
	parentID := item.InstanceID
	logger := ow.logger.With(log.ParentInstanceIDKey, parentID, log.SeqIDKey, item.SequenceID)

	ph, err := ow.backend.ReadHistory(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("reading parent history: %w", err)
	}

	scheduled := history.EventBySequenceID(ph, item.SequenceID)
	if scheduled == nil || scheduled.Type != history.EventType_SubOrchestrationScheduled {
		logger.WarnContext(ctx, "start-child work item does not reference a scheduled sub-orchestration")
		return &orchestrationResult{}, nil
	}

	if reason := skipCompletion(ph, item.SequenceID, scheduled.CorrelationID); reason != "" {
		logger.DebugContext(ctx, "not starting sub-orchestration", log.ReasonKey, reason)
		return &orchestrationResult{}, nil
	}

	a := scheduled.Attributes.(*history.SubOrchestrationScheduledAttributes)
	childID := a.InstanceID
	logger = logger.With(log.InstanceIDKey, childID)

	collision := false

	err = backend.RetryOnConflict(ctx, func() error {
		ch, err := ow.backend.ReadHistory(ctx, childID)
		if err != nil {
			return fmt.Errorf("reading history: %w", err)
		}

		if _, execution := history.CurrentExecution(ch); execution != nil {
			esa := execution[0].Attributes.(*history.ExecutionStartedAttributes)
			if esa.ParentInstanceID == parentID && esa.ParentSequenceID == item.SequenceID {
				// Created by an earlier delivery of this item
				return nil
			}

			if !history.Terminated(execution) {
				collision = true
				return nil
			}
		}

		started := history.NewHistoryEvent(ow.clock.Now(), history.EventType_ExecutionStarted, &history.ExecutionStartedAttributes{
			Name:                a.Name,
			Inputs:              a.Inputs,
			ParentInstanceID:    parentID,
			ParentSequenceID:    item.SequenceID,
			ParentCorrelationID: scheduled.CorrelationID,
		})

		return ow.backend.AppendEvents(ctx, childID, int64(len(ch)), []*history.Event{started}, backend.NewOrchestrateWorkItem(childID))
	})
	if err != nil {
		return nil, fmt.Errorf("creating sub-orchestration: %w", err)
	}

	if !collision {
		ow.backend.Metrics().Counter(metrickeys.InstanceCreated, metrics.Tags{metrickeys.SubOrchestration: "true"}, 1)
		logger.DebugContext(ctx, "created sub-orchestration")

		return &orchestrationResult{NewEvents: 1}, nil
	}

	logger.WarnContext(ctx, "sub-orchestration instance already exists")

	failed := history.NewHistoryEvent(ow.clock.Now(), history.EventType_SubOrchestrationFailed, &history.SubOrchestrationFailedAttributes{
		Error: orchestrationerrors.NewPermanentError(fmt.Errorf("%w: %q", backend.ErrInstanceAlreadyExists, childID)),
	}, history.CorrelationID(scheduled.CorrelationID))

	if _, err := deliverCompletion(ctx, ow.backend, ow.logger, parentID, item.SequenceID, failed); err != nil {
		return nil, fmt.Errorf("failing sub-orchestration: %w", err)
	}

	return &orchestrationResult{NewEvents: 1}, nil
}

// deliverChildResult appends the outcome of a finished sub-orchestration to its parent.
func (ow *orchestrationTaskWorker) deliverChildResult(ctx context.Context, item *backend.WorkItem) (*orchestrationResult, error) {
	childID := item.InstanceID
	logger := ow.logger.With(log.InstanceIDKey, childID, log.SeqIDKey, item.SequenceID)

	ch, err := ow.backend.ReadHistory(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	terminal := history.EventBySequenceID(ch, item.SequenceID)
	if terminal == nil || !history.IsTerminal(terminal) {
		logger.WarnContext(ctx, "child-result work item does not reference a terminal event")
		return &orchestrationResult{}, nil
	}

	// The execution the terminal event belongs to
	_, execution := history.CurrentExecution(ch[:item.SequenceID])
	esa := execution[0].Attributes.(*history.ExecutionStartedAttributes)
	if esa.ParentInstanceID == "" {
		return &orchestrationResult{}, nil
	}

	var result *history.Event
	switch a := terminal.Attributes.(type) {
	case *history.ExecutionCompletedAttributes:
		if a.Error != nil {
			result = history.NewHistoryEvent(ow.clock.Now(), history.EventType_SubOrchestrationFailed, &history.SubOrchestrationFailedAttributes{
				Error: a.Error,
			}, history.CorrelationID(esa.ParentCorrelationID))
		} else {
			result = history.NewHistoryEvent(ow.clock.Now(), history.EventType_SubOrchestrationCompleted, &history.SubOrchestrationCompletedAttributes{
				Result: a.Result,
			}, history.CorrelationID(esa.ParentCorrelationID))
		}

	case *history.ExecutionTerminatedAttributes:
		result = history.NewHistoryEvent(ow.clock.Now(), history.EventType_SubOrchestrationFailed, &history.SubOrchestrationFailedAttributes{
			Error: orchestrationerrors.NewPermanentError(fmt.Errorf("sub-orchestration terminated: %s", a.Reason)),
		}, history.CorrelationID(esa.ParentCorrelationID))
	}

	delivered, err := deliverCompletion(ctx, ow.backend, ow.logger, esa.ParentInstanceID, esa.ParentSequenceID, result)
	if err != nil {
		return nil, fmt.Errorf("delivering sub-orchestration result: %w", err)
	}

	if !delivered {
		return &orchestrationResult{}, nil
	}

	return &orchestrationResult{NewEvents: 1}, nil
}
