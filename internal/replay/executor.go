package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cschleiden/go-orchestrations/backend"
	"github.com/cschleiden/go-orchestrations/backend/converter"
	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/backend/payload"
	"github.com/cschleiden/go-orchestrations/internal/command"
	"github.com/cschleiden/go-orchestrations/internal/contextvalue"
	"github.com/cschleiden/go-orchestrations/internal/orchestrationerrors"
	"github.com/cschleiden/go-orchestrations/internal/orchestrationstate"
	"github.com/cschleiden/go-orchestrations/internal/sync"
	"github.com/cschleiden/go-orchestrations/log"
	"github.com/cschleiden/go-orchestrations/registry"
)

// ErrHistoryMismatch is returned when a reused executor is handed a history it has not been built from. The
// executor has to be discarded and replay has to start from scratch.
var ErrHistoryMismatch = errors.New("history does not match executor state")

var ErrNoExecution = errors.New("history contains no started execution")

type ExecutionResult struct {
	// NewEvents are to be appended to the history, in order. Empty if the step handled no new events.
	NewEvents []*history.Event

	// WorkItems are to be enqueued together with NewEvents
	WorkItems []*backend.WorkItem

	// Completed is set when the execution has ended, either with this step or before it
	Completed bool
}

type OrchestrationExecutor interface {
	// Execute replays the given history and runs the orchestration up to its next suspension. now is the
	// timestamp of the step, it becomes the orchestration time for events not covered by a checkpoint.
	Execute(ctx context.Context, h []*history.Event, now time.Time) (*ExecutionResult, error)

	// Applied returns the number of history events the executor's state reflects, including the events of
	// the last result.
	Applied() int

	Close()
}

type executor struct {
	registry   *registry.Registry
	cv         converter.Converter
	logger     *slog.Logger
	tracer     trace.Tracer
	instanceID string

	state         *orchestrationstate.OrchState
	ctx           sync.Context
	orchestration *orchestration

	// completion is kept apart from the other commands, it always closes a batch
	completion command.Command

	executionStart int
	applied        int
	lastEventID    string
}

var _ OrchestrationExecutor = (*executor)(nil)

func NewExecutor(
	logger *slog.Logger, tracer trace.Tracer, r *registry.Registry, cv converter.Converter, instanceID string,
) OrchestrationExecutor {
	instance := &orchestrationstate.Instance{InstanceID: instanceID}

	logger = logger.With(slog.String(log.InstanceIDKey, instanceID))

	state := orchestrationstate.NewOrchestrationState(instance, logger, tracer)

	ctx := contextvalue.WithConverter(sync.Background(), cv)
	ctx = orchestrationstate.WithOrchestrationState(ctx, state)

	return &executor{
		registry:       r,
		cv:             cv,
		logger:         logger,
		tracer:         tracer,
		instanceID:     instanceID,
		state:          state,
		ctx:            ctx,
		executionStart: -1,
	}
}

func (e *executor) Applied() int {
	return e.applied
}

func (e *executor) Execute(ctx context.Context, h []*history.Event, now time.Time) (*ExecutionResult, error) {
	start, execution := history.CurrentExecution(h)
	if start < 0 {
		return nil, ErrNoExecution
	}

	if history.Terminated(execution) {
		return &ExecutionResult{Completed: true}, nil
	}

	if e.applied > 0 {
		// Executor is reused, its state has to be built from a prefix of the given history
		if start != e.executionStart || e.applied > len(h) || h[e.applied-1].ID != e.lastEventID {
			return nil, fmt.Errorf("%w: applied %d events, history has %d", ErrHistoryMismatch, e.applied, len(h))
		}
	} else {
		e.executionStart = start
		e.applied = start
	}

	pending := h[e.applied:]
	times := checkpointTimes(pending, now)

	_, span := e.tracer.Start(ctx, "ReplayOrchestration", trace.WithAttributes(
		attribute.String(log.InstanceIDKey, e.instanceID),
		attribute.Int(log.ExecutedEventsKey, len(pending)),
	))
	defer span.End()

	executedNew := false

	for i, event := range pending {
		if !times[i].replaying {
			executedNew = true
		}

		e.state.SetTime(times[i].t)
		e.state.SetReplaying(times[i].replaying)

		if err := e.executeEvent(event); err != nil {
			var nde *orchestrationerrors.NonDeterminismError
			if errors.As(err, &nde) {
				e.logger.Error("Non-determinism detected", "error", err)
			} else {
				e.logger.Error("Orchestration failed while handling event",
					log.EventTypeKey, event.Type, log.SeqIDKey, event.SequenceID, "error", err)
			}

			return e.fail(h, now, err), nil
		}
	}

	e.state.SetTime(now)
	e.state.SetReplaying(false)

	if e.orchestration != nil && e.orchestration.Completed() && e.completion == nil {
		e.completion = command.NewCompleteOrchestrationCommand(
			e.state.NextCorrelationID(),
			e.orchestration.Result(),
			orchestrationerrors.FromError(e.orchestration.Error()),
		)
	}

	return e.checkpoint(h, now, executedNew), nil
}

// checkpoint turns the pending decisions of the orchestration into the next batch of history events. A step
// that handled new events always records its OrchestratorStarted event, the orchestration may have observed
// the step's time.
func (e *executor) checkpoint(h []*history.Event, now time.Time, executedNew bool) *ExecutionResult {
	var decisions []*command.CommandResult

	// Decisions of coroutines abandoned by a returning orchestrator are not recorded
	if e.completion == nil {
		for _, c := range e.state.Commands() {
			if r := c.Execute(now); r != nil {
				decisions = append(decisions, r)
			}
		}
	}

	var statusEvent *history.Event
	if e.state.CustomStatusChanged() {
		statusEvent = history.NewHistoryEvent(now, history.EventType_CustomStatusUpdated, &history.CustomStatusUpdatedAttributes{
			Status: e.state.CustomStatus(),
		})

		e.state.RecordCustomStatus(e.state.CustomStatus())
	}

	var completion *command.CommandResult
	if e.completion != nil {
		completion = e.completion.Execute(now)
	}

	if !executedNew && len(decisions) == 0 && statusEvent == nil && completion == nil {
		e.applied = len(h)
		e.lastEventID = h[len(h)-1].ID

		return &ExecutionResult{}
	}

	events := []*history.Event{
		history.NewHistoryEvent(now, history.EventType_OrchestratorStarted, &history.OrchestratorStartedAttributes{}),
	}
	var workItems []*backend.WorkItem

	for _, r := range decisions {
		events = append(events, r.Events...)
	}

	if statusEvent != nil {
		events = append(events, statusEvent)
	}

	if completion != nil {
		events = append(events, completion.Events...)
	}

	for i, event := range events {
		event.SequenceID = int64(len(h) + i + 1)
	}

	for _, r := range decisions {
		for _, event := range r.ActivityEvents {
			workItems = append(workItems, backend.NewActivityWorkItem(e.instanceID, event.SequenceID))
		}

		for _, event := range r.TimerEvents {
			a := event.Attributes.(*history.TimerCreatedAttributes)
			workItems = append(workItems, backend.NewTimerWorkItem(e.instanceID, event.SequenceID, a.FireAt))
		}

		for _, event := range r.ChildEvents {
			workItems = append(workItems, backend.NewStartChildWorkItem(e.instanceID, event.SequenceID))
		}
	}

	if completion != nil && e.state.Instance().ParentInstanceID != "" {
		// Deliver the result to the parent
		workItems = append(workItems, backend.NewChildResultWorkItem(e.instanceID, events[len(events)-1].SequenceID))
	}

	e.applied = len(h) + len(events)
	e.lastEventID = events[len(events)-1].ID

	return &ExecutionResult{
		NewEvents: events,
		WorkItems: workItems,
		Completed: completion != nil && completion.Completed,
	}
}

// fail ends the execution with the given error. Decisions made in this step are discarded.
func (e *executor) fail(h []*history.Event, now time.Time, err error) *ExecutionResult {
	e.completion = command.NewCompleteOrchestrationCommand(-1, nil, orchestrationerrors.FromError(err))

	r := e.completion.Execute(now)

	events := append([]*history.Event{
		history.NewHistoryEvent(now, history.EventType_OrchestratorStarted, &history.OrchestratorStartedAttributes{}),
	}, r.Events...)

	for i, event := range events {
		event.SequenceID = int64(len(h) + i + 1)
	}

	var workItems []*backend.WorkItem
	if e.state.Instance().ParentInstanceID != "" {
		workItems = append(workItems, backend.NewChildResultWorkItem(e.instanceID, events[len(events)-1].SequenceID))
	}

	e.applied = len(h) + len(events)
	e.lastEventID = events[len(events)-1].ID

	return &ExecutionResult{
		NewEvents: events,
		WorkItems: workItems,
		Completed: true,
	}
}

func (e *executor) Close() {
	if e.orchestration != nil {
		// End orchestration if running to prevent leaking goroutines
		e.orchestration.Close()
	}
}

func (e *executor) executeEvent(event *history.Event) error {
	e.logger.Debug("Handling event",
		log.EventTypeKey, event.Type,
		log.SeqIDKey, event.SequenceID,
		log.CorrelationIDKey, event.CorrelationID,
		log.IsReplayingKey, e.state.Replaying(),
	)

	switch event.Type {
	case history.EventType_ExecutionStarted:
		return e.handleExecutionStarted(event.Attributes.(*history.ExecutionStartedAttributes))

	case history.EventType_OrchestratorStarted:
		// Checkpoint marker, its timestamp has already been applied
		return nil

	case history.EventType_TaskScheduled:
		return e.handleScheduled(event, event.Attributes.(*history.TaskScheduledAttributes).Name)

	case history.EventType_TimerCreated:
		return e.handleScheduled(event, "")

	case history.EventType_SubOrchestrationScheduled:
		a := event.Attributes.(*history.SubOrchestrationScheduledAttributes)
		if err := e.handleScheduled(event, a.Name); err != nil {
			return err
		}

		// Keep the instance ID recorded in history
		if c, ok := e.state.CommandByCorrelationID(event.CorrelationID).(*command.ScheduleSubOrchestrationCommand); ok {
			c.InstanceID = a.InstanceID
		}

		return nil

	case history.EventType_SideEffectRecorded:
		return e.handleSideEffectRecorded(event, event.Attributes.(*history.SideEffectRecordedAttributes))

	case history.EventType_TaskCompleted:
		return e.resolve(event, event.Attributes.(*history.TaskCompletedAttributes).Result, nil)

	case history.EventType_TaskFailed:
		return e.resolve(event, nil, orchestrationerrors.ToError(event.Attributes.(*history.TaskFailedAttributes).Error))

	case history.EventType_TimerFired:
		return e.resolve(event, nil, nil)

	case history.EventType_SubOrchestrationCompleted:
		return e.resolve(event, event.Attributes.(*history.SubOrchestrationCompletedAttributes).Result, nil)

	case history.EventType_SubOrchestrationFailed:
		return e.resolve(event, nil, orchestrationerrors.ToError(event.Attributes.(*history.SubOrchestrationFailedAttributes).Error))

	case history.EventType_EventRaised:
		return e.handleEventRaised(event.Attributes.(*history.EventRaisedAttributes))

	case history.EventType_CustomStatusUpdated:
		e.state.RecordCustomStatus(event.Attributes.(*history.CustomStatusUpdatedAttributes).Status)
		return nil

	default:
		return fmt.Errorf("unexpected event type during replay: %v", event.Type)
	}
}

func (e *executor) handleExecutionStarted(a *history.ExecutionStartedAttributes) error {
	if e.orchestration != nil {
		return errors.New("execution already started")
	}

	instance := e.state.Instance()
	instance.Name = a.Name
	instance.ParentInstanceID = a.ParentInstanceID

	orchestratorFn, err := e.registry.GetOrchestrator(a.Name)
	if err != nil {
		return err
	}

	e.orchestration = newOrchestration(reflect.ValueOf(orchestratorFn), e.cv)

	return e.orchestration.Execute(e.ctx, a.Inputs)
}

// handleScheduled matches a recorded scheduling decision against the command the orchestration issued with
// the same correlation ID.
func (e *executor) handleScheduled(event *history.Event, name string) error {
	c := e.state.CommandByCorrelationID(event.CorrelationID)
	if c == nil {
		return orchestrationerrors.NewNonDeterminismError(
			"history contains %v %q with correlation id %d, orchestration did not make that call",
			event.Type, name, event.CorrelationID)
	}

	if c.ScheduledEventType() != event.Type || c.Name() != name {
		return orchestrationerrors.NewNonDeterminismError(
			"history contains %v %q with correlation id %d, orchestration issued %v %q",
			event.Type, name, event.CorrelationID, c.ScheduledEventType(), c.Name())
	}

	c.Commit()

	return nil
}

func (e *executor) handleSideEffectRecorded(event *history.Event, a *history.SideEffectRecordedAttributes) error {
	if err := e.handleScheduled(event, ""); err != nil {
		return err
	}

	e.state.CommandByCorrelationID(event.CorrelationID).Done()

	f, ok := e.state.FutureByCorrelationID(event.CorrelationID)
	if !ok {
		// Side effect ran in this executor, its value is already known
		return nil
	}

	e.state.RemoveFuture(event.CorrelationID)

	if err := f(a.Result, nil); err != nil {
		return fmt.Errorf("setting side effect result: %w", err)
	}

	return e.orchestration.Continue()
}

// resolve completes the task with the event's correlation ID and lets the orchestration continue.
func (e *executor) resolve(event *history.Event, result payload.Payload, taskErr error) error {
	f, ok := e.state.FutureByCorrelationID(event.CorrelationID)
	if !ok {
		e.logger.Debug("Ignoring completion without pending task",
			log.EventTypeKey, event.Type, log.CorrelationIDKey, event.CorrelationID)

		return nil
	}

	e.state.RemoveFuture(event.CorrelationID)

	if c := e.state.CommandByCorrelationID(event.CorrelationID); c != nil {
		c.Done()
	}

	if err := f(result, taskErr); err != nil {
		return fmt.Errorf("setting result for correlation id %d: %w", event.CorrelationID, err)
	}

	return e.orchestration.Continue()
}

func (e *executor) handleEventRaised(a *history.EventRaisedAttributes) error {
	if err := e.state.ReceiveEvent(a.Name, a.Arg); err != nil {
		return fmt.Errorf("delivering event %q: %w", a.Name, err)
	}

	return e.orchestration.Continue()
}

type eventTime struct {
	t         time.Time
	replaying bool
}

// checkpointTimes returns the orchestration time for each of the given events: the timestamp of the first
// OrchestratorStarted event at or after it. Events after the last checkpoint run at now, and are not
// replayed.
func checkpointTimes(events []*history.Event, now time.Time) []eventTime {
	times := make([]eventTime, len(events))

	current := eventTime{t: now, replaying: false}
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == history.EventType_OrchestratorStarted {
			current = eventTime{t: events[i].Timestamp, replaying: true}
		}

		times[i] = current
	}

	return times
}
