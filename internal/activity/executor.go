package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cschleiden/go-orchestrations/backend/converter"
	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/backend/payload"
	"github.com/cschleiden/go-orchestrations/internal/args"
	"github.com/cschleiden/go-orchestrations/internal/orchestrationerrors"
	"github.com/cschleiden/go-orchestrations/internal/tracing"
	"github.com/cschleiden/go-orchestrations/log"
	"github.com/cschleiden/go-orchestrations/registry"
)

type Executor struct {
	logger    *slog.Logger
	tracer    trace.Tracer
	converter converter.Converter
	r         *registry.Registry
}

func NewExecutor(logger *slog.Logger, tracer trace.Tracer, converter converter.Converter, r *registry.Registry) *Executor {
	return &Executor{
		logger:    logger,
		tracer:    tracer,
		converter: converter,
		r:         r,
	}
}

// ExecuteActivity runs the activity scheduled by the given TaskScheduled event.
func (e *Executor) ExecuteActivity(ctx context.Context, instanceID string, event *history.Event) (payload.Payload, error) {
	a, ok := event.Attributes.(*history.TaskScheduledAttributes)
	if !ok {
		return nil, fmt.Errorf("event %v does not schedule an activity", event.Type)
	}

	activity, err := e.r.GetActivity(a.Name)
	if err != nil {
		return nil, orchestrationerrors.NewPermanentError(err)
	}

	activityFn := reflect.ValueOf(activity)
	if activityFn.Type().Kind() != reflect.Func {
		return nil, orchestrationerrors.NewPermanentError(errors.New("activity not a function"))
	}

	args, addContext, err := args.InputsToArgs(e.converter, activityFn, a.Inputs)
	if err != nil {
		return nil, orchestrationerrors.NewPermanentError(fmt.Errorf("converting activity inputs: %w", err))
	}

	as := NewActivityState(instanceID, a.Name, event.CorrelationID, a.Attempt, e.logger)
	activityCtx := WithActivityState(ctx, as)

	activityCtx, span := e.tracer.Start(activityCtx, fmt.Sprintf("ActivityTaskExecution: %s", a.Name), trace.WithAttributes(
		attribute.String(log.ActivityNameKey, a.Name),
		attribute.String(log.InstanceIDKey, instanceID),
		attribute.Int64(log.CorrelationIDKey, event.CorrelationID),
		attribute.Int(log.AttemptKey, a.Attempt),
	))
	defer span.End()

	// Execute activity
	if addContext {
		args[0] = reflect.ValueOf(activityCtx)
	}

	r, err := executeActivity(activityFn, args)
	if err != nil {
		return nil, tracing.WithSpanError(span, err)
	}

	var result payload.Payload

	if len(r) > 1 {
		var err error
		result, err = e.converter.To(r[0].Interface())
		if err != nil {
			return nil, tracing.WithSpanError(span, fmt.Errorf("converting activity result: %w", err))
		}
	}

	errResult := r[len(r)-1]
	if errResult.IsNil() {
		return result, nil
	}

	errInterface, ok := errResult.Interface().(error)
	if !ok {
		return nil, fmt.Errorf("activity error result does not satisfy error interface (%T): %v", errResult, errResult)
	}

	return result, tracing.WithSpanError(span, errInterface)
}

func executeActivity(fn reflect.Value, args []reflect.Value) (r []reflect.Value, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = orchestrationerrors.NewPanicError(fmt.Sprintf("panic in activity: %v", rec))
		}
	}()

	r = fn.Call(args)
	if len(r) < 1 || len(r) > 2 {
		return nil, errors.New("activity has to return either (error) or (<result>, error)")
	}

	return r, nil
}
