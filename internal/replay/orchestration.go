package replay

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/cschleiden/go-orchestrations/backend/converter"
	"github.com/cschleiden/go-orchestrations/backend/payload"
	"github.com/cschleiden/go-orchestrations/internal/args"
	"github.com/cschleiden/go-orchestrations/internal/orchestrationerrors"
	"github.com/cschleiden/go-orchestrations/internal/sync"
)

// orchestration runs an orchestrator function as the main coroutine of a scheduler.
type orchestration struct {
	s         *sync.Scheduler
	fn        reflect.Value
	cv        converter.Converter
	result    payload.Payload
	err       error
	completed bool
}

func newOrchestration(orchestratorFn reflect.Value, cv converter.Converter) *orchestration {
	return &orchestration{
		s:  sync.NewScheduler(),
		fn: orchestratorFn,
		cv: cv,
	}
}

func (o *orchestration) Execute(ctx sync.Context, inputs []payload.Payload) error {
	o.s.NewCoroutine(ctx, func(ctx sync.Context) error {
		args, addContext, err := args.InputsToArgs(o.cv, o.fn, inputs)
		if err != nil {
			return fmt.Errorf("converting orchestration inputs: %w", err)
		}

		if !addContext {
			return errors.New("orchestrator must accept context as first argument")
		}

		args[0] = reflect.ValueOf(ctx)

		// Handle panics in orchestrations
		defer func() {
			if r := recover(); r != nil {
				if err, ok := r.(error); ok && errors.Is(err, sync.ErrCoroutineAlreadyFinished) {
					// The scheduler is shutting the coroutine down
					panic(r)
				}

				o.err = orchestrationerrors.NewPanicError(fmt.Sprintf("panic in orchestration: %v", r))
				o.completed = true
			}
		}()

		// Call orchestrator function
		r := o.fn.Call(args)

		// Process result
		if len(r) < 1 || len(r) > 2 {
			return errors.New("orchestrator has to return either (error) or (result, error)")
		}

		var result payload.Payload

		if len(r) > 1 {
			result, err = o.cv.To(r[0].Interface())
			if err != nil {
				return fmt.Errorf("converting orchestration result: %w", err)
			}
		}

		o.result = result

		errResult := r[len(r)-1]
		if !errResult.IsNil() {
			errInterface, ok := errResult.Interface().(error)
			if !ok {
				return fmt.Errorf("orchestrator error result does not satisfy error interface (%T): %v", errResult, errResult)
			}

			o.err = errInterface
		}

		o.completed = true

		return nil
	})

	return o.s.Execute()
}

// Continue runs the scheduler until all coroutines are blocked again.
func (o *orchestration) Continue() error {
	return o.s.Execute()
}

// Completed returns true once the orchestrator function has returned. Coroutines it started may still be
// blocked, their tasks are abandoned.
func (o *orchestration) Completed() bool {
	return o.completed
}

// Result returns the return value of a finished orchestration as a payload
func (o *orchestration) Result() payload.Payload {
	return o.result
}

// Error returns the error of a finished orchestration, can be nil
func (o *orchestration) Error() error {
	return o.err
}

func (o *orchestration) Close() {
	// End coroutine execution to prevent goroutine leaks
	o.s.Exit()
}
