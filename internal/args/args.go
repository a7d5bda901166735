package args

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/cschleiden/go-orchestrations/backend/converter"
	"github.com/cschleiden/go-orchestrations/backend/payload"
	"github.com/cschleiden/go-orchestrations/internal/sync"
)

func ArgsToInputs(c converter.Converter, args ...any) ([]payload.Payload, error) {
	inputs := make([]payload.Payload, 0, len(args))

	for _, arg := range args {
		input, err := c.To(arg)
		if err != nil {
			return nil, fmt.Errorf("converting args to inputs: %w", err)
		}
		inputs = append(inputs, input)
	}

	return inputs, nil
}

// InputsToArgs converts the given inputs into arguments for fn. If fn accepts a context as its first parameter,
// addContext is true and the first returned argument is left empty for the caller to fill.
func InputsToArgs(c converter.Converter, fn reflect.Value, inputs []payload.Payload) ([]reflect.Value, bool, error) {
	addContext := false

	fnT := fn.Type()

	numArgs := fnT.NumIn()
	args := make([]reflect.Value, numArgs)

	expected := numArgs
	if numArgs > 0 && isContext(fnT.In(0)) {
		expected--
	}

	if expected != len(inputs) {
		return nil, false, fmt.Errorf("mismatched argument count: expected %d, got %d", expected, len(inputs))
	}

	input := 0
	for i := 0; i < numArgs; i++ {
		argT := fnT.In(i)

		// Insert context if requested
		if i == 0 && isContext(argT) {
			addContext = true
			continue
		}

		arg := reflect.New(argT).Interface()
		err := c.From(inputs[input], arg)
		if err != nil {
			return nil, false, fmt.Errorf("converting inputs: %w", err)
		}

		args[i] = reflect.ValueOf(arg).Elem()

		input++
	}

	return args, addContext, nil
}

// ReturnTypeMatch checks that fn returns either just an error or (TResult, error).
func ReturnTypeMatch[TResult any](fn any) error {
	fnType := reflect.TypeOf(fn)
	if fnType == nil || fnType.Kind() != reflect.Func {
		return errors.New("not a function")
	}

	if fnType.NumOut() < 1 || fnType.NumOut() > 2 {
		return errors.New("function must return either (error) or (result, error)")
	}

	if !fnType.Out(fnType.NumOut() - 1).Implements(reflect.TypeOf((*error)(nil)).Elem()) {
		return errors.New("function must return error as last return value")
	}

	if fnType.NumOut() == 1 {
		return nil
	}

	resultType := reflect.TypeOf((*TResult)(nil)).Elem()
	if resultType.Kind() == reflect.Interface && resultType.NumMethod() == 0 {
		return nil
	}

	if fnType.Out(0) != resultType {
		return fmt.Errorf("function must return %v, got %v", resultType, fnType.Out(0))
	}

	return nil
}

// ParamsMatch checks that the given args can be passed to fn. A leading context parameter is skipped and
// interface parameters accept any value.
func ParamsMatch(fn any, args ...any) error {
	fnType := reflect.TypeOf(fn)
	if fnType == nil || fnType.Kind() != reflect.Func {
		return errors.New("not a function")
	}

	params := make([]reflect.Type, 0, fnType.NumIn())
	for i := 0; i < fnType.NumIn(); i++ {
		if i == 0 && isContext(fnType.In(i)) {
			continue
		}

		params = append(params, fnType.In(i))
	}

	if len(params) != len(args) {
		return fmt.Errorf("mismatched argument count: expected %d, got %d", len(params), len(args))
	}

	for i, arg := range args {
		paramType := params[i]
		if paramType.Kind() == reflect.Interface {
			continue
		}

		argType := reflect.TypeOf(arg)
		if argType == nil {
			continue
		}

		if !argType.AssignableTo(paramType) {
			return fmt.Errorf("mismatched argument type: expected %v, got %v", paramType, argType)
		}
	}

	return nil
}

func isContext(inType reflect.Type) bool {
	ownContext := reflect.TypeOf((*sync.Context)(nil)).Elem()
	stdContext := reflect.TypeOf((*context.Context)(nil)).Elem()

	return inType != nil && inType.Kind() == reflect.Interface &&
		(inType.Implements(stdContext) || inType == ownContext || inType.Implements(ownContext) && inType.NumMethod() == 1)
}

// IsOwnContext returns true if the given type is the orchestration context.
func IsOwnContext(inType reflect.Type) bool {
	ownContext := reflect.TypeOf((*sync.Context)(nil)).Elem()

	return inType == ownContext
}
