package activity

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/cschleiden/go-orchestrations/backend/converter"
	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/backend/payload"
	"github.com/cschleiden/go-orchestrations/internal/args"
	"github.com/cschleiden/go-orchestrations/internal/fn"
	"github.com/cschleiden/go-orchestrations/internal/orchestrationerrors"
	"github.com/cschleiden/go-orchestrations/registry"
)

func TestExecutor_ExecuteActivity(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, r *registry.Registry) *history.TaskScheduledAttributes
		result func(t *testing.T, result payload.Payload, err error)
	}{
		{
			name: "unknown activity",
			setup: func(t *testing.T, r *registry.Registry) *history.TaskScheduledAttributes {
				return &history.TaskScheduledAttributes{
					Name: "unknown",
				}
			},
			result: func(t *testing.T, result payload.Payload, err error) {
				require.Nil(t, result)
				require.ErrorContains(t, err, registry.ErrActivityNotFound.Error())
				require.False(t, orchestrationerrors.CanRetry(err))
			},
		},
		{
			name: "mismatched argument count",
			setup: func(t *testing.T, r *registry.Registry) *history.TaskScheduledAttributes {
				a := func(context.Context, int, int) error { return nil }
				require.NoError(t, r.RegisterActivity(a))

				return &history.TaskScheduledAttributes{
					Name: fn.Name(a),
				}
			},
			result: func(t *testing.T, result payload.Payload, err error) {
				require.Nil(t, result)
				require.EqualError(t, err, "converting activity inputs: mismatched argument count: expected 2, got 0")
				require.False(t, orchestrationerrors.CanRetry(err))
			},
		},
		{
			name: "result",
			setup: func(t *testing.T, r *registry.Registry) *history.TaskScheduledAttributes {
				a := func(ctx context.Context, chunk int) (string, error) {
					as := GetActivityState(ctx)
					require.Equal(t, "instance", as.InstanceID)
					require.Equal(t, 2, as.Attempt)

					return "chunk", nil
				}
				require.NoError(t, r.RegisterActivity(a, registry.WithName("a")))

				inputs, err := args.ArgsToInputs(converter.DefaultConverter, 1)
				require.NoError(t, err)

				return &history.TaskScheduledAttributes{
					Name:    "a",
					Inputs:  inputs,
					Attempt: 2,
				}
			},
			result: func(t *testing.T, result payload.Payload, err error) {
				require.NoError(t, err)
				require.Equal(t, `"chunk"`, string(result))
			},
		},
		{
			name: "error",
			setup: func(t *testing.T, r *registry.Registry) *history.TaskScheduledAttributes {
				a := func(ctx context.Context) error {
					return errors.New("boom")
				}
				require.NoError(t, r.RegisterActivity(a, registry.WithName("a")))

				return &history.TaskScheduledAttributes{Name: "a"}
			},
			result: func(t *testing.T, result payload.Payload, err error) {
				require.Nil(t, result)
				require.EqualError(t, err, "boom")
			},
		},
		{
			name: "panic",
			setup: func(t *testing.T, r *registry.Registry) *history.TaskScheduledAttributes {
				a := func(ctx context.Context) error {
					panic("activity panic")
				}
				require.NoError(t, r.RegisterActivity(a, registry.WithName("a")))

				return &history.TaskScheduledAttributes{Name: "a"}
			},
			result: func(t *testing.T, result payload.Payload, err error) {
				require.Nil(t, result)

				var pe *orchestrationerrors.PanicError
				require.ErrorAs(t, err, &pe)
				require.Contains(t, pe.Error(), "activity panic")
				require.NotEmpty(t, pe.Stack())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := registry.New()
			attr := tt.setup(t, r)

			e := NewExecutor(slog.Default(), noop.NewTracerProvider().Tracer("test"), converter.DefaultConverter, r)

			got, err := e.ExecuteActivity(context.Background(), "instance",
				history.NewHistoryEvent(time.Now(), history.EventType_TaskScheduled, attr, history.CorrelationID(1)))
			tt.result(t, got, err)
		})
	}
}
