package args

import (
	"context"
	"reflect"
	"testing"

	"github.com/cschleiden/go-orchestrations/backend/converter"
	"github.com/cschleiden/go-orchestrations/backend/payload"
	"github.com/cschleiden/go-orchestrations/internal/sync"
	"github.com/stretchr/testify/require"
)

func TestInputsToArgs(t *testing.T) {
	type args struct {
		fn     interface{}
		inputs []interface{}
	}
	tests := []struct {
		name       string
		args       args
		addContext bool
		wantErr    bool
		err        string
	}{
		{
			name: "just context",
			args: args{
				fn:     func(context.Context) error { return nil },
				inputs: []interface{}{},
			},
			addContext: true,
		},
		{
			name: "arguments with context",
			args: args{
				fn:     func(context.Context, int, string) error { return nil },
				inputs: []interface{}{42, ""},
			},
			addContext: true,
		},
		{
			name: "orchestration context",
			args: args{
				fn:     func(sync.Context, string) error { return nil },
				inputs: []interface{}{"chunk"},
			},
			addContext: true,
		},
		{
			name: "mismatched argument count - too many",
			args: args{
				fn:     func(int, string) error { return nil },
				inputs: []interface{}{42, "", 13},
			},
			wantErr: true,
			err:     "mismatched argument count: expected 2, got 3",
		},
		{
			name: "mismatched argument count - too few",
			args: args{
				fn:     func(int, string) error { return nil },
				inputs: []interface{}{42},
			},
			wantErr: true,
			err:     "mismatched argument count: expected 2, got 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inputs := make([]payload.Payload, 0)
			for _, input := range tt.args.inputs {
				p, err := converter.DefaultConverter.To(input)
				require.NoError(t, err)

				inputs = append(inputs, p)
			}

			args, addContext, err := InputsToArgs(converter.DefaultConverter, reflect.ValueOf(tt.args.fn), inputs)
			if (err != nil) != tt.wantErr {
				t.Errorf("InputsToArgs() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				require.EqualError(t, err, tt.err)
				require.Equal(t, tt.addContext, addContext)
			} else {
				if addContext {
					// Skip the first argument, it will be filled with the context later
					args = args[1:]
				}

				argValues := make([]interface{}, 0)
				for _, arg := range args {
					argValues = append(argValues, arg.Interface())
				}

				require.Equal(t, tt.args.inputs, argValues)
			}
		})
	}
}

func intReturn() (int, error) {
	return 0, nil
}

func stringReturn() (string, error) {
	return "", nil
}

func errorReturn() error {
	return nil
}

func TestReturnTypeMatch(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
		want string
	}{
		{
			name: "int match",
			fn: func() error {
				return ReturnTypeMatch[int](intReturn)
			},
			want: "",
		},
		{
			name: "string match",
			fn: func() error {
				return ReturnTypeMatch[string](stringReturn)
			},
			want: "",
		},
		{
			name: "int mismatch",
			fn: func() error {
				return ReturnTypeMatch[string](intReturn)
			},
			want: "function must return string, got int",
		},
		{
			name: "no param",
			fn: func() error {
				return ReturnTypeMatch[any](errorReturn)
			},
			want: "",
		},
		{
			name: "no param mismatch",
			fn: func() error {
				return ReturnTypeMatch[int](errorReturn)
			},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn()
			if tt.want == "" {
				require.NoError(t, got)
			} else {
				require.Error(t, got)
				require.Equal(t, tt.want, got.Error())
			}
		})
	}
}

func intParam(int) {
}

func stringParam(string) {
}

func interfaceParam(string, interface{}, int) {
}

func mixedParams(context.Context, int, string) {
}

func TestParamsMatch(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
		want string
	}{
		{
			name: "int match",
			fn: func() error {
				return ParamsMatch(intParam, 42)
			},
			want: "",
		},
		{
			name: "int mismatch",
			fn: func() error {
				return ParamsMatch(intParam, "")
			},
			want: "mismatched argument type: expected int, got string",
		},
		{
			name: "string mismatch",
			fn: func() error {
				return ParamsMatch(stringParam, 42)
			},
			want: "mismatched argument type: expected string, got int",
		},
		{
			name: "interface{} ignored",
			fn: func() error {
				return ParamsMatch(interfaceParam, "", 23, 42)
			},
			want: "",
		},
		{
			name: "mixed params",
			fn: func() error {
				return ParamsMatch(mixedParams, 42, "")
			},
			want: "",
		},
		{
			name: "context",
			fn: func() error {
				return ParamsMatch(mixedParams, 42, "", 23)
			},
			want: "mismatched argument count: expected 2, got 3",
		},
		{
			name: "mixed params - wrong params",
			fn: func() error {
				return ParamsMatch(mixedParams, "", 42)
			},
			want: "mismatched argument type: expected int, got string",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn()
			if tt.want == "" {
				require.NoError(t, got)
			} else {
				require.Error(t, got)
				require.Equal(t, tt.want, got.Error())
			}
		})
	}
}

type chunk struct {
	ChunkID     int    `json:"chunk_id"`
	Start       string `json:"start"`
	End         string `json:"end"`
	TotalChunks int    `json:"total_chunks"`
}

type window struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	TotalChunks int    `json:"total_chunks"`
}

func TestInputsToArgs_Payloads(t *testing.T) {
	tests := []struct {
		name   string
		fn     any
		inputs []any
		want   []any
	}{
		{
			name:   "struct",
			fn:     func(context.Context, chunk) error { return nil },
			inputs: []any{chunk{ChunkID: 0, Start: "a", End: "b", TotalChunks: 3}},
			want:   []any{chunk{ChunkID: 0, Start: "a", End: "b", TotalChunks: 3}},
		},
		{
			name:   "pointer",
			fn:     func(sync.Context, *window) error { return nil },
			inputs: []any{&window{Start: "a", TotalChunks: 5}},
			want:   []any{&window{Start: "a", TotalChunks: 5}},
		},
		{
			name:   "nil pointer",
			fn:     func(sync.Context, *window) error { return nil },
			inputs: []any{nil},
			want:   []any{(*window)(nil)},
		},
		{
			name:   "results",
			fn:     func(context.Context, []chunk) error { return nil },
			inputs: []any{[]chunk{{ChunkID: 0}, {ChunkID: 1}}},
			want:   []any{[]chunk{{ChunkID: 0}, {ChunkID: 1}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inputs, err := ArgsToInputs(converter.DefaultConverter, tt.inputs...)
			require.NoError(t, err)

			args, addContext, err := InputsToArgs(converter.DefaultConverter, reflect.ValueOf(tt.fn), inputs)
			require.NoError(t, err)
			require.True(t, addContext)

			got := make([]any, 0, len(args)-1)
			for _, arg := range args[1:] {
				got = append(got, arg.Interface())
			}

			require.Equal(t, tt.want, got)
		})
	}
}

func TestInputsToArgs_MismatchedPayload(t *testing.T) {
	inputs, err := ArgsToInputs(converter.DefaultConverter, "not a chunk")
	require.NoError(t, err)

	_, _, err = InputsToArgs(converter.DefaultConverter, reflect.ValueOf(func(context.Context, *window) error { return nil }), inputs)
	require.ErrorContains(t, err, "converting inputs")
}

func TestParamsMatch_Payloads(t *testing.T) {
	fn := func(context.Context, *window) {}

	require.NoError(t, ParamsMatch(fn, &window{}))
	require.NoError(t, ParamsMatch(fn, nil))
	require.EqualError(t, ParamsMatch(fn, window{}), "mismatched argument type: expected *args.window, got args.window")
}
