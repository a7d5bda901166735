package sync

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Go(t *testing.T) {
	s := NewScheduler()

	order := []string{}
	f := NewFuture[string]()

	s.NewCoroutine(Background(), func(ctx Context) error {
		Go(ctx, func(ctx Context) {
			order = append(order, "child")
			_ = f.Set("from child", nil)
		})

		order = append(order, "parent")

		v, err := f.Get(ctx)
		order = append(order, v)

		return err
	})

	require.NoError(t, s.Execute())
	require.Equal(t, []string{"parent", "child", "from child"}, order)
	require.Equal(t, 0, s.RunningCoroutines())
}

func Test_ContextValue(t *testing.T) {
	type k string

	ctx := WithValue(Background(), k("a"), 1)
	ctx = WithValue(ctx, k("b"), 2)

	require.Equal(t, 1, ctx.Value(k("a")))
	require.Equal(t, 2, ctx.Value(k("b")))
	require.Nil(t, ctx.Value(k("c")))

	require.Panics(t, func() {
		WithValue(nil, k("a"), 1)
	})
}
