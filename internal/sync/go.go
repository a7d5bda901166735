package sync

// Go starts fn as a new coroutine on the scheduler running ctx's coroutine. fn starts running once the
// current coroutine yields or finishes.
func Go(ctx Context, fn func(ctx Context)) {
	cs := getCoState(ctx)

	cs.creator.NewCoroutine(ctx, func(ctx Context) error {
		fn(ctx)

		return nil
	})
}
