package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_RetryOnConflict(t *testing.T) {
	t.Run("RetriesConflicts", func(t *testing.T) {
		calls := 0
		err := RetryOnConflict(context.Background(), func() error {
			calls++
			if calls < 3 {
				return &ConflictError{InstanceID: "i", ExpectedVersion: 1, ActualVersion: 2}
			}

			return nil
		})

		require.NoError(t, err)
		require.Equal(t, 3, calls)
	})

	t.Run("OtherErrorsArePermanent", func(t *testing.T) {
		boom := errors.New("boom")

		calls := 0
		err := RetryOnConflict(context.Background(), func() error {
			calls++
			return boom
		})

		require.ErrorIs(t, err, boom)
		require.Equal(t, 1, calls)
	})

	t.Run("GivesUp", func(t *testing.T) {
		calls := 0
		err := RetryOnConflict(context.Background(), func() error {
			calls++
			return ErrConflict
		})

		require.ErrorIs(t, err, ErrConflict)
		require.Equal(t, maxConflictRetries+1, calls)
	})
}
