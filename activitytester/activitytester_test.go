package activitytester

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cschleiden/go-orchestrations/activity"
)

func Activity(ctx context.Context, a int, b int) (int, error) {
	activity.Logger(ctx).Debug("Activity is called", "a", a)

	return a + b, nil
}

func TestActivityTester(t *testing.T) {
	ctx := WithActivityTestState(context.Background(), "Activity", "instanceID", nil)

	r, err := Activity(ctx, 35, 12)
	require.Equal(t, 47, r)
	require.NoError(t, err)

	info := activity.GetInfo(ctx)
	require.NotNil(t, info)
	require.Equal(t, "instanceID", info.InstanceID)
	require.Equal(t, "Activity", info.Name)
	require.Equal(t, 1, info.Attempt)
}
