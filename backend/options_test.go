package backend

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cschleiden/go-orchestrations/core"
	"github.com/stretchr/testify/assert"
)

func TestWithOrchestrationLockTimeout(t *testing.T) {
	timeout := 5 * time.Minute
	opts := ApplyOptions(WithOrchestrationLockTimeout(timeout))

	assert.Equal(t, timeout, opts.OrchestrationLockTimeout)
	assert.Equal(t, timeout, opts.LeaseTimeout(core.QueueOrchestrations))
	assert.Equal(t, timeout, opts.LeaseTimeout(core.QueueTimers))
}

func TestWithActivityLockTimeout(t *testing.T) {
	timeout := 3 * time.Minute
	opts := ApplyOptions(WithActivityLockTimeout(timeout))

	assert.Equal(t, timeout, opts.ActivityLockTimeout)
	assert.Equal(t, timeout, opts.LeaseTimeout(core.QueueActivities))
}

func TestDefaultValues(t *testing.T) {
	opts := ApplyOptions()

	assert.Equal(t, time.Minute, opts.OrchestrationLockTimeout)
	assert.Equal(t, time.Minute*2, opts.ActivityLockTimeout)
	assert.Equal(t, DefaultTaskHub, opts.TaskHub)
	assert.NotNil(t, opts.Logger)
	assert.NotNil(t, opts.Clock)
}

func TestEmptyValuesFallBackToDefaults(t *testing.T) {
	opts := ApplyOptions(WithTaskHub(""), WithLogger(nil), WithClock(nil))

	assert.Equal(t, DefaultTaskHub, opts.TaskHub)
	assert.NotNil(t, opts.Logger)
	assert.NotNil(t, opts.Clock)
}

func TestWithClockAndTaskHub(t *testing.T) {
	c := clock.NewMock()
	opts := ApplyOptions(WithClock(c), WithTaskHub("hub-a"))

	assert.Same(t, c, opts.Clock)
	assert.Equal(t, "hub-a", opts.TaskHub)
}

func TestConflictError(t *testing.T) {
	var err error = &ConflictError{InstanceID: "a", ExpectedVersion: 1, ActualVersion: 2}

	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), `instance "a"`)
}
