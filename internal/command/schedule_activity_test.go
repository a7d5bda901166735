package command

import (
	"testing"
	"time"

	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/backend/payload"
	"github.com/stretchr/testify/require"
)

func TestScheduleActivityCommand_StateTransitions(t *testing.T) {
	tests := []struct {
		name string
		f    func(t *testing.T, c *ScheduleActivityCommand)
	}{
		{"Execute schedules activity", func(t *testing.T, c *ScheduleActivityCommand) {
			r := assertExecuteWithEvent(t, c, CommandState_Committed, history.EventType_TaskScheduled)

			require.Len(t, r.ActivityEvents, 1)
			require.Equal(t, int64(2), r.Events[0].CorrelationID)

			a := r.Events[0].Attributes.(*history.TaskScheduledAttributes)
			require.Equal(t, "activity", a.Name)
			require.Equal(t, 1, a.Attempt)

			assertExecuteNoEvent(t, c)
		}},
		{"Commit", func(t *testing.T, c *ScheduleActivityCommand) {
			require.Equal(t, CommandState_Pending, c.State())

			c.Commit()
			require.Equal(t, CommandState_Committed, c.State())

			assertExecuteNoEvent(t, c)
		}},
		{"Done_after_commit", func(t *testing.T, c *ScheduleActivityCommand) {
			c.Commit()

			c.Done()
			require.Equal(t, CommandState_Done, c.State())

			c.Commit()
			require.Equal(t, CommandState_Done, c.State())
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewScheduleActivityCommand(2, "activity", []payload.Payload{}, 1)
			require.Equal(t, "activity", cmd.Name())
			require.Equal(t, "ScheduleActivity", cmd.Type())

			tt.f(t, cmd)
		})
	}
}

func TestScheduleTimerCommand_Execute(t *testing.T) {
	fireAt := time.Date(2024, 1, 1, 0, 0, 10, 0, time.UTC)
	cmd := NewScheduleTimerCommand(1, fireAt)
	require.Equal(t, "", cmd.Name())

	r := assertExecuteWithEvent(t, cmd, CommandState_Committed, history.EventType_TimerCreated)
	require.Len(t, r.TimerEvents, 1)
	require.Equal(t, fireAt, r.Events[0].Attributes.(*history.TimerCreatedAttributes).FireAt)

	assertExecuteNoEvent(t, cmd)
}

func TestScheduleSubOrchestrationCommand_Execute(t *testing.T) {
	cmd := NewScheduleSubOrchestrationCommand(3, "child", "parent:3", nil)
	require.Equal(t, "child", cmd.Name())

	r := assertExecuteWithEvent(t, cmd, CommandState_Committed, history.EventType_SubOrchestrationScheduled)
	require.Len(t, r.ChildEvents, 1)
	require.Equal(t, "parent:3", r.Events[0].Attributes.(*history.SubOrchestrationScheduledAttributes).InstanceID)
}

func TestSideEffectCommand_Execute(t *testing.T) {
	cmd := NewSideEffectCommand(0, payload.Payload(`42`))

	r := assertExecuteWithEvent(t, cmd, CommandState_Done, history.EventType_SideEffectRecorded)
	require.Equal(t, payload.Payload(`42`), r.Events[0].Attributes.(*history.SideEffectRecordedAttributes).Result)
	require.False(t, r.Completed)
}
