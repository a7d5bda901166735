package command

import (
	"time"

	"github.com/cschleiden/go-orchestrations/backend/history"
)

type ScheduleTimerCommand struct {
	command

	FireAt time.Time
}

var _ Command = (*ScheduleTimerCommand)(nil)

func NewScheduleTimerCommand(id int64, fireAt time.Time) *ScheduleTimerCommand {
	return &ScheduleTimerCommand{
		command: command{
			state: CommandState_Pending,
			id:    id,
			name:  "ScheduleTimer",
		},
		FireAt: fireAt,
	}
}

func (*ScheduleTimerCommand) ScheduledEventType() history.EventType {
	return history.EventType_TimerCreated
}

func (c *ScheduleTimerCommand) Execute(now time.Time) *CommandResult {
	if c.state != CommandState_Pending {
		return nil
	}

	c.state = CommandState_Committed

	event := history.NewHistoryEvent(
		now,
		history.EventType_TimerCreated,
		&history.TimerCreatedAttributes{
			FireAt: c.FireAt,
		},
		history.CorrelationID(c.id),
	)

	return &CommandResult{
		Events:      []*history.Event{event},
		TimerEvents: []*history.Event{event},
	}
}
