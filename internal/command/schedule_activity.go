package command

import (
	"time"

	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/backend/payload"
)

type ScheduleActivityCommand struct {
	command

	ActivityName string
	Inputs       []payload.Payload
	Attempt      int
}

var _ Command = (*ScheduleActivityCommand)(nil)

func NewScheduleActivityCommand(id int64, name string, inputs []payload.Payload, attempt int) *ScheduleActivityCommand {
	return &ScheduleActivityCommand{
		command: command{
			state: CommandState_Pending,
			id:    id,
			name:  "ScheduleActivity",
		},
		ActivityName: name,
		Inputs:       inputs,
		Attempt:      attempt,
	}
}

func (c *ScheduleActivityCommand) Name() string {
	return c.ActivityName
}

func (*ScheduleActivityCommand) ScheduledEventType() history.EventType {
	return history.EventType_TaskScheduled
}

func (c *ScheduleActivityCommand) Execute(now time.Time) *CommandResult {
	if c.state != CommandState_Pending {
		return nil
	}

	c.state = CommandState_Committed

	event := history.NewHistoryEvent(
		now,
		history.EventType_TaskScheduled,
		&history.TaskScheduledAttributes{
			Name:    c.ActivityName,
			Inputs:  c.Inputs,
			Attempt: c.Attempt,
		},
		history.CorrelationID(c.id),
	)

	return &CommandResult{
		Events:         []*history.Event{event},
		ActivityEvents: []*history.Event{event},
	}
}
