package command

import (
	"time"

	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/backend/payload"
)

type ScheduleSubOrchestrationCommand struct {
	command

	OrchestrationName string
	InstanceID        string
	Inputs            []payload.Payload
}

var _ Command = (*ScheduleSubOrchestrationCommand)(nil)

func NewScheduleSubOrchestrationCommand(id int64, name, instanceID string, inputs []payload.Payload) *ScheduleSubOrchestrationCommand {
	return &ScheduleSubOrchestrationCommand{
		command: command{
			state: CommandState_Pending,
			id:    id,
			name:  "ScheduleSubOrchestration",
		},
		OrchestrationName: name,
		InstanceID:        instanceID,
		Inputs:            inputs,
	}
}

func (c *ScheduleSubOrchestrationCommand) Name() string {
	return c.OrchestrationName
}

func (*ScheduleSubOrchestrationCommand) ScheduledEventType() history.EventType {
	return history.EventType_SubOrchestrationScheduled
}

func (c *ScheduleSubOrchestrationCommand) Execute(now time.Time) *CommandResult {
	if c.state != CommandState_Pending {
		return nil
	}

	c.state = CommandState_Committed

	event := history.NewHistoryEvent(
		now,
		history.EventType_SubOrchestrationScheduled,
		&history.SubOrchestrationScheduledAttributes{
			Name:       c.OrchestrationName,
			InstanceID: c.InstanceID,
			Inputs:     c.Inputs,
		},
		history.CorrelationID(c.id),
	)

	return &CommandResult{
		Events:      []*history.Event{event},
		ChildEvents: []*history.Event{event},
	}
}
