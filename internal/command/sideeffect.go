package command

import (
	"time"

	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/backend/payload"
)

type SideEffectCommand struct {
	command

	Result payload.Payload
}

var _ Command = (*SideEffectCommand)(nil)

func NewSideEffectCommand(id int64, result payload.Payload) *SideEffectCommand {
	return &SideEffectCommand{
		command: command{
			state: CommandState_Pending,
			id:    id,
			name:  "SideEffect",
		},
		Result: result,
	}
}

func (*SideEffectCommand) ScheduledEventType() history.EventType {
	return history.EventType_SideEffectRecorded
}

// Execute records the side effect's result. The value is already available to orchestration code, so the
// command is done once recorded.
func (c *SideEffectCommand) Execute(now time.Time) *CommandResult {
	if c.state != CommandState_Pending {
		return nil
	}

	c.state = CommandState_Done

	return &CommandResult{
		Events: []*history.Event{
			history.NewHistoryEvent(
				now,
				history.EventType_SideEffectRecorded,
				&history.SideEffectRecordedAttributes{
					Result: c.Result,
				},
				history.CorrelationID(c.id),
			),
		},
	}
}
