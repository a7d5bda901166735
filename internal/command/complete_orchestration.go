package command

import (
	"time"

	"github.com/cschleiden/go-orchestrations/backend/history"
	"github.com/cschleiden/go-orchestrations/backend/payload"
	"github.com/cschleiden/go-orchestrations/internal/orchestrationerrors"
)

type CompleteOrchestrationCommand struct {
	command

	Result payload.Payload
	Error  *orchestrationerrors.Error
}

var _ Command = (*CompleteOrchestrationCommand)(nil)

func NewCompleteOrchestrationCommand(id int64, result payload.Payload, err *orchestrationerrors.Error) *CompleteOrchestrationCommand {
	return &CompleteOrchestrationCommand{
		command: command{
			state: CommandState_Pending,
			id:    id,
			name:  "CompleteOrchestration",
		},
		Result: result,
		Error:  err,
	}
}

func (*CompleteOrchestrationCommand) ScheduledEventType() history.EventType {
	return history.EventType_ExecutionCompleted
}

func (c *CompleteOrchestrationCommand) Execute(now time.Time) *CommandResult {
	if c.state != CommandState_Pending {
		return nil
	}

	c.state = CommandState_Done

	attrs := &history.ExecutionCompletedAttributes{
		Error: c.Error,
	}
	if c.Error == nil {
		attrs.Result = c.Result
	}

	return &CommandResult{
		Completed: true,
		Events: []*history.Event{
			history.NewHistoryEvent(now, history.EventType_ExecutionCompleted, attrs),
		},
	}
}
