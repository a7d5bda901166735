package command

import (
	"time"

	"github.com/cschleiden/go-orchestrations/backend/history"
)

//	┌───────┐
//	│Pending├
//	└───────┘
//	    ▼
//	┌─────────┐
//	│Committed│
//	└─────────┘
//	    ▼
//	  ┌────┐
//	  │Done│
//	  └────┘
type CommandState int

const (
	// CommandState_Pending is a new decision which has not been recorded in history yet
	CommandState_Pending CommandState = iota

	// CommandState_Committed is a decision recorded in history, waiting for its outcome
	CommandState_Committed

	// CommandState_Done is a decision whose outcome has been applied
	CommandState_Done
)

func (cs CommandState) String() string {
	switch cs {
	case CommandState_Pending:
		return "Pending"
	case CommandState_Committed:
		return "Committed"
	case CommandState_Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// Command is a scheduling decision made by orchestration code. Replay matches commands against the
// scheduling events already in history by correlation ID, commands without a match are new decisions.
type Command interface {
	// ID is the correlation ID of the command
	ID() int64

	Type() string

	// Name of the scheduled activity or sub-orchestration, empty for other commands
	Name() string

	// ScheduledEventType is the history event recording this decision
	ScheduledEventType() history.EventType

	// Execute returns the events for a pending command and marks it as committed. Returns nil if the command
	// is not pending.
	Execute(now time.Time) *CommandResult

	// Commit marks the command as committed, its decision is already recorded in history
	Commit()

	// Done marks the command as done. This transitions the state to done and indicates that the result
	// of this command has been applied.
	Done()

	State() CommandState
}

type CommandResult struct {
	// Completed is set when the command finishes the execution
	Completed bool

	// Events to append to the instance's history
	Events []*history.Event

	// ActivityEvents are the events in Events which require an activity work item
	ActivityEvents []*history.Event

	// TimerEvents are the events in Events which require a timer work item
	TimerEvents []*history.Event

	// ChildEvents are the events in Events which require a sub-orchestration to be started
	ChildEvents []*history.Event
}

type command struct {
	state CommandState

	id int64

	name string
}

func (c *command) ID() int64 {
	return c.id
}

func (c *command) Type() string {
	return c.name
}

func (c *command) Name() string {
	return ""
}

func (c *command) State() CommandState {
	return c.state
}

func (c *command) Commit() {
	if c.state == CommandState_Pending {
		c.state = CommandState_Committed
	}
}

func (c *command) Done() {
	c.state = CommandState_Done
}
