package core

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
)

// Queue names one of the logical work queues of a task hub.
type Queue string

var _ sql.Scanner = (*Queue)(nil)
var _ driver.Valuer = Queue("")

func (q Queue) Value() (driver.Value, error) {
	return string(q), nil
}

func (q *Queue) Scan(value any) error {
	switch v := value.(type) {
	case string:
		*q = Queue(v)
	case []byte:
		*q = Queue(v)
	default:
		return fmt.Errorf("cannot scan %T into queue", value)
	}

	return nil
}

const (
	// QueueOrchestrations holds replay triggers and sub-orchestration deliveries
	QueueOrchestrations = Queue("orchestrations")

	// QueueActivities holds activity dispatch requests
	QueueActivities = Queue("activities")

	// QueueTimers holds delayed timer messages, visible once the timer is due
	QueueTimers = Queue("timers")
)

var Queues = []Queue{QueueOrchestrations, QueueActivities, QueueTimers}
