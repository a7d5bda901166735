package history

// CurrentExecution returns the events belonging to the latest execution of an instance, starting with its
// ExecutionStarted event, together with the index of that event in the full history. If the history
// contains no ExecutionStarted event, it returns (-1, nil).
func CurrentExecution(events []*Event) (int, []*Event) {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == EventType_ExecutionStarted {
			return i, events[i:]
		}
	}

	return -1, nil
}

// IsTerminal returns true for events that end an execution.
func IsTerminal(e *Event) bool {
	return e.Type == EventType_ExecutionCompleted || e.Type == EventType_ExecutionTerminated
}

// Terminated returns true if the given execution contains an event that ends it.
func Terminated(execution []*Event) bool {
	for _, e := range execution {
		if IsTerminal(e) {
			return true
		}
	}

	return false
}

// EventBySequenceID returns the event with the given sequence ID, or nil.
func EventBySequenceID(events []*Event, sequenceID int64) *Event {
	idx := int(sequenceID) - 1
	if idx < 0 || idx >= len(events) {
		return nil
	}

	return events[idx]
}

// HasEvent returns true if the execution contains an event of one of the given types for the given
// correlation ID.
func HasEvent(execution []*Event, correlationID int64, types ...EventType) bool {
	for _, e := range execution {
		if e.CorrelationID != correlationID {
			continue
		}

		for _, t := range types {
			if e.Type == t {
				return true
			}
		}
	}

	return false
}
