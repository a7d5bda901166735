package tracing

const (
	InstanceID        = "orchestration.instance_id"
	OrchestrationName = "orchestration.name"

	OrchestrationTaskEvents = "orchestration_task.new_events"

	ActivityName = "activity.name"
	Attempt      = "activity.attempt"

	WorkItemID   = "work_item.id"
	WorkItemKind = "work_item.kind"

	CorrelationID = "correlation_id"

	EventName = "event.name"
)
