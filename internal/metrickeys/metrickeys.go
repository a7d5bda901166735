package metrickeys

const (
	Prefix = "orchestrations."

	// Orchestrations
	InstanceCreated    = Prefix + "instance.created"
	InstanceFinished   = Prefix + "instance.finished"
	InstanceTerminated = Prefix + "instance.terminated"
	InstancePurged     = Prefix + "instance.purged"

	OrchestrationTaskProcessed = Prefix + "orchestration.task.processed"
	OrchestrationTaskDelay     = Prefix + "orchestration.task.time_in_queue"
	OrchestrationConflicts     = Prefix + "orchestration.conflicts"
	NonDeterminismDetected     = Prefix + "orchestration.nondeterminism"

	ExecutorCacheSize     = Prefix + "orchestration.cache.size"
	ExecutorCacheEviction = Prefix + "orchestration.cache.eviction"
	ExecutorCacheHit      = Prefix + "orchestration.cache.hit"
	ExecutorCacheMiss     = Prefix + "orchestration.cache.miss"

	// Activities
	ActivityTaskScheduled = Prefix + "activity.task.scheduled"
	ActivityTaskProcessed = Prefix + "activity.task.processed"
	ActivityTaskDelay     = Prefix + "activity.task.time_in_queue"

	// Timers
	TimerFired = Prefix + "timer.fired"

	// Events
	EventRaised = Prefix + "event.raised"
)

// Tag names
const (
	// Backend being used
	Backend = "backend"

	// Reason for evicting an entry from the executor cache
	EvictionReason = "reason"

	SubOrchestration = "suborchestration"

	ActivityName = "activity"
	EventName    = "event"
	Status       = "status"
	Queue        = "queue"
)
