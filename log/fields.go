package log

const (
	NamespaceKey = "orchestrations"

	ActivityNameKey = NamespaceKey + ".activity.name"
	InstanceIDKey   = NamespaceKey + ".instance.id"
	TaskHubKey      = NamespaceKey + ".taskhub"

	OrchestrationNameKey = NamespaceKey + ".orchestration.name"
	ParentInstanceIDKey  = NamespaceKey + ".parent.instance.id"

	EventNameKey = NamespaceKey + ".event.name"

	SeqIDKey         = NamespaceKey + ".seq_id"
	CorrelationIDKey = NamespaceKey + ".correlation_id"
	IsReplayingKey   = NamespaceKey + ".is_replaying"

	EventTypeKey = NamespaceKey + ".event.type"
	EventIDKey   = NamespaceKey + ".event.id"

	WorkItemIDKey   = NamespaceKey + ".work.id"
	WorkItemKindKey = NamespaceKey + ".work.kind"
	QueueKey        = NamespaceKey + ".work.queue"

	VersionKey          = NamespaceKey + ".history.version"
	ExpectedVersionKey  = NamespaceKey + ".history.expected_version"
	ExecutedEventsKey   = NamespaceKey + ".task.executed_events"
	NewEventsKey        = NamespaceKey + ".task.new_events"
	CompletedKey        = NamespaceKey + ".task.completed"
	StatusKey           = NamespaceKey + ".status"
	ReasonKey           = NamespaceKey + ".reason"
	RetryKey            = NamespaceKey + ".retry"
	AttemptKey          = NamespaceKey + ".attempt"
	DurationKey         = NamespaceKey + ".duration_ms"
	BackendKey          = NamespaceKey + ".backend"
	CronScheduleKey     = NamespaceKey + ".cron.schedule"
	TotalChunksKey      = NamespaceKey + ".chunks.total"
	ChunkIDKey          = NamespaceKey + ".chunks.id"
	RecordsProcessedKey = NamespaceKey + ".chunks.records_processed"

	// NowKey is the time at which a timer was scheduled
	NowKey = NamespaceKey + ".timer.now"
	// AtKey is the time at which a timer is scheduled to fire
	AtKey = NamespaceKey + ".timer.at"
)
