package mongo

// Times are stored as unix nanoseconds. BSON dates only keep milliseconds, replays have to see the exact
// timestamps the first execution saw.

type instance struct {
	TaskHub          string `bson:"task_hub"`
	InstanceID       string `bson:"instance_id"`
	Name             string `bson:"name"`
	Status           int    `bson:"status"`
	ParentInstanceID string `bson:"parent_instance_id"`
	CreatedAt        int64  `bson:"created_at"`
	CompletedAt      *int64 `bson:"completed_at"`
	Version          int64  `bson:"version"`
	State            []byte `bson:"state"`
}

type event struct {
	TaskHub       string `bson:"task_hub"`
	InstanceID    string `bson:"instance_id"`
	SequenceID    int64  `bson:"sequence_id"`
	EventID       string `bson:"event_id"`
	EventType     int    `bson:"event_type"`
	Timestamp     int64  `bson:"timestamp"`
	CorrelationID int64  `bson:"correlation_id"`
	Attributes    []byte `bson:"attributes"`
}

type workItem struct {
	ID         string `bson:"_id"`
	TaskHub    string `bson:"task_hub"`
	Queue      string `bson:"queue"`
	Kind       string `bson:"kind"`
	InstanceID string `bson:"instance_id"`
	SequenceID int64  `bson:"sequence_id"`
	VisibleAt  int64  `bson:"visible_at"`
	CreatedAt  int64  `bson:"created_at"`

	// AvailableAt is the time the item can be dequeued next: VisibleAt, or the end of the current lease
	AvailableAt  int64  `bson:"available_at"`
	LockedUntil  *int64 `bson:"locked_until"`
	DequeueCount int    `bson:"dequeue_count"`
}
