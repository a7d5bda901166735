package worker

import "time"

type WorkerOptions struct {
	// Pollers is the number of goroutines dequeuing items
	Pollers int

	// MaxParallelTasks limits the number of items processed at the same time, 0 means no limit
	MaxParallelTasks int

	// HeartbeatInterval is the interval in which the lease of an item in progress is extended. 0 disables
	// heartbeats.
	HeartbeatInterval time.Duration

	// PollingInterval is the pause between polls when a queue is empty
	PollingInterval time.Duration
}

type OrchestrationWorkerOptions struct {
	WorkerOptions

	// ExecutorCacheSize is the max number of replay executors kept in memory
	ExecutorCacheSize int

	// ExecutorCacheTTL is the time an idle executor is kept in memory
	ExecutorCacheTTL time.Duration
}
