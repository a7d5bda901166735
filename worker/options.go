package worker

import (
	"time"
)

type OrchestrationWorkerOptions struct {
	// OrchestrationPollers is the number of pollers to start. Defaults to 2.
	OrchestrationPollers int

	// MaxParallelOrchestrationTasks determines the maximum number of concurrent orchestration tasks processed
	// by the worker. The default is 0 which is no limit.
	MaxParallelOrchestrationTasks int

	// OrchestrationHeartbeatInterval is the interval between lease extensions for orchestration tasks.
	// Defaults to 25 seconds
	OrchestrationHeartbeatInterval time.Duration

	// OrchestrationPollingInterval is the interval between polls when the queue is empty. Defaults to 200ms.
	OrchestrationPollingInterval time.Duration

	// ExecutorCacheSize is the max number of replay executors kept between tasks. Defaults to 128, 0
	// disables the cache.
	ExecutorCacheSize int

	// ExecutorCacheTTL is the time an idle executor is kept. Defaults to 10 seconds
	ExecutorCacheTTL time.Duration
}

type ActivityWorkerOptions struct {
	// ActivityPollers is the number of pollers to start. Defaults to 2.
	ActivityPollers int

	// MaxParallelActivityTasks determines the maximum number of concurrent activity tasks processed
	// by the worker. The default is 0 which is no limit.
	MaxParallelActivityTasks int

	// ActivityHeartbeatInterval is the interval between lease extensions for running activities. Defaults
	// to 25 seconds
	ActivityHeartbeatInterval time.Duration

	// ActivityPollingInterval is the interval between polls when the queue is empty. Defaults to 200ms.
	ActivityPollingInterval time.Duration
}

type TimerWorkerOptions struct {
	// TimerPollers is the number of pollers to start. Defaults to 1.
	TimerPollers int

	// TimerPollingInterval is the interval between polls when no timer is due. Defaults to 100ms.
	TimerPollingInterval time.Duration
}

type Options struct {
	OrchestrationWorkerOptions
	ActivityWorkerOptions
	TimerWorkerOptions
}

var DefaultOptions = Options{
	OrchestrationWorkerOptions: OrchestrationWorkerOptions{
		OrchestrationPollers:           2,
		OrchestrationPollingInterval:   200 * time.Millisecond,
		MaxParallelOrchestrationTasks:  0,
		OrchestrationHeartbeatInterval: 25 * time.Second,

		ExecutorCacheSize: 128,
		ExecutorCacheTTL:  time.Second * 10,
	},

	ActivityWorkerOptions: ActivityWorkerOptions{
		ActivityPollers:           2,
		ActivityPollingInterval:   200 * time.Millisecond,
		MaxParallelActivityTasks:  0,
		ActivityHeartbeatInterval: 25 * time.Second,
	},

	TimerWorkerOptions: TimerWorkerOptions{
		TimerPollers:         1,
		TimerPollingInterval: 100 * time.Millisecond,
	},
}
