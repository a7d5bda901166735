package redis

import (
	"github.com/cschleiden/go-orchestrations/backend"
)

type RedisOptions struct {
	*backend.Options

	// KeyPrefix is prepended to all keys, before the task hub
	KeyPrefix string
}

type RedisBackendOption func(*RedisOptions)

func WithBackendOptions(opts ...backend.BackendOption) RedisBackendOption {
	return func(o *RedisOptions) {
		for _, opt := range opts {
			opt(o.Options)
		}
	}
}

func WithKeyPrefix(keyPrefix string) RedisBackendOption {
	return func(o *RedisOptions) {
		o.KeyPrefix = keyPrefix
	}
}
