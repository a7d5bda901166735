package mongo

import (
	"github.com/cschleiden/go-orchestrations/backend"
)

type MongoOptions struct {
	*backend.Options
}

type MongoBackendOption func(*MongoOptions)

func WithBackendOptions(opts ...backend.BackendOption) MongoBackendOption {
	return func(o *MongoOptions) {
		for _, opt := range opts {
			opt(o.Options)
		}
	}
}
