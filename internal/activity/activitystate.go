package activity

import (
	"context"
	"log/slog"

	"github.com/cschleiden/go-orchestrations/log"
)

// ActivityState describes the activity call an activity function is executed for.
type ActivityState struct {
	InstanceID    string
	Name          string
	CorrelationID int64
	Attempt       int
	Logger        *slog.Logger
}

func NewActivityState(instanceID, name string, correlationID int64, attempt int, logger *slog.Logger) *ActivityState {
	return &ActivityState{
		InstanceID:    instanceID,
		Name:          name,
		CorrelationID: correlationID,
		Attempt:       attempt,
		Logger: logger.With(
			log.InstanceIDKey, instanceID,
			log.ActivityNameKey, name,
			log.CorrelationIDKey, correlationID,
			log.AttemptKey, attempt,
		),
	}
}

type key int

var activityCtxKey key

func WithActivityState(ctx context.Context, as *ActivityState) context.Context {
	return context.WithValue(ctx, activityCtxKey, as)
}

func GetActivityState(ctx context.Context) *ActivityState {
	as, ok := ctx.Value(activityCtxKey).(*ActivityState)
	if !ok {
		return nil
	}

	return as
}
