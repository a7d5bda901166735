package metrics

import (
	"time"

	"github.com/cschleiden/go-orchestrations/backend/metrics"
)

type Timer struct {
	client metrics.Client
	start  time.Time
	name   string
	tags   metrics.Tags
}

func NewTimer(client metrics.Client, name string, tags metrics.Tags) *Timer {
	return &Timer{
		client: client,
		start:  time.Now(),
		name:   name,
		tags:   tags,
	}
}

// Stop the timer and send the elapsed time as a timing metric
func (t *Timer) Stop() {
	t.client.Timing(t.name, t.tags, time.Since(t.start))
}
