package backend

import "github.com/cschleiden/go-orchestrations/core"

type Stats struct {
	// ActiveInstances is the number of instances which have not reached a terminal status
	ActiveInstances int64

	// PendingWorkItems is the number of items per queue, including leased ones
	PendingWorkItems map[core.Queue]int64
}
