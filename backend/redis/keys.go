package redis

import (
	"strings"

	"github.com/cschleiden/go-orchestrations/core"
)

type keys struct {
	// Ends with ':' if not empty
	prefix string
}

func newKeys(prefix string) *keys {
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}

	return &keys{prefix: prefix}
}

// instanceKey holds the JSON encoded state of the instance
func (k *keys) instanceKey(instanceID string) string {
	return k.prefix + "instance:" + instanceID
}

// historyKey is a LIST of JSON encoded events, in sequence order
func (k *keys) historyKey(instanceID string) string {
	return k.prefix + "history:" + instanceID
}

// instancesByCreation is a ZSET of all instance IDs, scored by creation time
func (k *keys) instancesByCreation() string {
	return k.prefix + "instances-by-creation"
}

// instancesActive is a SET of the IDs of all non-terminal instances
func (k *keys) instancesActive() string {
	return k.prefix + "instances-active"
}

// instanceWorkItems is a SET of the IDs of work items referencing the instance
func (k *keys) instanceWorkItems(instanceID string) string {
	return k.prefix + "instance-work-items:" + instanceID
}

// queueKey is a ZSET of work item IDs. The score is the time an item becomes visible, for leased items
// the time the lease expires.
func (k *keys) queueKey(queue core.Queue) string {
	return k.prefix + "queue:" + string(queue)
}

// workItems is a HASH of work item ID to the JSON encoded item
func (k *keys) workItems() string {
	return k.prefix + "work-items"
}

// workItemLeases is a HASH of work item ID to the end of its current lease
func (k *keys) workItemLeases() string {
	return k.prefix + "work-item-leases"
}

// workItemDequeues is a HASH of work item ID to the number of times the item has been leased
func (k *keys) workItemDequeues() string {
	return k.prefix + "work-item-dequeues"
}
