package client

// RestartPolicy determines what happens when an instance is created with the ID of a terminal instance.
type RestartPolicy int

const (
	// RestartTerminal restarts terminal instances with a new execution
	RestartTerminal RestartPolicy = iota

	// RestartNever fails with backend.ErrInstanceAlreadyExists for any existing instance
	RestartNever
)

type InstanceOptions struct {
	// InstanceID of the new instance. A random ID is generated if empty.
	InstanceID string

	RestartPolicy RestartPolicy
}
