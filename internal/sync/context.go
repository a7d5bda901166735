package sync

// Context carries values through orchestration code. Unlike context.Context it has no cancellation or
// deadline; orchestrations only suspend at scheduling calls and time is provided by history.
type Context interface {
	// Value returns the value associated with this context for key, or nil if no value is associated with key.
	Value(key any) any
}

type emptyCtx struct{}

func (*emptyCtx) Value(key any) any {
	return nil
}

func (*emptyCtx) String() string {
	return "sync.Background"
}

var background = new(emptyCtx)

// Background returns a non-nil, empty Context. It is the root of all orchestration contexts.
func Background() Context {
	return background
}

// WithValue returns a copy of parent in which the value associated with key is val.
func WithValue(parent Context, key, val any) Context {
	if parent == nil {
		panic("cannot create context from nil parent")
	}

	if key == nil {
		panic("nil key")
	}

	return &valueCtx{parent, key, val}
}

type valueCtx struct {
	Context
	key, val any
}

func (c *valueCtx) Value(key any) any {
	if c.key == key {
		return c.val
	}

	return c.Context.Value(key)
}
