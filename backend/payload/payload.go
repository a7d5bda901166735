package payload

// Payload is a serialized value, an input, result or event payload as stored in history.
type Payload []byte
