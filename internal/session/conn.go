package session

// Writer delivers encoded envelopes to one live connection. Implementations
// wrap a real websocket in production and a capture buffer in tests.
type Writer interface {
	Write(message []byte) error
	Close() error
}

// Conn is the roster handle for one live connection. Identity is by
// pointer: the same *Conn registers, receives events, and disconnects.
type Conn struct {
	Writer Writer
}
