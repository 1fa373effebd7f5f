// Package transport defines the abstract capability the core consumes
// from a concrete transport stack (WebTransport, WebRTC data channels, or
// the in-tree reference transport) and the callbacks the core exposes
// back to it. The core never depends on a concrete transport
// implementation — only on this contract.
package transport

// Session is a single connected participant's transport handle. Send
// methods must tolerate being called after the session has closed
// (silent failure, no panic).
type Session interface {
	// SendDatagram sends an unreliable audio datagram. Must be safe to
	// call from the room's RT thread: non-blocking, best-effort, and
	// must never take a lock shared with a network send.
	SendDatagram(data []byte) bool

	// SendReliable sends a control message on the ordered, reliable
	// channel. May block briefly; called only from non-RT goroutines.
	SendReliable(message string) bool

	// Close closes the session.
	Close()

	// ID returns the session's unique identifier.
	ID() string

	// RemoteAddress returns the peer's address, for rate limiting and
	// logging.
	RemoteAddress() string

	// IsConnected reports whether the session is still connected.
	IsConnected() bool
}

// Callbacks are the four delivery points a transport stack invokes on the
// core. A transport stack must guarantee no other callback runs
// concurrently with OnSessionClose for a given session, and that
// OnSessionOpen happens-before any other callback for that session.
type Callbacks struct {
	OnSessionOpen  func(session Session)
	OnMessage      func(session Session, text string)
	OnDatagram     func(session Session, data []byte)
	OnSessionClose func(session Session)
}
