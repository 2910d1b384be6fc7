package feed

// Session is the push capability of one client connection. The manager
// holds non-owning references: the transport layer may release a session
// at any moment, after which Closed reports true and every registry entry
// for it is dropped on the next publish or Report.
type Session interface {
	// SessionID is a stable identity usable as a map key.
	SessionID() uint64

	// APIVersion selects the response dialect pushed to the client.
	APIVersion() uint32

	// Send pushes one JSON message. A failed send marks the session
	// dead; the manager never retries.
	Send(message []byte) error

	// Closed reports whether the owner has released the session.
	Closed() bool
}
