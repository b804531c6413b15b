// File: api/handler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Handler receives connection lifecycle callbacks. All three methods are
// invoked on the single worker thread that owns the connection, so an
// implementation needs no internal locking for per-connection state.
//
// Guarantees, per connection: OnAccepted is called exactly once and before
// any OnMessage; OnDisconnected is called exactly once and last; no
// callback runs concurrently with another for the same connection.
//
// Handlers must not block: the worker cannot service its other
// connections or timers until the callback returns.
type Handler interface {
	// OnAccepted fires after the connection is registered with its worker.
	OnAccepted(c Conn)

	// OnMessage delivers a chunk of bytes exactly as returned by the
	// kernel. data is only valid for the duration of the call; the
	// runtime imposes no framing.
	OnMessage(c Conn, data []byte)

	// OnDisconnected fires once when the connection is torn down.
	// c must not be used after this returns.
	OnDisconnected(c Conn, reason Reason, detail string)
}
