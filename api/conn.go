// File: api/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "time"

// Conn is the per-socket handle surfaced to application handlers.
//
// Send, Close, RegisterTimer and CancelTimer are safe to call from any
// goroutine, including from inside handler callbacks, for as long as the
// connection is live (OnDisconnected has not returned).
type Conn interface {
	// Send buffers p for transmission and wakes the owning worker.
	// It never blocks. Once the connection is marked closing the call
	// is a silent no-op.
	Send(p []byte)

	// Close marks the connection closing. With force=false any bytes
	// already buffered by Send are drained to the peer before the
	// socket is released; the read side is half-closed immediately.
	// With force=true the socket is torn down without draining.
	Close(force bool)

	// RegisterTimer schedules fn on the worker thread that owns this
	// connection, after interval and, if recurring, every interval
	// thereafter. The returned id is process-unique.
	RegisterTimer(interval time.Duration, fn func(), recurring bool) int64

	// CancelTimer cancels a timer registered through this connection.
	// Returns false if the timer is unknown or is a one-shot timer that
	// already fired.
	CancelTimer(id int64) bool

	// Fd returns the kernel descriptor. Valid until OnDisconnected returns.
	Fd() int

	// IsClosed reports whether the socket has been released.
	IsClosed() bool

	// RemoteAddr returns the peer address captured at accept time,
	// formatted as "ip:port".
	RemoteAddr() string
}
