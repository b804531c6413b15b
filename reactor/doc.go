// File: reactor/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package reactor wraps the kernel readiness interface used by the
// acceptor and worker loops: a descriptor value type carrying the
// registered event mask, and a thin epoll demultiplexer.
//
// A demultiplexer instance belongs to exactly one loop and is not
// thread-safe. Registrations are edge-triggered wherever the caller
// sets EventET; read and write handlers are then required to loop
// until EAGAIN.
package reactor
