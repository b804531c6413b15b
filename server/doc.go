// File: server/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package server implements the 1+N reactor runtime: one acceptor loop
// owning the listening socket, and N worker loops each owning an epoll
// instance, a timer service, a wake-up pipe and a disjoint set of
// connections.
//
// Accepted sockets are handed to workers round-robin through a mutex
// guarded in-box; any thread may request a send on a worker-owned
// connection the same way. A worker is the only thread that touches its
// demultiplexer, its connection map and the read side of its sockets.
package server
