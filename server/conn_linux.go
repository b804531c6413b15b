// File: server/conn_linux.go
//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/quantfabric/netcore/api"
	"github.com/quantfabric/netcore/core/buffer"
	"github.com/quantfabric/netcore/reactor"
)

// Conn is the per-socket state object. It is created by its worker when
// the acceptor hands the socket over, mutated only on that worker's
// thread, and torn down exactly once when the worker removes it from
// its map.
//
// Send and Close marshal their work through the owning worker: they
// mutate only the send buffer and the closing flags, then enqueue a
// send request and poke the worker's wake pipe.
type Conn struct {
	fd   int
	addr string
	w    *worker

	// desc tracks the registered event mask; worker thread only.
	desc reactor.Desc

	sendMu sync.Mutex
	out    *buffer.Buffer

	closing atomic.Bool
	forced  atomic.Bool
	closed  atomic.Bool

	// readShut marks the half-closed read side during a graceful close;
	// worker thread only.
	readShut bool
}

var _ api.Conn = (*Conn)(nil)

func newConn(fd int, addr string, w *worker, bufCap int) *Conn {
	return &Conn{
		fd:   fd,
		addr: addr,
		w:    w,
		out:  buffer.New(bufCap),
	}
}

// Send buffers p and wakes the owning worker for an optimistic drain.
// Never blocks; a no-op once the connection is marked closing. All of p
// is buffered — there is no partial accept.
func (c *Conn) Send(p []byte) {
	if len(p) == 0 || c.closing.Load() {
		return
	}
	c.sendMu.Lock()
	c.out.Write(p)
	c.sendMu.Unlock()
	c.w.requestSend(c.fd)
}

// Close marks the connection closing and hands the teardown to the
// worker. force=false drains buffered bytes first (graceful close);
// force=true releases the socket without draining.
func (c *Conn) Close(force bool) {
	if c.closed.Load() {
		return
	}
	if force {
		c.forced.Store(true)
	}
	if c.closing.CompareAndSwap(false, true) || force {
		c.w.requestSend(c.fd)
	}
}

// RegisterTimer schedules fn on the owning worker thread.
func (c *Conn) RegisterTimer(interval time.Duration, fn func(), recurring bool) int64 {
	return c.w.timers.Register(interval, fn, recurring)
}

// CancelTimer cancels a timer registered through this connection.
func (c *Conn) CancelTimer(id int64) bool {
	return c.w.timers.Cancel(id)
}

// Fd returns the kernel descriptor.
func (c *Conn) Fd() int { return c.fd }

// IsClosed reports whether the socket has been released.
func (c *Conn) IsClosed() bool { return c.closed.Load() }

// RemoteAddr returns the peer address captured at accept time.
func (c *Conn) RemoteAddr() string { return c.addr }

// pending reports buffered-but-unsent bytes.
func (c *Conn) pending() int {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.out.Len()
}
