// File: server/worker_linux.go
//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Worker loop: one epoll instance, one timer service, one wake pipe,
// and a disjoint set of connections, all owned by a single thread.

package server

import (
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/quantfabric/netcore/api"
	"github.com/quantfabric/netcore/control"
	"github.com/quantfabric/netcore/core/timing"
	"github.com/quantfabric/netcore/reactor"
)

// connEvents is the registration mask for accepted sockets: read and
// hangup only, edge-triggered. Writable interest is added per
// connection only while a graceful close drain is blocked.
const connEvents = reactor.EventRead | reactor.EventRdHup | reactor.EventET

type worker struct {
	idx     int
	cfg     *Config
	log     *zap.Logger
	handler api.Handler
	stats   *control.Stats

	ep     *reactor.Epoll
	timers *timing.Service
	wake   *wakePipe
	inbox  *inbox

	// conns and every Desc registration are mutated only on the worker
	// thread.
	conns   map[int]*Conn
	readBuf []byte

	running atomic.Bool
}

func newWorker(idx int, cfg *Config, h api.Handler, st *control.Stats) (*worker, error) {
	ep, err := reactor.NewEpoll()
	if err != nil {
		return nil, err
	}
	timers, err := timing.NewService()
	if err != nil {
		ep.Close()
		return nil, err
	}
	wake, err := newWakePipe()
	if err != nil {
		ep.Close()
		timers.Close()
		return nil, err
	}
	w := &worker{
		idx:     idx,
		cfg:     cfg,
		log:     cfg.Logger.Named("worker").With(zap.Int("worker", idx)),
		handler: h,
		stats:   st,
		ep:      ep,
		timers:  timers,
		wake:    wake,
		inbox:   newInbox(),
		conns:   make(map[int]*Conn),
		readBuf: make([]byte, cfg.ReadChunkSize),
	}
	if err := ep.Add(reactor.NewDesc(wake.rd, reactor.EventRead|reactor.EventET)); err != nil {
		w.closeResources()
		return nil, err
	}
	if err := ep.Add(reactor.NewDesc(timers.Fd(), reactor.EventRead|reactor.EventET)); err != nil {
		w.closeResources()
		return nil, err
	}
	w.running.Store(true)
	return w, nil
}

// enqueueConn hands a freshly accepted socket to this worker. Any thread.
func (w *worker) enqueueConn(a accepted) {
	w.inbox.pushConn(a)
	w.wake.poke()
}

// requestSend asks the worker to drain the send buffer of fd. Any thread.
func (w *worker) requestSend(fd int) {
	w.inbox.pushSend(fd)
	w.wake.poke()
}

// stop makes the run loop exit after its current iteration.
func (w *worker) stop() {
	w.running.Store(false)
	w.wake.poke()
}

// run is the worker loop. It blocks in epoll wait; every callback runs
// to completion between waits.
func (w *worker) run() {
	ready := make([]reactor.Desc, 0, 128)
	for w.running.Load() {
		var err error
		ready, err = w.ep.Wait(-1, ready[:0])
		if err != nil {
			w.log.Error("epoll wait failed", zap.Error(err))
			break
		}
		for _, d := range ready {
			switch d.Fd() {
			case w.wake.rd:
				w.wake.drainAll()
				w.processInbox()
			case w.timers.Fd():
				w.timers.Expire()
			default:
				w.handleConnEvent(d)
			}
		}
	}
	w.teardown()
}

// processInbox registers new sockets, then services send requests.
func (w *worker) processInbox() {
	conns, sends := w.inbox.drain()
	for _, a := range conns {
		w.registerConn(a)
	}
	for _, fd := range sends {
		if c, ok := w.conns[fd]; ok {
			w.handleSendRequest(c)
		}
	}
}

func (w *worker) registerConn(a accepted) {
	c := newConn(a.fd, a.addr, w, w.cfg.InitialBufferCap)
	c.desc = reactor.NewDesc(a.fd, connEvents)
	if err := w.ep.Add(c.desc); err != nil {
		w.log.Error("register failed", zap.Int("fd", a.fd), zap.Error(err))
		unix.Close(a.fd)
		return
	}
	w.conns[a.fd] = c
	w.stats.ConnAccepted(w.idx)
	w.log.Debug("connection registered",
		zap.Int("fd", a.fd), zap.String("peer", a.addr))
	w.handler.OnAccepted(c)
}

func (w *worker) handleConnEvent(d reactor.Desc) {
	c, ok := w.conns[d.Fd()]
	if !ok {
		return
	}
	if d.Readable() && !c.readShut {
		w.handleRead(c)
		if c.closed.Load() {
			return
		}
	}
	if d.Writable() {
		w.handleSendRequest(c)
		if c.closed.Load() {
			return
		}
	}
	if d.Hangup() {
		w.removeConn(c, api.ReasonPeerHangup, "peer hangup")
	} else if d.Events()&reactor.EventErr != 0 {
		w.removeConn(c, api.ReasonPeerClosed, "socket error")
	}
}

// handleRead loops until EAGAIN (edge-triggered registration), handing
// each kernel chunk to the handler as-is.
func (w *worker) handleRead(c *Conn) {
	for {
		n, err := unix.Read(c.fd, w.readBuf)
		if n > 0 {
			w.handler.OnMessage(c, w.readBuf[:n])
			// A callback that initiated a close ends the read loop; the
			// queued close request completes the teardown.
			if c.closed.Load() || c.closing.Load() {
				return
			}
			continue
		}
		if err == nil {
			w.removeConn(c, api.ReasonPeerClosed, "peer closed")
			return
		}
		switch err {
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return
		default:
			w.removeConn(c, api.ReasonPeerClosed, "read: "+err.Error())
			return
		}
	}
}

// handleSendRequest services one send request or writable event:
// optimistic drain, plus the close-path state transitions.
func (w *worker) handleSendRequest(c *Conn) {
	if c.forced.Load() {
		w.removeConn(c, api.ReasonNormal, "closed")
		return
	}
	closing := c.closing.Load()
	if closing && !c.readShut && c.pending() > 0 {
		w.halfCloseRead(c)
	}
	res, err := w.flush(c)
	switch res {
	case flushFatal:
		w.removeConn(c, api.ReasonWriteError, "write: "+err.Error())
	case flushBlocked:
		// Live connections rely on the next Send to retry; a closing
		// connection has no next Send, so subscribe for writability
		// until the drain completes.
		if closing && !c.desc.Writable() {
			w.modConn(c, c.desc.Events()|reactor.EventWrite)
		}
	case flushDone:
		if c.desc.Writable() {
			w.modConn(c, c.desc.Events()&^reactor.EventWrite)
		}
		if closing {
			w.removeConn(c, api.ReasonNormal, "closed")
		}
	}
}

type flushResult int

const (
	flushDone flushResult = iota
	flushBlocked
	flushFatal
)

// flush writes from the send buffer in chunks of at most WriteChunkSize
// until the buffer empties, the socket blocks, or a fatal error occurs.
func (w *worker) flush(c *Conn) (flushResult, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	for !c.out.Empty() {
		chunk := c.out.Bytes()
		if len(chunk) > w.cfg.WriteChunkSize {
			chunk = chunk[:w.cfg.WriteChunkSize]
		}
		n, err := unix.Write(c.fd, chunk)
		if n > 0 {
			c.out.Advance(n)
		}
		if err != nil {
			switch err {
			case unix.EINTR:
				continue
			case unix.EAGAIN:
				return flushBlocked, nil
			default:
				return flushFatal, err
			}
		}
	}
	return flushDone, nil
}

// halfCloseRead shuts the local read side during a graceful close: no
// further bytes are read from the peer while the drain keeps the write
// side open. Read and read-hangup interest are both dropped, because
// SHUT_RD itself raises EPOLLRDHUP and would otherwise be taken for a
// peer hangup that cuts the drain short.
func (w *worker) halfCloseRead(c *Conn) {
	c.readShut = true
	w.modConn(c, c.desc.Events()&^(reactor.EventRead|reactor.EventRdHup))
	_ = unix.Shutdown(c.fd, unix.SHUT_RD)
	w.log.Debug("read side half-closed",
		zap.Int("fd", c.fd), zap.Int("pending", c.pending()))
}

func (w *worker) modConn(c *Conn, events uint32) {
	c.desc = c.desc.WithEvents(events)
	if err := w.ep.Mod(c.desc); err != nil {
		w.log.Error("epoll mod failed", zap.Int("fd", c.fd), zap.Error(err))
	}
}

// removeConn tears a connection down exactly once: unregister, erase,
// close the descriptor, notify the handler. No core lock is held when
// OnDisconnected runs.
func (w *worker) removeConn(c *Conn, reason api.Reason, detail string) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.closing.Store(true)
	// Bytes already accepted by Send are flushed best-effort unless the
	// socket is known broken or the close was forced. Covers the common
	// respond-then-see-EOF sequence within one readable event.
	if reason != api.ReasonWriteError && !c.forced.Load() {
		w.flush(c)
	}
	if err := w.ep.Del(c.desc); err != nil {
		w.log.Error("epoll del failed", zap.Int("fd", c.fd), zap.Error(err))
	}
	delete(w.conns, c.fd)
	unix.Close(c.fd)
	w.stats.ConnClosed(w.idx)
	w.log.Debug("connection removed",
		zap.Int("fd", c.fd), zap.Stringer("reason", reason))
	w.handler.OnDisconnected(c, reason, detail)
}

// teardown runs on loop exit: sockets still in flight from the acceptor
// are closed unopened, live connections get their final callback.
func (w *worker) teardown() {
	conns, _ := w.inbox.drain()
	for _, a := range conns {
		unix.Close(a.fd)
	}
	for _, c := range w.conns {
		w.removeConn(c, api.ReasonStopping, "runtime stopping")
	}
	w.closeResources()
}

func (w *worker) closeResources() {
	w.timers.Close()
	w.ep.Close()
	w.wake.close()
}
