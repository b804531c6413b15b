// File: server/acceptor_linux.go
//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Acceptor loop: owns the listening socket and dispatches accepted
// sockets round-robin to the workers. It never reads or writes
// application bytes; workers never accept.

package server

import (
	"fmt"
	"net"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/quantfabric/netcore/reactor"
)

type acceptor struct {
	log     *zap.Logger
	lfd     int
	addr    string
	ep      *reactor.Epoll
	wake    *wakePipe
	workers []*worker
	cursor  int

	running atomic.Bool
}

func newAcceptor(log *zap.Logger) (*acceptor, error) {
	ep, err := reactor.NewEpoll()
	if err != nil {
		return nil, err
	}
	wake, err := newWakePipe()
	if err != nil {
		ep.Close()
		return nil, err
	}
	a := &acceptor{
		log:  log.Named("acceptor"),
		lfd:  -1,
		ep:   ep,
		wake: wake,
	}
	if err := ep.Add(reactor.NewDesc(wake.rd, reactor.EventRead|reactor.EventET)); err != nil {
		wake.close()
		ep.Close()
		return nil, err
	}
	a.running.Store(true)
	return a, nil
}

// bind prepares the listening socket: IPv4, nonblocking, SO_REUSEADDR,
// backlog SOMAXCONN. An empty host binds the wildcard address.
func (a *acceptor) bind(host string, port int) error {
	ip := [4]byte{}
	if host != "" {
		parsed := net.ParseIP(host)
		if parsed == nil || parsed.To4() == nil {
			return fmt.Errorf("%w: %q", ErrBadAddress, host)
		}
		copy(ip[:], parsed.To4())
	}

	fd, err := unix.Socket(unix.AF_INET,
		unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("listen socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port, Addr: ip}); err != nil {
		unix.Close(fd)
		return fmt.Errorf("bind %s:%d: %w", host, port, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return fmt.Errorf("listen %s:%d: %w", host, port, err)
	}
	if err := a.ep.Add(reactor.NewDesc(fd, reactor.EventRead|reactor.EventET)); err != nil {
		unix.Close(fd)
		return err
	}

	a.lfd = fd
	a.addr = resolveListenAddr(fd, host, port)
	a.log.Info("listening", zap.String("addr", a.addr))
	return nil
}

// resolveListenAddr reads back the bound address, so port 0 requests
// report the kernel-chosen port.
func resolveListenAddr(fd int, host string, port int) string {
	sa, err := unix.Getsockname(fd)
	if err == nil {
		if in4, ok := sa.(*unix.SockaddrInet4); ok {
			return fmt.Sprintf("%s:%d", net.IP(in4.Addr[:]).String(), in4.Port)
		}
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// run blocks in the acceptor's own demultiplexer until stop.
func (a *acceptor) run() {
	ready := make([]reactor.Desc, 0, 8)
	for a.running.Load() {
		var err error
		ready, err = a.ep.Wait(-1, ready[:0])
		if err != nil {
			a.log.Error("epoll wait failed", zap.Error(err))
			break
		}
		for _, d := range ready {
			switch d.Fd() {
			case a.wake.rd:
				a.wake.drainAll()
			case a.lfd:
				a.acceptLoop()
			}
		}
	}
	a.wake.close()
	a.ep.Close()
}

// acceptLoop accepts until EAGAIN; each socket arrives nonblocking and
// cloexec via accept4 and is pushed to the next worker by round-robin.
func (a *acceptor) acceptLoop() {
	for {
		nfd, sa, err := unix.Accept4(a.lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			switch err {
			case unix.EAGAIN:
				return
			case unix.EINTR:
				continue
			default:
				a.log.Error("accept failed", zap.Error(err))
				return
			}
		}
		w := a.workers[a.cursor%len(a.workers)]
		a.cursor++
		peer := sockaddrString(sa)
		a.log.Debug("accepted",
			zap.Int("fd", nfd), zap.String("peer", peer), zap.Int("worker", w.idx))
		w.enqueueConn(accepted{fd: nfd, addr: peer})
	}
}

// stop makes run exit after its current iteration.
func (a *acceptor) stop() {
	a.running.Store(false)
	a.wake.poke()
}

// closeListener releases the listening socket. Called by the facade
// after the loop has exited.
func (a *acceptor) closeListener() {
	if a.lfd >= 0 {
		unix.Close(a.lfd)
		a.lfd = -1
	}
}

func sockaddrString(sa unix.Sockaddr) string {
	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		return fmt.Sprintf("%s:%d", net.IP(in4.Addr[:]).String(), in4.Port)
	}
	return "unknown"
}
