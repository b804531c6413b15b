// File: server/inbox_linux.go
//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Worker hand-off: two mutex-guarded FIFO in-boxes plus a wake-up pipe.
// Producers enqueue, then write one byte to the pipe; the worker drains
// the pipe and moves both queues out under the lock in one critical
// section. Each push holds the lock for a single O(1) enqueue.

package server

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"
)

// accepted is a freshly accepted socket on its way to a worker.
type accepted struct {
	fd   int
	addr string
}

// inbox carries new sockets and send requests into a worker loop.
type inbox struct {
	mu       sync.Mutex
	newConns *queue.Queue // accepted
	sendReqs *queue.Queue // int fd
}

func newInbox() *inbox {
	return &inbox{
		newConns: queue.New(),
		sendReqs: queue.New(),
	}
}

func (b *inbox) pushConn(a accepted) {
	b.mu.Lock()
	b.newConns.Add(a)
	b.mu.Unlock()
}

func (b *inbox) pushSend(fd int) {
	b.mu.Lock()
	b.sendReqs.Add(fd)
	b.mu.Unlock()
}

// drain moves both queues out in one critical section.
func (b *inbox) drain() (conns []accepted, sends []int) {
	b.mu.Lock()
	for b.newConns.Length() > 0 {
		conns = append(conns, b.newConns.Remove().(accepted))
	}
	for b.sendReqs.Length() > 0 {
		sends = append(sends, b.sendReqs.Remove().(int))
	}
	b.mu.Unlock()
	return conns, sends
}

// wakePipe is the nonblocking anonymous pipe whose read end sits in a
// loop's demultiplexer. One written byte makes the loop return from
// wait promptly.
type wakePipe struct {
	rd, wr int
	done   atomic.Bool
}

func newWakePipe() (*wakePipe, error) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	return &wakePipe{rd: p[0], wr: p[1]}, nil
}

// poke signals the loop. A full pipe already guarantees a pending
// wake-up, so EAGAIN is ignored.
func (p *wakePipe) poke() {
	if p.done.Load() {
		return
	}
	var one = [1]byte{1}
	_, _ = unix.Write(p.wr, one[:])
}

// drainAll empties the read end; required under edge-triggered
// registration.
func (p *wakePipe) drainAll() {
	var buf [64]byte
	for {
		if _, err := unix.Read(p.rd, buf[:]); err != nil {
			return
		}
	}
}

func (p *wakePipe) close() {
	if !p.done.CompareAndSwap(false, true) {
		return
	}
	_ = unix.Close(p.rd)
	_ = unix.Close(p.wr)
}
