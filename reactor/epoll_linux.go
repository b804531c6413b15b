// File: reactor/epoll_linux.go
//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux epoll(7) demultiplexer. One instance per loop thread.

package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Event mask bits, aliased to the epoll constants so descriptors can be
// registered without translation.
const (
	EventRead  = uint32(unix.EPOLLIN)
	EventWrite = uint32(unix.EPOLLOUT)
	EventHup   = uint32(unix.EPOLLHUP)
	EventRdHup = uint32(unix.EPOLLRDHUP)
	EventErr   = uint32(unix.EPOLLERR)
	EventET    = uint32(unix.EPOLLET)
)

// Epoll is a thin wrapper over one epoll instance. Not thread-safe:
// only the owning loop may call it.
type Epoll struct {
	epfd int
	raw  []unix.EpollEvent
}

// NewEpoll creates an epoll instance (CLOEXEC).
func NewEpoll() (*Epoll, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &Epoll{
		epfd: epfd,
		raw:  make([]unix.EpollEvent, 128),
	}, nil
}

// Add registers d with the kernel.
func (e *Epoll) Add(d Desc) error {
	return e.ctl(unix.EPOLL_CTL_ADD, d)
}

// Mod re-registers d with its current event mask.
func (e *Epoll) Mod(d Desc) error {
	return e.ctl(unix.EPOLL_CTL_MOD, d)
}

// Del removes d from the kernel interest list.
func (e *Epoll) Del(d Desc) error {
	if err := unix.EpollCtl(e.epfd, unix.EPOLL_CTL_DEL, d.Fd(), nil); err != nil {
		return fmt.Errorf("epoll ctl del fd=%d: %w", d.Fd(), err)
	}
	return nil
}

func (e *Epoll) ctl(op int, d Desc) error {
	ev := unix.EpollEvent{Events: d.Events(), Fd: int32(d.Fd())}
	if err := unix.EpollCtl(e.epfd, op, d.Fd(), &ev); err != nil {
		return fmt.Errorf("epoll ctl op=%d fd=%d: %w", op, d.Fd(), err)
	}
	return nil
}

// Wait blocks up to timeoutMs (-1 = indefinitely) and appends one Desc
// per ready descriptor to out, carrying the ready-event mask. Returns
// the filled slice. EINTR is absorbed and reported as zero events.
func (e *Epoll) Wait(timeoutMs int, out []Desc) ([]Desc, error) {
	n, err := unix.EpollWait(e.epfd, e.raw, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return out, nil
		}
		return out, fmt.Errorf("epoll wait: %w", err)
	}
	for i := 0; i < n; i++ {
		out = append(out, Desc{
			fd:     int(e.raw[i].Fd),
			events: e.raw[i].Events,
		})
	}
	return out, nil
}

// Close releases the epoll descriptor.
func (e *Epoll) Close() error {
	return unix.Close(e.epfd)
}
