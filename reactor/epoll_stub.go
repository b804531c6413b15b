// File: reactor/epoll_stub.go
//go:build !linux
// +build !linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub keeping the package loadable on non-Linux platforms.

package reactor

import "errors"

// ErrUnsupportedPlatform is returned by every stub entry point.
var ErrUnsupportedPlatform = errors.New("reactor: only supported on linux")

const (
	EventRead  = uint32(0x001)
	EventWrite = uint32(0x004)
	EventHup   = uint32(0x010)
	EventRdHup = uint32(0x2000)
	EventErr   = uint32(0x008)
	EventET    = uint32(1 << 31)
)

// Epoll is unavailable off Linux.
type Epoll struct{}

func NewEpoll() (*Epoll, error) { return nil, ErrUnsupportedPlatform }

func (e *Epoll) Add(Desc) error { return ErrUnsupportedPlatform }
func (e *Epoll) Mod(Desc) error { return ErrUnsupportedPlatform }
func (e *Epoll) Del(Desc) error { return ErrUnsupportedPlatform }
func (e *Epoll) Wait(int, []Desc) ([]Desc, error) {
	return nil, ErrUnsupportedPlatform
}
func (e *Epoll) Close() error { return ErrUnsupportedPlatform }
