// File: server/runtime_stub.go
//go:build !linux
// +build !linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub keeping the package loadable on non-Linux platforms.

package server

import (
	"errors"

	"github.com/quantfabric/netcore/api"
	"github.com/quantfabric/netcore/control"
)

// ErrUnsupportedPlatform is returned by every stub entry point.
var ErrUnsupportedPlatform = errors.New("server: only supported on linux")

// Runtime is unavailable off Linux.
type Runtime struct{}

func New(opts ...Option) *Runtime { return &Runtime{} }

func (r *Runtime) SetHandler(api.Handler) {}
func (r *Runtime) Bind(string, int) error { return ErrUnsupportedPlatform }
func (r *Runtime) ListenAddr() string     { return "" }
func (r *Runtime) Stats() *control.Stats  { return control.NewStats(0) }
func (r *Runtime) Run() error             { return ErrUnsupportedPlatform }
func (r *Runtime) Stop()                  {}
