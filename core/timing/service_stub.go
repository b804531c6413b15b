// File: core/timing/service_stub.go
//go:build !linux
// +build !linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package timing

import (
	"errors"
	"time"
)

// ErrUnsupportedPlatform is returned by every stub entry point.
var ErrUnsupportedPlatform = errors.New("timing: only supported on linux")

// Service is unavailable off Linux.
type Service struct{}

func NewService() (*Service, error) { return nil, ErrUnsupportedPlatform }

func (s *Service) Fd() int { return -1 }
func (s *Service) Register(time.Duration, func(), bool) int64 {
	return 0
}
func (s *Service) Cancel(int64) bool { return false }
func (s *Service) Expire()           {}
func (s *Service) Len() int          { return 0 }
func (s *Service) Close() error      { return ErrUnsupportedPlatform }
