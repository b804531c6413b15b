// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import "go.uber.org/zap"

// Config holds the runtime parameters, immutable once Run is called.
type Config struct {
	WorkerCount      int   // number of worker loops, >= 1
	ReadChunkSize    int   // bytes per read syscall attempt
	WriteChunkSize   int   // bytes per write syscall attempt
	InitialBufferCap int   // per-connection send buffer starting size
	WorkerCPUs       []int // optional CPU pinning, one entry per worker (wraps)

	Logger *zap.Logger
}

// DefaultConfig returns the defaults used when no option overrides them.
func DefaultConfig() *Config {
	return &Config{
		WorkerCount:      2,
		ReadChunkSize:    8192,
		WriteChunkSize:   8192,
		InitialBufferCap: 4096,
		Logger:           zap.NewNop(),
	}
}

// normalize clamps out-of-range values back to the defaults.
func (c *Config) normalize() {
	d := DefaultConfig()
	if c.WorkerCount < 1 {
		c.WorkerCount = d.WorkerCount
	}
	if c.ReadChunkSize <= 0 {
		c.ReadChunkSize = d.ReadChunkSize
	}
	if c.WriteChunkSize <= 0 {
		c.WriteChunkSize = d.WriteChunkSize
	}
	if c.InitialBufferCap <= 0 {
		c.InitialBufferCap = d.InitialBufferCap
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}
