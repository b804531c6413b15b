// File: server/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import "go.uber.org/zap"

// Option customizes runtime initialization.
type Option func(*Config)

// WithWorkerCount sets the number of worker loops.
func WithWorkerCount(n int) Option {
	return func(c *Config) { c.WorkerCount = n }
}

// WithReadChunkSize sets the bytes attempted per read syscall.
func WithReadChunkSize(n int) Option {
	return func(c *Config) { c.ReadChunkSize = n }
}

// WithWriteChunkSize sets the bytes attempted per write syscall.
func WithWriteChunkSize(n int) Option {
	return func(c *Config) { c.WriteChunkSize = n }
}

// WithInitialBufferCap sets the starting capacity of per-connection
// send buffers.
func WithInitialBufferCap(n int) Option {
	return func(c *Config) { c.InitialBufferCap = n }
}

// WithWorkerCPUs pins worker i to WorkerCPUs[i % len]. Empty disables
// pinning.
func WithWorkerCPUs(cpus []int) Option {
	return func(c *Config) { c.WorkerCPUs = cpus }
}

// WithLogger installs a structured logger; default is a nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) { c.Logger = l }
}
