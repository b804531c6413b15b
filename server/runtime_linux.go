// File: server/runtime_linux.go
//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Runtime facade: binds the listen address, installs the handler,
// starts the 1+N loops and tears them down again.

package server

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/quantfabric/netcore/affinity"
	"github.com/quantfabric/netcore/api"
	"github.com/quantfabric/netcore/control"
)

// Runtime owns the acceptor and the workers. Typical use:
//
//	rt := server.New(server.WithWorkerCount(4))
//	rt.SetHandler(h)
//	if err := rt.Bind("127.0.0.1", 9100); err != nil { ... }
//	go rt.Run()
//	...
//	rt.Stop()
type Runtime struct {
	cfg     *Config
	log     *zap.Logger
	handler api.Handler

	acceptor *acceptor
	workers  []*worker
	stats    *control.Stats
	wg       sync.WaitGroup

	bound    atomic.Bool
	running  atomic.Bool
	stopOnce sync.Once
	stopped  chan struct{}
}

// New builds a Runtime from the default config plus options.
func New(opts ...Option) *Runtime {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	cfg.normalize()
	return &Runtime{
		cfg:     cfg,
		log:     cfg.Logger,
		stats:   control.NewStats(cfg.WorkerCount),
		stopped: make(chan struct{}),
	}
}

// SetHandler installs the handler shared by all workers. Must be called
// before Run.
func (r *Runtime) SetHandler(h api.Handler) {
	r.handler = h
}

// Bind prepares the listening socket. host is an IPv4 literal or empty
// for the wildcard address; port 0 asks the kernel for a free port,
// readable afterwards through ListenAddr.
func (r *Runtime) Bind(host string, port int) error {
	a, err := newAcceptor(r.log)
	if err != nil {
		return err
	}
	if err := a.bind(host, port); err != nil {
		a.wake.close()
		a.ep.Close()
		return err
	}
	r.acceptor = a
	r.bound.Store(true)
	return nil
}

// ListenAddr reports the bound address as "ip:port". Empty before Bind.
func (r *Runtime) ListenAddr() string {
	if r.acceptor == nil {
		return ""
	}
	return r.acceptor.addr
}

// Stats exposes the runtime connection counters.
func (r *Runtime) Stats() *control.Stats {
	return r.stats
}

// Run spawns the worker threads and runs the acceptor loop on the
// calling goroutine. It returns after Stop, once every worker has
// drained and exited and the listening socket is closed.
func (r *Runtime) Run() error {
	if !r.bound.Load() {
		return ErrNotBound
	}
	if r.handler == nil {
		return ErrNoHandler
	}
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	workers := make([]*worker, r.cfg.WorkerCount)
	for i := range workers {
		w, err := newWorker(i, r.cfg, r.handler, r.stats)
		if err != nil {
			for _, prev := range workers[:i] {
				prev.closeResources()
			}
			r.running.Store(false)
			return err
		}
		workers[i] = w
	}
	r.workers = workers
	r.acceptor.workers = workers

	for i, w := range workers {
		r.wg.Add(1)
		go func(idx int, w *worker) {
			defer r.wg.Done()
			if cpus := r.cfg.WorkerCPUs; len(cpus) > 0 {
				if unpin, err := affinity.Pin(cpus[idx%len(cpus)]); err == nil {
					defer unpin()
				} else {
					r.log.Warn("worker pinning failed",
						zap.Int("worker", idx), zap.Error(err))
				}
			}
			w.run()
		}(i, w)
	}

	r.log.Info("runtime started",
		zap.Int("workers", r.cfg.WorkerCount), zap.String("addr", r.ListenAddr()))

	r.acceptor.run()

	// Acceptor is down: nothing new can reach the worker in-boxes, so
	// the workers stop with a complete view of their sockets.
	for _, w := range workers {
		w.stop()
	}
	r.wg.Wait()
	r.acceptor.closeListener()
	r.log.Info("runtime stopped")
	close(r.stopped)
	return nil
}

// Stop signals the acceptor to exit its loop; Run then stops every
// worker. It blocks until Run has finished its teardown. Safe to call more than
// once and from any goroutine.
func (r *Runtime) Stop() {
	if !r.running.Load() {
		return
	}
	select {
	case <-r.stopped:
		return
	default:
	}
	// Only the acceptor is signalled here; Run stops the workers once
	// the acceptor has fully exited, so every socket it dispatched is
	// either registered or drained by the worker teardown.
	r.stopOnce.Do(r.acceptor.stop)
	<-r.stopped
}
