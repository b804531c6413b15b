// File: affinity/affinity_linux.go
//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pure-Go CPU pinning for loop threads via sched_setaffinity. No cgo,
// no libnuma: the runtime only needs one core per loop.

package affinity

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Pin locks the calling goroutine to its OS thread and binds that
// thread to the given CPU. Returns the unpin function; callers defer it.
func Pin(cpu int) (func(), error) {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("sched_setaffinity cpu=%d: %w", cpu, err)
	}
	return runtime.UnlockOSThread, nil
}

// NumCPU reports the number of CPUs usable by the current thread.
func NumCPU() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return runtime.NumCPU()
	}
	return set.Count()
}
