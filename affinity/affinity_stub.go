// File: affinity/affinity_stub.go
//go:build !linux
// +build !linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package affinity

import "runtime"

// Pin is a no-op off Linux; the OS thread is still locked so loop
// goroutines keep a stable thread identity.
func Pin(cpu int) (func(), error) {
	runtime.LockOSThread()
	return runtime.UnlockOSThread, nil
}

// NumCPU reports the number of logical CPUs.
func NumCPU() int { return runtime.NumCPU() }
