// File: core/timing/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package timing provides the per-loop timer service: an ordered set of
// one-shot and recurring timers backed by a single monotonic timerfd.
//
// Register and Cancel are safe from any goroutine; Expire and Close are
// reserved for the loop thread that owns the timerfd. Callbacks run on
// that thread, in expiration order, after the internal mutex has been
// released.
package timing
