// File: reactor/descriptor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

// Desc pairs a kernel descriptor with its currently registered event
// mask. Desc is a value type compared by fd; it does not own the
// descriptor — closing the fd is the responsibility of whoever removes
// it from its loop, exactly once.
type Desc struct {
	fd     int
	events uint32
}

// NewDesc builds a descriptor wrapper for fd with the given event mask.
func NewDesc(fd int, events uint32) Desc {
	return Desc{fd: fd, events: events}
}

// Fd returns the kernel descriptor.
func (d Desc) Fd() int { return d.fd }

// Events returns the registered event mask.
func (d Desc) Events() uint32 { return d.events }

// WithEvents returns a copy of d carrying a new event mask, for use
// with Epoll.Mod re-registration.
func (d Desc) WithEvents(events uint32) Desc {
	d.events = events
	return d
}

// Readable reports whether the mask carries an input-readiness bit.
func (d Desc) Readable() bool { return d.events&EventRead != 0 }

// Writable reports whether the mask carries an output-readiness bit.
func (d Desc) Writable() bool { return d.events&EventWrite != 0 }

// Hangup reports whether the mask carries a hangup bit.
func (d Desc) Hangup() bool { return d.events&(EventHup|EventRdHup) != 0 }
