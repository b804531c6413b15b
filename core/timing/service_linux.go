// File: core/timing/service_linux.go
//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package timing

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/btree"
	"golang.org/x/sys/unix"
)

// nextID is the process-wide timer id counter.
var nextID atomic.Int64

// record is one pending timer. Ordering is by expiration, id as tiebreak.
type record struct {
	id        int64
	interval  time.Duration
	fn        func()
	recurring bool
	when      time.Time
}

func recordLess(a, b *record) bool {
	if a.when.Equal(b.when) {
		return a.id < b.id
	}
	return a.when.Before(b.when)
}

// Service multiplexes many timers onto one kernel timerfd. The fd is
// armed one-shot at the earliest pending expiration and re-armed on
// every mutation of the front of the set.
type Service struct {
	fd int

	mu      sync.Mutex
	pending *btree.BTreeG[*record]
	byID    map[int64]*record
}

// NewService creates the timerfd (monotonic clock, nonblock, cloexec)
// and an empty timer set.
func NewService() (*Service, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC,
		unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("timerfd create: %w", err)
	}
	return &Service{
		fd:      fd,
		pending: btree.NewBTreeG[*record](recordLess),
		byID:    make(map[int64]*record),
	}, nil
}

// Fd returns the timerfd, for registration with the owning loop's
// demultiplexer.
func (s *Service) Fd() int { return s.fd }

// Register schedules fn after interval, and every interval thereafter
// when recurring. Safe from any goroutine. The returned id is
// process-unique and monotonically increasing.
func (s *Service) Register(interval time.Duration, fn func(), recurring bool) int64 {
	r := &record{
		id:        nextID.Add(1),
		interval:  interval,
		fn:        fn,
		recurring: recurring,
		when:      time.Now().Add(interval),
	}
	s.mu.Lock()
	s.pending.Set(r)
	s.byID[r.id] = r
	if front, _ := s.pending.Min(); front == r {
		s.armAt(r.when)
	}
	s.mu.Unlock()
	return r.id
}

// Cancel removes a pending timer. Returns false when the id is unknown
// or a one-shot timer already fired; a recurring timer stays pending
// between fires and can be cancelled at any point. A callback that is
// currently running is not interrupted.
func (s *Service) Cancel(id int64) bool {
	s.mu.Lock()
	r, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	wasFront := false
	if front, ok2 := s.pending.Min(); ok2 && front == r {
		wasFront = true
	}
	s.pending.Delete(r)
	delete(s.byID, id)
	if wasFront {
		if next, ok2 := s.pending.Min(); ok2 {
			s.armAt(next.when)
		} else {
			s.disarm()
		}
	}
	s.mu.Unlock()
	return true
}

// Expire drains the timerfd fire count and runs every due callback.
// Loop thread only. Recurring timers are reinserted at now+interval
// before any callback runs, so a callback cancelling its own timer sees
// consistent state.
func (s *Service) Expire() {
	s.drain()

	now := time.Now()
	var due []*record
	s.mu.Lock()
	for {
		front, ok := s.pending.Min()
		if !ok || front.when.After(now) {
			break
		}
		s.pending.Delete(front)
		due = append(due, front)
		if front.recurring {
			next := *front
			next.when = now.Add(front.interval)
			s.pending.Set(&next)
			s.byID[next.id] = &next
		} else {
			delete(s.byID, front.id)
		}
	}
	if next, ok := s.pending.Min(); ok {
		s.armAt(next.when)
	}
	s.mu.Unlock()

	for _, r := range due {
		r.fn()
	}
}

// Close releases the timerfd. Pending callbacks are dropped.
func (s *Service) Close() error {
	return unix.Close(s.fd)
}

// Len reports the number of pending timers.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Len()
}

// armAt programs the timerfd to fire once at the given wall-clock
// instant, clamped to a minimal positive delay for instants already
// past.
func (s *Service) armAt(when time.Time) {
	delta := time.Until(when)
	if delta <= 0 {
		delta = time.Microsecond
	}
	spec := unix.ItimerSpec{Value: unix.NsecToTimespec(delta.Nanoseconds())}
	_ = unix.TimerfdSettime(s.fd, 0, &spec, nil)
}

// disarm stops the timerfd; a zeroed it_value disarms per timerfd(2).
func (s *Service) disarm() {
	var spec unix.ItimerSpec
	_ = unix.TimerfdSettime(s.fd, 0, &spec, nil)
}

// drain consumes the pending fire count. The fd is edge-registered, so
// the count must be fully drained before the next wait.
func (s *Service) drain() {
	var buf [8]byte
	for {
		_, err := unix.Read(s.fd, buf[:])
		if err != nil {
			return
		}
	}
}
