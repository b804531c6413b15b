// File: control/stats_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package control

import "testing"

func TestCounters(t *testing.T) {
	s := NewStats(2)
	s.ConnAccepted(0)
	s.ConnAccepted(1)
	s.ConnAccepted(1)
	s.ConnClosed(1)

	if s.Accepted() != 3 {
		t.Fatalf("accepted = %d, want 3", s.Accepted())
	}
	if s.Active() != 2 {
		t.Fatalf("active = %d, want 2", s.Active())
	}
	if s.Closed() != 1 {
		t.Fatalf("closed = %d, want 1", s.Closed())
	}
	per := s.PerWorker()
	if per[0] != 1 || per[1] != 1 {
		t.Fatalf("per-worker gauges = %v, want [1 1]", per)
	}
}

func TestOutOfRangeWorkerIndex(t *testing.T) {
	s := NewStats(1)
	// Totals still move; the per-worker gauge is simply not tracked.
	s.ConnAccepted(5)
	s.ConnClosed(-1)
	if s.Accepted() != 1 || s.Closed() != 1 {
		t.Fatal("totals must be independent of the gauge index")
	}
}
