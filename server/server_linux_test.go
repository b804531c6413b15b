// File: server/server_linux_test.go
//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// End-to-end tests against real sockets: the runtime listens on a
// kernel-chosen loopback port and plain net.Dial clients drive it.

package server

import (
	"bytes"
	"io"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/quantfabric/netcore/api"
)

// hooks adapts free functions to api.Handler.
type hooks struct {
	accepted func(api.Conn)
	message  func(api.Conn, []byte)
	closed   func(api.Conn, api.Reason, string)
}

func (h hooks) OnAccepted(c api.Conn) {
	if h.accepted != nil {
		h.accepted(c)
	}
}
func (h hooks) OnMessage(c api.Conn, data []byte) {
	if h.message != nil {
		h.message(c, data)
	}
}
func (h hooks) OnDisconnected(c api.Conn, r api.Reason, detail string) {
	if h.closed != nil {
		h.closed(c, r, detail)
	}
}

func startRuntime(t *testing.T, h api.Handler, opts ...Option) *Runtime {
	t.Helper()
	rt := New(opts...)
	rt.SetHandler(h)
	if err := rt.Bind("127.0.0.1", 0); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	go rt.Run()
	t.Cleanup(rt.Stop)
	return rt
}

func dial(t *testing.T, rt *Runtime) net.Conn {
	t.Helper()
	c, err := net.DialTimeout("tcp", rt.ListenAddr(), 2*time.Second)
	if err != nil {
		t.Fatalf("dial %s: %v", rt.ListenAddr(), err)
	}
	return c
}

// readFull reads until EOF with a deadline.
func readFull(t *testing.T, c net.Conn) []byte {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(10 * time.Second))
	data, err := io.ReadAll(c)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return data
}

func TestEcho(t *testing.T) {
	var (
		mu          sync.Mutex
		acceptCount int
		messages    []byte
		reasons     []api.Reason
	)
	disconnected := make(chan struct{})
	h := hooks{
		accepted: func(c api.Conn) {
			mu.Lock()
			acceptCount++
			mu.Unlock()
		},
		message: func(c api.Conn, data []byte) {
			mu.Lock()
			messages = append(messages, data...)
			mu.Unlock()
			c.Send(data)
		},
		closed: func(c api.Conn, r api.Reason, _ string) {
			mu.Lock()
			reasons = append(reasons, r)
			mu.Unlock()
			close(disconnected)
		},
	}
	rt := startRuntime(t, h)

	client := dial(t, rt)
	if _, err := client.Write([]byte("PING")); err != nil {
		t.Fatalf("write: %v", err)
	}
	client.(*net.TCPConn).CloseWrite()

	got := readFull(t, client)
	client.Close()
	if string(got) != "PING" {
		t.Fatalf("expected echo %q, got %q", "PING", got)
	}

	select {
	case <-disconnected:
	case <-time.After(5 * time.Second):
		t.Fatal("no disconnect callback")
	}
	mu.Lock()
	defer mu.Unlock()
	if acceptCount != 1 {
		t.Fatalf("expected 1 accept, got %d", acceptCount)
	}
	if string(messages) != "PING" {
		t.Fatalf("server saw %q", messages)
	}
	if len(reasons) != 1 ||
		(reasons[0] != api.ReasonPeerClosed && reasons[0] != api.ReasonPeerHangup) {
		t.Fatalf("unexpected disconnect reasons %v", reasons)
	}
}

func TestLargeWriteFanOut(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 1<<20)
	h := hooks{
		accepted: func(c api.Conn) {
			c.Send(payload)
			c.Close(false)
		},
	}
	rt := startRuntime(t, h)

	client := dial(t, rt)
	got := readFull(t, client)
	client.Close()
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %d bytes, want %d", len(got), len(payload))
	}
}

func TestManySmallSendsFromExternalThread(t *testing.T) {
	const sends = 100_000
	connCh := make(chan api.Conn, 1)
	h := hooks{
		accepted: func(c api.Conn) { connCh <- c },
	}
	rt := startRuntime(t, h)

	client := dial(t, rt)
	conn := <-connCh

	go func() {
		for i := 0; i < sends; i++ {
			conn.Send([]byte("x"))
		}
		conn.Close(false)
	}()

	got := readFull(t, client)
	client.Close()
	if len(got) != sends {
		t.Fatalf("expected %d bytes, got %d", sends, len(got))
	}
	for i, b := range got {
		if b != 'x' {
			t.Fatalf("byte %d corrupted: %q", i, b)
		}
	}
}

func TestRecurringTimerFireCount(t *testing.T) {
	received := make(chan []byte, 1)
	h := hooks{
		accepted: func(c api.Conn) {
			c.RegisterTimer(100*time.Millisecond, func() {
				c.Send([]byte("T"))
			}, true)
		},
	}
	rt := startRuntime(t, h)

	client := dial(t, rt)
	go func() {
		client.SetReadDeadline(time.Now().Add(5 * time.Second))
		buf := make([]byte, 64)
		var got []byte
		deadline := time.Now().Add(550 * time.Millisecond)
		for time.Now().Before(deadline) {
			client.SetReadDeadline(deadline)
			n, err := client.Read(buf)
			got = append(got, buf[:n]...)
			if err != nil {
				break
			}
		}
		received <- got
	}()

	got := <-received
	client.Close()
	// 100 ms cadence over 550 ms: nominally 5 ticks, jitter-tolerant.
	if len(got) < 3 || len(got) > 7 {
		t.Fatalf("expected ~5 timer ticks, got %d (%q)", len(got), got)
	}
	for _, b := range got {
		if b != 'T' {
			t.Fatalf("unexpected byte %q", b)
		}
	}
}

func TestGracefulCloseDrains(t *testing.T) {
	payload := bytes.Repeat([]byte{0x5C}, 1<<20)
	var (
		mu     sync.Mutex
		reason api.Reason = -1
	)
	h := hooks{
		accepted: func(c api.Conn) {
			c.Send(payload)
			c.Close(false)
		},
		closed: func(c api.Conn, r api.Reason, _ string) {
			mu.Lock()
			reason = r
			mu.Unlock()
		},
	}
	rt := startRuntime(t, h)

	client := dial(t, rt)
	got := readFull(t, client)
	client.Close()

	if len(got) != len(payload) {
		t.Fatalf("graceful close lost bytes: got %d, want %d", len(got), len(payload))
	}
	mu.Lock()
	defer mu.Unlock()
	if reason != api.ReasonNormal {
		t.Fatalf("expected normal close, got reason %v", reason)
	}
}

func TestForcedCloseStopsImmediately(t *testing.T) {
	disconnected := make(chan api.Reason, 1)
	h := hooks{
		accepted: func(c api.Conn) {
			c.Close(true)
		},
		closed: func(c api.Conn, r api.Reason, _ string) {
			disconnected <- r
		},
	}
	rt := startRuntime(t, h)

	client := dial(t, rt)
	select {
	case r := <-disconnected:
		if r != api.ReasonNormal {
			t.Fatalf("expected normal reason, got %v", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("forced close never tore the connection down")
	}
	// Peer observes EOF.
	got := readFull(t, client)
	client.Close()
	if len(got) != 0 {
		t.Fatalf("expected no bytes after forced close, got %d", len(got))
	}
}

func TestWorkerLoadSpread(t *testing.T) {
	const workers = 4
	const conns = 16
	h := hooks{}
	rt := startRuntime(t, h, WithWorkerCount(workers))

	clients := make([]net.Conn, 0, conns)
	defer func() {
		for _, c := range clients {
			c.Close()
		}
	}()
	for i := 0; i < conns; i++ {
		clients = append(clients, dial(t, rt))
	}

	deadline := time.Now().Add(5 * time.Second)
	for rt.Stats().Accepted() < conns && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := rt.Stats().Accepted(); got != conns {
		t.Fatalf("expected %d registered connections, got %d", conns, got)
	}
	for w, n := range rt.Stats().PerWorker() {
		if n != conns/workers {
			t.Fatalf("worker %d owns %d connections, want %d (round-robin)",
				w, n, conns/workers)
		}
	}
}

func TestLifecycleOrdering(t *testing.T) {
	type event struct {
		kind string
		fd   int
	}
	var (
		mu     sync.Mutex
		events []event
	)
	record := func(kind string, c api.Conn) {
		mu.Lock()
		events = append(events, event{kind, c.Fd()})
		mu.Unlock()
	}
	done := make(chan struct{})
	h := hooks{
		accepted: func(c api.Conn) { record("accept", c) },
		message:  func(c api.Conn, data []byte) { record("message", c) },
		closed: func(c api.Conn, r api.Reason, _ string) {
			record("close", c)
			close(done)
		},
	}
	rt := startRuntime(t, h)

	client := dial(t, rt)
	client.Write([]byte("a"))
	client.Write([]byte("b"))
	time.Sleep(50 * time.Millisecond)
	client.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("no disconnect")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) < 2 {
		t.Fatalf("too few events: %v", events)
	}
	if events[0].kind != "accept" {
		t.Fatalf("first event %q, want accept", events[0].kind)
	}
	if events[len(events)-1].kind != "close" {
		t.Fatalf("last event %q, want close", events[len(events)-1].kind)
	}
	for _, e := range events[1 : len(events)-1] {
		if e.kind != "message" {
			t.Fatalf("out-of-order event %q in %v", e.kind, events)
		}
	}
}

func TestStopDisconnectsLiveConnections(t *testing.T) {
	reasons := make(chan api.Reason, 4)
	h := hooks{
		closed: func(c api.Conn, r api.Reason, _ string) { reasons <- r },
	}
	rt := New()
	rt.SetHandler(h)
	if err := rt.Bind("127.0.0.1", 0); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	go rt.Run()

	client := dial(t, rt)
	defer client.Close()

	deadline := time.Now().Add(5 * time.Second)
	for rt.Stats().Active() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	rt.Stop()

	select {
	case r := <-reasons:
		if r != api.ReasonStopping {
			t.Fatalf("expected runtime_stopping, got %v", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("live connection never got its final callback")
	}
}

func TestRunPreconditions(t *testing.T) {
	rt := New()
	if err := rt.Run(); err != ErrNotBound {
		t.Fatalf("expected ErrNotBound, got %v", err)
	}
	if err := rt.Bind("127.0.0.1", 0); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := rt.Run(); err != ErrNoHandler {
		t.Fatalf("expected ErrNoHandler, got %v", err)
	}
}

func TestBindRejectsBadAddress(t *testing.T) {
	rt := New()
	rt.SetHandler(hooks{})
	if err := rt.Bind("not-an-ip", 0); err == nil {
		t.Fatal("expected bind error for junk address")
	}
}

func countFDs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Fatalf("read /proc/self/fd: %v", err)
	}
	return len(entries)
}

func runEchoCycle(t *testing.T) {
	t.Helper()
	h := hooks{
		message: func(c api.Conn, data []byte) { c.Send(data) },
	}
	rt := New()
	rt.SetHandler(h)
	if err := rt.Bind("127.0.0.1", 0); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	go rt.Run()

	for i := 0; i < 3; i++ {
		client := dial(t, rt)
		client.Write([]byte("ping"))
		buf := make([]byte, 4)
		client.SetReadDeadline(time.Now().Add(5 * time.Second))
		if _, err := io.ReadFull(client, buf); err != nil {
			t.Fatalf("echo read: %v", err)
		}
		client.Close()
	}
	rt.Stop()
}

func TestNoDescriptorLeak(t *testing.T) {
	// Warm-up settles lazily created runtime descriptors (netpoller).
	runEchoCycle(t)

	before := countFDs(t)
	runEchoCycle(t)
	after := countFDs(t)
	if after != before {
		t.Fatalf("descriptor count drifted: %d before, %d after", before, after)
	}
}

func TestSendAfterCloseIsNoOp(t *testing.T) {
	connCh := make(chan api.Conn, 1)
	h := hooks{
		accepted: func(c api.Conn) { connCh <- c },
	}
	rt := startRuntime(t, h)

	client := dial(t, rt)
	conn := <-connCh
	conn.Close(true)
	conn.Send([]byte("late")) // must not arrive, must not panic

	got := readFull(t, client)
	client.Close()
	if len(got) != 0 {
		t.Fatalf("send after close leaked %d bytes", len(got))
	}
}
