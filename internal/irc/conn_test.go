package irc

import (
	"bufio"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// acceptLines runs a one-shot server that records every line a client sends
// together with its arrival time.
type lineRecorder struct {
	mu    sync.Mutex
	lines []string
	times []time.Time
}

func (r *lineRecorder) serve(t *testing.T, ln net.Listener) {
	t.Helper()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			r.mu.Lock()
			r.lines = append(r.lines, scanner.Text())
			r.times = append(r.times, time.Now())
			r.mu.Unlock()
		}
	}()
}

func (r *lineRecorder) snapshot() ([]string, []time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...), append([]time.Time(nil), r.times...)
}

func testConn(t *testing.T, addr string) *Conn {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	return NewConn(Config{
		Username: "tester",
		Password: "secret",
		Host:     host,
		Port:     port,
	}, zap.NewNop().Sugar())
}

func TestConn_QueuedWhileDisconnected_SentInOrderUnderCooldown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	rec := &lineRecorder{}
	rec.serve(t, ln)

	c := testConn(t, ln.Addr().String())

	// Queue before any connection exists; nothing may be dropped.
	if got := c.Send("one"); got {
		t.Fatalf("Send should report disconnected")
	}
	c.Send("two")
	c.Send("three")

	c.Start()
	defer c.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for {
		lines, _ := rec.snapshot()
		if len(lines) >= 5 { // PASS, NICK, then the three queued lines
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out; got lines %v", lines)
		}
		time.Sleep(20 * time.Millisecond)
	}

	lines, times := rec.snapshot()
	if lines[0] != "PASS secret" || lines[1] != "NICK tester" {
		t.Fatalf("handshake: got %v", lines[:2])
	}
	queued := lines[2:5]
	if queued[0] != "one" || queued[1] != "two" || queued[2] != "three" {
		t.Fatalf("expected FIFO order, got %v", queued)
	}
	for i := 3; i < 5; i++ {
		if gap := times[i].Sub(times[i-1]); gap < 550*time.Millisecond {
			t.Fatalf("messages %d/%d only %v apart", i-1, i, gap)
		}
	}
}

func TestConn_LinesYieldsMarkersAndFramesPartialReads(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	serverGot := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		serverGot <- conn
	}()

	c := testConn(t, ln.Addr().String())
	c.Start()
	defer c.Stop()

	server := <-serverGot
	lines := c.Lines()

	// Two writes carrying one and a half lines, then the rest.
	if _, err := server.Write([]byte(":a PRIVMSG #mp_1 :hello\n:b PRIV")); err != nil {
		t.Fatalf("write: %v", err)
	}
	first := recvInbound(t, lines)
	if first.Marker != MarkerNone || first.Line != ":a PRIVMSG #mp_1 :hello" {
		t.Fatalf("got %+v", first)
	}

	if _, err := server.Write([]byte("MSG #mp_1 :world\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	second := recvInbound(t, lines)
	if second.Line != ":b PRIVMSG #mp_1 :world" {
		t.Fatalf("got %+v", second)
	}

	// Server hangup becomes a lifecycle marker, not an error.
	server.Close()
	marker := recvInbound(t, lines)
	if marker.Marker != MarkerDisconnected {
		t.Fatalf("expected disconnect marker, got %+v", marker)
	}
}

func recvInbound(t *testing.T, ch <-chan Inbound) Inbound {
	t.Helper()
	select {
	case in, ok := <-ch:
		if !ok {
			t.Fatalf("line channel closed unexpectedly")
		}
		return in
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for inbound item")
		return Inbound{} // unreachable
	}
}
