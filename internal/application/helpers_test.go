package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"cleanxpert/internal/application"
	"cleanxpert/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEndpoint(t *testing.T) domain.Endpoint {
	t.Helper()
	ep, err := domain.NewEndpoint("00:22:12:01:4A:0E", domain.SerialPortServiceID, 1)
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	return ep
}

type readResult struct {
	data string
	err  error
}

// scriptedConn replays reads and records writes and closes.
type scriptedConn struct {
	mu       sync.Mutex
	reads    []readResult
	writes   [][]byte
	writeErr error
	closes   int
	closeErr error
}

func (c *scriptedConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.reads) == 0 {
		return 0, io.EOF
	}
	r := c.reads[0]
	c.reads = c.reads[1:]
	n := copy(p, r.data)
	return n, r.err
}

func (c *scriptedConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.writes = append(c.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (c *scriptedConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return c.closeErr
}

func (c *scriptedConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *scriptedConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

type fakeDialer struct {
	mu    sync.Mutex
	conn  application.Conn
	err   error
	dials int
}

func (d *fakeDialer) Name() string { return "fake" }

func (d *fakeDialer) Dial(_ context.Context, _ domain.Endpoint) (application.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

type fakeAlarm struct {
	mu     sync.Mutex
	alarms []*fakeEntry
}

type fakeEntry struct {
	at        time.Time
	fire      func()
	cancelled bool
}

func (f *fakeAlarm) ScheduleOneShot(at time.Time, fire func()) func() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := &fakeEntry{at: at, fire: fire}
	f.alarms = append(f.alarms, e)
	return func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		if e.cancelled {
			return false
		}
		e.cancelled = true
		return true
	}
}

func (f *fakeAlarm) pending() []*fakeEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*fakeEntry
	for _, e := range f.alarms {
		if !e.cancelled {
			out = append(out, e)
		}
	}
	return out
}

// fireAll runs every callback ever registered, including cancelled ones, to
// model a host alarm that was already in flight when it got replaced.
func (f *fakeAlarm) fireAll() {
	f.mu.Lock()
	alarms := append([]*fakeEntry(nil), f.alarms...)
	f.mu.Unlock()
	for _, e := range alarms {
		e.fire()
	}
}

type countingStarter struct {
	mu     sync.Mutex
	starts int
}

func (s *countingStarter) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
}

func (s *countingStarter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return n.err
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

var errBoom = errors.New("boom")

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
