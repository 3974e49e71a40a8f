package serialport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"go.bug.st/serial"

	"cleanxpert/internal/domain"
)

// fakePort only implements Close; every other serial.Port method panics.
type fakePort struct {
	serial.Port
	closed chan struct{}
}

func (p *fakePort) Close() error {
	close(p.closed)
	return nil
}

func testDialer(open func(string, *serial.Mode) (serial.Port, error)) *Dialer {
	d := NewDialer("/dev/rfcomm0", 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	d.open = open
	return d
}

func testEndpoint(t *testing.T) domain.Endpoint {
	t.Helper()
	ep, err := domain.NewEndpoint("00:22:12:01:4A:0E", domain.SerialPortServiceID, 1)
	if err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	return ep
}

func TestDescribe_PlainError(t *testing.T) {
	got := describe(errors.New("boom"))
	if got != "boom" {
		t.Errorf("describe: got %q, want %q", got, "boom")
	}
}

func TestNewDialer_DefaultBaud(t *testing.T) {
	d := NewDialer("/dev/rfcomm0", 0, nil)
	if d.baudRate != DefaultBaudRate {
		t.Errorf("baud: got %d, want %d", d.baudRate, DefaultBaudRate)
	}
	if !strings.HasPrefix(d.path, "/dev/") {
		t.Errorf("path: got %q", d.path)
	}
	if d.Name() != "tty" {
		t.Errorf("name: got %q, want tty", d.Name())
	}
}

func TestDial_OpensWithMode(t *testing.T) {
	port := &fakePort{closed: make(chan struct{})}
	var got *serial.Mode
	d := testDialer(func(path string, mode *serial.Mode) (serial.Port, error) {
		got = mode
		return port, nil
	})

	conn, err := d.Dial(context.Background(), testEndpoint(t))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if conn != port {
		t.Errorf("conn: got %v, want the opened port", conn)
	}
	if got.BaudRate != DefaultBaudRate || got.DataBits != 8 {
		t.Errorf("mode: got %+v", got)
	}
}

func TestDial_OpenError(t *testing.T) {
	d := testDialer(func(string, *serial.Mode) (serial.Port, error) {
		return nil, errors.New("no such device")
	})

	_, err := d.Dial(context.Background(), testEndpoint(t))
	if err == nil || !strings.Contains(err.Error(), "no such device") {
		t.Errorf("Dial: got %v", err)
	}
}

func TestDial_CancelWhileOpening(t *testing.T) {
	release := make(chan struct{})
	port := &fakePort{closed: make(chan struct{})}
	d := testDialer(func(string, *serial.Mode) (serial.Port, error) {
		<-release
		return port, nil
	})

	ep := testEndpoint(t)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := d.Dial(ctx, ep)
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Dial: got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Dial ignored cancellation")
	}

	// The port that finishes opening afterwards must not leak.
	close(release)
	select {
	case <-port.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("late port was not closed")
	}
}
