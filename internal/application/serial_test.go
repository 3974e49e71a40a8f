package application_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"cleanxpert/internal/application"
	"cleanxpert/internal/domain"
)

func connectedChannel(t *testing.T, conn application.Conn) (*application.SerialChannel, *fakeDialer) {
	t.Helper()
	dialer := &fakeDialer{conn: conn}
	ch := application.NewSerialChannel(testEndpoint(t), dialer, testLogger())
	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return ch, dialer
}

func TestSerialChannel_SendWhenDisconnected(t *testing.T) {
	conn := &scriptedConn{}
	dialer := &fakeDialer{conn: conn}
	ch := application.NewSerialChannel(testEndpoint(t), dialer, testLogger())

	ch.Send(domain.CommandStart.Payload())

	if dialer.dials != 0 {
		t.Errorf("dials: got %d, want 0", dialer.dials)
	}
	if n := conn.writeCount(); n != 0 {
		t.Errorf("writes: got %d, want 0", n)
	}
	if ch.State() != domain.StateDisconnected {
		t.Errorf("state: got %s, want disconnected", ch.State())
	}
}

func TestSerialChannel_SendAfterClose(t *testing.T) {
	conn := &scriptedConn{}
	ch, _ := connectedChannel(t, conn)

	ch.Close()
	ch.Send(domain.CommandStop.Payload())

	if n := conn.writeCount(); n != 0 {
		t.Errorf("writes: got %d, want 0", n)
	}
}

func TestSerialChannel_ConnectFailure(t *testing.T) {
	dialer := &fakeDialer{err: errBoom}
	ch := application.NewSerialChannel(testEndpoint(t), dialer, testLogger())

	err := ch.Connect(context.Background())
	if !errors.Is(err, domain.ErrConnectionFailure) {
		t.Fatalf("error: got %v, want ErrConnectionFailure", err)
	}
	if !errors.Is(err, errBoom) {
		t.Errorf("error should wrap the transport cause: %v", err)
	}
	if ch.State() != domain.StateDisconnected {
		t.Errorf("state: got %s, want disconnected", ch.State())
	}
}

func TestSerialChannel_ConnectIsSingleton(t *testing.T) {
	ch, dialer := connectedChannel(t, &scriptedConn{})

	if err := ch.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if dialer.dials != 1 {
		t.Errorf("dials: got %d, want 1", dialer.dials)
	}
	if ch.State() != domain.StateConnected {
		t.Errorf("state: got %s, want connected", ch.State())
	}
}

func TestSerialChannel_CloseTwice(t *testing.T) {
	conn := &scriptedConn{}
	ch, _ := connectedChannel(t, conn)

	ch.Close()
	ch.Close()

	if n := conn.closeCount(); n != 1 {
		t.Errorf("closes: got %d, want 1", n)
	}
	if ch.State() != domain.StateDisconnected {
		t.Errorf("state: got %s, want disconnected", ch.State())
	}
}

func TestSerialChannel_CloseErrorIsSwallowed(t *testing.T) {
	conn := &scriptedConn{closeErr: errBoom}
	ch, _ := connectedChannel(t, conn)

	ch.Close()
	ch.Close()

	if n := conn.closeCount(); n != 1 {
		t.Errorf("closes: got %d, want 1", n)
	}
}

func TestSerialChannel_ReadFailureClosesOnce(t *testing.T) {
	conn := &scriptedConn{reads: []readResult{{err: errBoom}}}
	ch, _ := connectedChannel(t, conn)

	for range ch.Receive(context.Background()) {
		t.Fatal("unexpected chunk")
	}

	if n := conn.closeCount(); n != 1 {
		t.Fatalf("closes after read failure: got %d, want 1", n)
	}
	if ch.State() != domain.StateDisconnected {
		t.Errorf("state: got %s, want disconnected", ch.State())
	}

	ch.Close()
	ch.Close()

	if n := conn.closeCount(); n != 1 {
		t.Errorf("closes after teardown: got %d, want 1", n)
	}
}

func TestSerialChannel_ReceiveEndsPermanently(t *testing.T) {
	conn := &scriptedConn{reads: []readResult{
		{data: "A"},
		{data: "B", err: errBoom},
		{data: "C"},
	}}
	ch, _ := connectedChannel(t, conn)

	var got []string
	for chunk := range ch.Receive(context.Background()) {
		got = append(got, string(chunk))
	}
	// Data delivered together with the error is still handed over.
	if len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("chunks: got %q, want [A B]", got)
	}

	for chunk := range ch.Receive(context.Background()) {
		t.Fatalf("chunk after failure: %q", chunk)
	}
}

func TestSerialChannel_SendFailureClosesConnection(t *testing.T) {
	conn := &scriptedConn{writeErr: errBoom}
	ch, _ := connectedChannel(t, conn)

	ch.Send(domain.CommandStart.Payload())

	if ch.State() != domain.StateDisconnected {
		t.Errorf("state: got %s, want disconnected", ch.State())
	}
	if n := conn.closeCount(); n != 1 {
		t.Errorf("closes: got %d, want 1", n)
	}
}

func TestSerialChannel_ReceiveCancellation(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	ch, _ := connectedChannel(t, local)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range ch.Receive(ctx) {
		}
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("receive did not stop after cancel")
	}

	// A read deadline interrupted the loop; the link itself stays open
	// until teardown.
	if ch.State() != domain.StateConnected {
		t.Errorf("state: got %s, want connected", ch.State())
	}
	ch.Close()
	if ch.State() != domain.StateDisconnected {
		t.Errorf("state after close: got %s, want disconnected", ch.State())
	}
}

func TestSerialChannel_ReceiveCancellationWithoutDeadline(t *testing.T) {
	conn := newBlockingConn()
	ch, _ := connectedChannel(t, conn)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range ch.Receive(ctx) {
		}
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("receive did not stop after cancel")
	}
	if ch.State() != domain.StateDisconnected {
		t.Errorf("state: got %s, want disconnected", ch.State())
	}
}

// blockingConn blocks reads until closed and has no read deadline support.
type blockingConn struct {
	closed chan struct{}
}

func newBlockingConn() *blockingConn {
	return &blockingConn{closed: make(chan struct{})}
}

func (c *blockingConn) Read(_ []byte) (int, error) {
	<-c.closed
	return 0, net.ErrClosed
}

func (c *blockingConn) Write(p []byte) (int, error) { return len(p), nil }

func (c *blockingConn) Close() error {
	close(c.closed)
	return nil
}
