package application

import (
	"context"
	"io"
	"time"

	"cleanxpert/internal/domain"
)

// Conn is an open serial link to the robot.
type Conn interface {
	io.ReadWriteCloser
}

// Dialer opens a Conn to an endpoint. Dial blocks until the transport
// accepts or rejects the connection.
type Dialer interface {
	Dial(ctx context.Context, endpoint domain.Endpoint) (Conn, error)
	Name() string
}

// AdapterChecker verifies the local Bluetooth adapter before connecting.
// It returns an error wrapping domain.ErrBluetoothUnsupported when no
// adapter is available at all.
type AdapterChecker interface {
	EnsureReady(ctx context.Context, endpoint domain.Endpoint) error
}

// AlarmClock wakes the process at a wall-clock time. fire may run on any
// goroutine, including synchronously inside ScheduleOneShot for an instant
// already past. The returned cancel reports whether the alarm was stopped
// before it fired.
type AlarmClock interface {
	ScheduleOneShot(at time.Time, fire func()) (cancel func() bool)
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}
