//go:build linux

// Package rfcomm opens Bluetooth serial (SPP) links with AF_BLUETOOTH
// stream sockets.
package rfcomm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"cleanxpert/internal/application"
	"cleanxpert/internal/domain"
)

const DefaultConnectTimeout = 15 * time.Second

type Dialer struct {
	connectTimeout time.Duration
	logger         *slog.Logger
}

func NewDialer(connectTimeout time.Duration, logger *slog.Logger) *Dialer {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	return &Dialer{connectTimeout: connectTimeout, logger: logger}
}

func (d *Dialer) Name() string {
	return "rfcomm"
}

const pollInterval = 100 * time.Millisecond

// Dial blocks until the remote device accepts or rejects the connection,
// ctx ends, or the connect timeout (bounded by ctx's deadline) elapses. The
// returned file is registered with the runtime poller so reads honour
// deadlines.
func (d *Dialer) Dial(ctx context.Context, endpoint domain.Endpoint) (application.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, fmt.Errorf("creating RFCOMM socket: %w", err)
	}

	deadline := time.Now().Add(d.connectTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	sa := &unix.SockaddrRFCOMM{
		Addr:    bdaddr(endpoint.HardwareAddr()),
		Channel: endpoint.Channel(),
	}

	d.logger.Debug("connecting RFCOMM socket",
		"address", endpoint.Address(),
		"channel", endpoint.Channel(),
		"timeout", time.Until(deadline),
	)

	if err := connect(ctx, fd, sa, deadline); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("connecting to %s channel %d: %w", endpoint.Address(), endpoint.Channel(), err)
	}

	return os.NewFile(uintptr(fd), "rfcomm:"+endpoint.Address()), nil
}

func connect(ctx context.Context, fd int, sa unix.Sockaddr, deadline time.Time) error {
	err := unix.Connect(fd, sa)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EINPROGRESS) {
		return err
	}

	if err := waitWritable(ctx, fd, deadline); err != nil {
		return err
	}
	soErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return fmt.Errorf("reading connect result: %w", err)
	}
	if soErr != 0 {
		return unix.Errno(soErr)
	}
	return nil
}

// waitWritable polls fd until it becomes writable or fails. ctx is checked
// between polls.
func waitWritable(ctx context.Context, fd int, deadline time.Time) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return unix.ETIMEDOUT
		}

		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		n, err := unix.Poll(fds, int(min(remaining, pollInterval).Milliseconds()))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("polling socket: %w", err)
		}
		if n > 0 && fds[0].Revents&(unix.POLLOUT|unix.POLLERR|unix.POLLHUP) != 0 {
			return nil
		}
	}
}

// bdaddr converts an address in transmission order to the little-endian
// layout the kernel expects.
func bdaddr(addr [6]byte) [6]uint8 {
	var out [6]uint8
	for i := range addr {
		out[i] = addr[len(addr)-1-i]
	}
	return out
}
