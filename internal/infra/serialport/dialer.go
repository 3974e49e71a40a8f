// Package serialport talks to the robot through a tty bound to the RFCOMM
// channel (such as /dev/rfcomm0 created with `rfcomm bind`).
package serialport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.bug.st/serial"

	"cleanxpert/internal/application"
	"cleanxpert/internal/domain"
)

const DefaultBaudRate = 9600

type Dialer struct {
	path     string
	baudRate int
	logger   *slog.Logger
	open     func(path string, mode *serial.Mode) (serial.Port, error)
}

func NewDialer(path string, baudRate int, logger *slog.Logger) *Dialer {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	return &Dialer{path: path, baudRate: baudRate, logger: logger, open: serial.Open}
}

func (d *Dialer) Name() string {
	return "tty"
}

// Dial opens the tty. Opening a bound rfcomm device triggers the Bluetooth
// connection, so this blocks until the link is up or refused. If ctx ends
// first Dial returns at once and a port that opens later is closed.
func (d *Dialer) Dial(ctx context.Context, endpoint domain.Endpoint) (application.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.logger.Debug("opening serial port", "path", d.path, "baud", d.baudRate, "address", endpoint.Address())

	type result struct {
		port serial.Port
		err  error
	}
	done := make(chan result, 1)
	go func() {
		port, err := d.open(d.path, &serial.Mode{
			BaudRate: d.baudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		done <- result{port: port, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("opening %s: %s", d.path, describe(r.err))
		}
		return r.port, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.err == nil {
				r.port.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func describe(err error) string {
	var portErr *serial.PortError
	if !errors.As(err, &portErr) {
		return err.Error()
	}
	switch portErr.Code() {
	case serial.PortNotFound:
		return "port not found (is the rfcomm device bound?)"
	case serial.PortBusy:
		return "port busy"
	case serial.PermissionDenied:
		return "permission denied"
	default:
		return portErr.EncodedErrorString()
	}
}
