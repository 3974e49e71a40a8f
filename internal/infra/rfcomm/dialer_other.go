//go:build !linux

package rfcomm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cleanxpert/internal/application"
	"cleanxpert/internal/domain"
)

const DefaultConnectTimeout = 15 * time.Second

// Dialer stub for platforms without AF_BLUETOOTH sockets
type Dialer struct{}

func NewDialer(connectTimeout time.Duration, logger *slog.Logger) *Dialer {
	return &Dialer{}
}

func (d *Dialer) Name() string {
	return "rfcomm"
}

func (d *Dialer) Dial(_ context.Context, _ domain.Endpoint) (application.Conn, error) {
	return nil, fmt.Errorf("%w: RFCOMM sockets need linux, use transport tty", domain.ErrBluetoothUnsupported)
}
