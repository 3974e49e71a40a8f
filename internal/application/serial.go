package application

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"cleanxpert/internal/domain"
)

const defaultReadBufferSize = 1024

// SerialChannel owns the single connection to the robot.
type SerialChannel struct {
	endpoint domain.Endpoint
	dialer   Dialer
	logger   *slog.Logger
	bufSize  int

	mu    sync.Mutex
	state domain.ConnectionState
	conn  *connection
}

type connection struct {
	rw        Conn
	closeOnce sync.Once
	readEnded atomic.Bool
}

func NewSerialChannel(endpoint domain.Endpoint, dialer Dialer, logger *slog.Logger) *SerialChannel {
	return &SerialChannel{
		endpoint: endpoint,
		dialer:   dialer,
		logger:   logger,
		bufSize:  defaultReadBufferSize,
		state:    domain.StateDisconnected,
	}
}

func (c *SerialChannel) Endpoint() domain.Endpoint {
	return c.endpoint
}

func (c *SerialChannel) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the endpoint once. It is a no-op while a connection is open
// or being opened.
func (c *SerialChannel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != domain.StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = domain.StateConnecting
	c.mu.Unlock()

	c.logger.Info("connecting", "address", c.endpoint.Address(), "transport", c.dialer.Name())

	rw, err := c.dialer.Dial(ctx, c.endpoint)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.state = domain.StateDisconnected
		return fmt.Errorf("%w: %s: %w", domain.ErrConnectionFailure, c.endpoint.Address(), err)
	}
	if c.state != domain.StateConnecting {
		// Closed while dialing.
		rw.Close()
		return fmt.Errorf("%w: %s: closed while connecting", domain.ErrConnectionFailure, c.endpoint.Address())
	}

	c.conn = &connection{rw: rw}
	c.state = domain.StateConnected
	c.logger.Info("connected", "address", c.endpoint.Address())
	return nil
}

// Send writes payload if connected and silently drops it otherwise. Write
// errors are logged and close the connection.
func (c *SerialChannel) Send(payload []byte) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.logger.Debug("not connected, dropping command", "bytes", len(payload))
		return
	}

	if _, err := conn.rw.Write(payload); err != nil {
		c.logger.Error("sending command", "error", fmt.Errorf("%w: %w", domain.ErrSendFailure, err))
		c.release(conn)
	}
}

// Receive yields chunks exactly as the transport delivers them. The sequence
// ends for good on the first read failure; a new sequence only produces data
// after reconnecting. Cancelling ctx unblocks a pending read.
func (c *SerialChannel) Receive(ctx context.Context) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil || conn.readEnded.Load() {
			return
		}

		stop := context.AfterFunc(ctx, func() { c.interrupt(conn) })
		defer stop()

		buf := make([]byte, c.bufSize)
		for {
			n, err := conn.rw.Read(buf)
			if n > 0 && !conn.readEnded.Load() {
				if !yield(bytes.Clone(buf[:n])) {
					return
				}
			}
			if err != nil {
				conn.readEnded.Store(true)
				if ctx.Err() != nil {
					c.logger.Debug("receive cancelled")
					return
				}
				c.logger.Error("receiving data", "error", fmt.Errorf("%w: %w", domain.ErrReceiveEnded, err))
				c.release(conn)
				return
			}
		}
	}
}

// Close releases the connection. Safe to call any number of times.
func (c *SerialChannel) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = domain.StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		c.closeConn(conn)
	}
}

func (c *SerialChannel) interrupt(conn *connection) {
	conn.readEnded.Store(true)
	if d, ok := conn.rw.(readDeadliner); ok {
		if err := d.SetReadDeadline(time.Now()); err == nil {
			return
		}
	}
	c.release(conn)
}

func (c *SerialChannel) release(conn *connection) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.state = domain.StateDisconnected
	}
	c.mu.Unlock()

	c.closeConn(conn)
}

func (c *SerialChannel) closeConn(conn *connection) {
	conn.closeOnce.Do(func() {
		if err := conn.rw.Close(); err != nil {
			c.logger.Warn("closing connection", "error", fmt.Errorf("%w: %w", domain.ErrCloseFailure, err))
			return
		}
		c.logger.Info("connection closed", "address", c.endpoint.Address())
	})
}
