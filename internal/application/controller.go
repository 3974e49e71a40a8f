package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cleanxpert/internal/domain"
)

type Status struct {
	Status     string                 `json:"status"`
	Connection domain.ConnectionState `json:"connection"`
	Address    string                 `json:"address"`
	Schedule   ScheduleState          `json:"schedule"`
}

// Controller wires the serial channel, dispatcher, telemetry sink and
// scheduler together for the lifetime of the daemon.
type Controller struct {
	adapter      AdapterChecker
	channel      *SerialChannel
	dispatcher   *Dispatcher
	display      *Display
	sink         *TelemetrySink
	scheduler    *SchedulerTrigger
	notifier     Notifier
	startupDelay time.Duration
	logger       *slog.Logger
}

type ControllerOptions struct {
	Adapter AdapterChecker
	Dialer  Dialer
	Alarm   AlarmClock
	// Notifier receives link problems such as a failed connection.
	Notifier Notifier
	// ScheduleNotifier receives "scheduled cleaning started" events. It
	// falls back to Notifier when nil.
	ScheduleNotifier Notifier
	MaxLogLines      int
	StartupDelay     time.Duration
}

func NewController(endpoint domain.Endpoint, opts ControllerOptions, logger *slog.Logger) *Controller {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = &NoopNotifier{}
	}
	scheduleNotifier := opts.ScheduleNotifier
	if scheduleNotifier == nil {
		scheduleNotifier = notifier
	}

	channel := NewSerialChannel(endpoint, opts.Dialer, logger.With("component", "serial"))
	dispatcher := NewDispatcher(channel, logger.With("component", "dispatcher"))
	display := NewDisplay(opts.MaxLogLines)

	return &Controller{
		adapter:      opts.Adapter,
		channel:      channel,
		dispatcher:   dispatcher,
		display:      display,
		sink:         NewTelemetrySink(channel, display, logger.With("component", "telemetry")),
		scheduler:    NewSchedulerTrigger(opts.Alarm, dispatcher, scheduleNotifier, logger.With("component", "scheduler")),
		notifier:     notifier,
		startupDelay: opts.StartupDelay,
		logger:       logger,
	}
}

func (c *Controller) Display() *Display {
	return c.display
}

// Run connects to the robot and serves until ctx is cancelled. A failed
// connection is not retried; the daemon keeps running disconnected. Only a
// missing Bluetooth adapter makes Run return early.
func (c *Controller) Run(ctx context.Context) error {
	go c.display.Run(ctx)

	if c.startupDelay > 0 {
		c.logger.Info("starting up", "delay", c.startupDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.startupDelay):
		}
	}

	if c.adapter != nil {
		if err := c.adapter.EnsureReady(ctx, c.channel.Endpoint()); err != nil {
			if errors.Is(err, domain.ErrBluetoothUnsupported) {
				return fmt.Errorf("checking adapter: %w", err)
			}
			c.logger.Warn("adapter not ready", "error", err)
		}
	}

	if err := c.channel.Connect(ctx); err != nil {
		c.logger.Error("connection failed", "error", err)
		c.display.SetStatus(domain.StatusDisconnected)
		c.notify(ctx, domain.StatusDisconnected)
	} else {
		c.display.SetStatus(domain.StatusConnected)
	}

	sinkCtx, cancelSink := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.sink.Run(sinkCtx)
	}()

	<-ctx.Done()

	c.logger.Info("tearing down")
	c.scheduler.Disarm()
	cancelSink()
	c.channel.Close()
	wg.Wait()

	return ctx.Err()
}

func (c *Controller) Start() {
	c.dispatcher.Start()
}

func (c *Controller) Stop() {
	c.dispatcher.Stop()
}

func (c *Controller) Schedule(entry domain.ScheduleEntry) time.Time {
	return c.scheduler.Arm(entry)
}

func (c *Controller) Unschedule() bool {
	return c.scheduler.Disarm()
}

func (c *Controller) Status(ctx context.Context) (Status, error) {
	snap, err := c.display.Snapshot(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("reading display: %w", err)
	}
	return Status{
		Status:     snap.Status,
		Connection: c.channel.State(),
		Address:    c.channel.Endpoint().Address(),
		Schedule:   c.scheduler.State(),
	}, nil
}

func (c *Controller) Log(ctx context.Context) ([]domain.LogLine, error) {
	snap, err := c.display.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading display: %w", err)
	}
	return snap.Lines, nil
}

func (c *Controller) Watch(l DisplayListener) func() {
	return c.display.Watch(l)
}

func (c *Controller) notify(ctx context.Context, message string) {
	if err := c.notifier.Notify(ctx, message); err != nil {
		c.logger.Error("notifying", "error", err)
	}
}
