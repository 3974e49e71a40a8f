package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cleanxpert/config"
	"cleanxpert/internal/application"
	"cleanxpert/internal/infra/alarm"
	"cleanxpert/internal/infra/bluez"
	"cleanxpert/internal/infra/chime"
	"cleanxpert/internal/infra/httpapi"
	"cleanxpert/internal/infra/pushover"
	"cleanxpert/internal/infra/rfcomm"
	"cleanxpert/internal/infra/serialport"
)

// adapterChecker is the BlueZ adapter as the daemon uses it.
type adapterChecker interface {
	application.AdapterChecker
	Close() error
}

var newAdapter = func(name string, logger *slog.Logger) (adapterChecker, error) {
	return bluez.NewAdapter(name, logger)
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	err = run(ctx, cfg, logger)
	cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("controller error", "error", err)
		os.Exit(1)
	}
}

// run wires the daemon and blocks until ctx is done or the controller
// gives up. Every resource it opens is released before it returns.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	endpoint, err := cfg.Endpoint()
	if err != nil {
		return fmt.Errorf("invalid device endpoint: %w", err)
	}

	var adapter application.AdapterChecker
	if *cfg.Device.CheckAdapter {
		bz, err := newAdapter(cfg.Device.Adapter, logger.With("component", "bluez"))
		if err != nil {
			return fmt.Errorf("opening bluetooth adapter: %w", err)
		}
		defer bz.Close()
		adapter = bz
	}

	notifiers := createNotifiers(cfg, logger)
	controller := application.NewController(endpoint, application.ControllerOptions{
		Adapter:          adapter,
		Dialer:           createDialer(cfg.Device, logger),
		Alarm:            alarm.NewClock(),
		Notifier:         notifiers.link,
		ScheduleNotifier: notifiers.schedule,
		MaxLogLines:      cfg.Log.MaxLines,
		StartupDelay:     cfg.Device.StartupDelayDuration(),
	}, logger)

	server := httpapi.NewServer(cfg.HTTP.Addr, cfg.HTTP.AuthToken, controller, logger.With("component", "http"))
	if err := server.Start(); err != nil {
		return fmt.Errorf("starting HTTP server: %w", err)
	}
	defer server.Stop()

	logger.Info("starting cleanxpert controller",
		"address", endpoint.Address(),
		"transport", cfg.Device.Transport,
		"http_addr", server.Addr(),
	)

	return controller.Run(ctx)
}

func createDialer(cfg config.DeviceConfig, logger *slog.Logger) application.Dialer {
	switch cfg.Transport {
	case "tty":
		return serialport.NewDialer(cfg.TTYPath, cfg.BaudRate, logger.With("component", "tty"))
	default:
		return rfcomm.NewDialer(cfg.ConnectTimeoutDuration(), logger.With("component", "rfcomm"))
	}
}

type notifiers struct {
	link     application.Notifier
	schedule application.Notifier
}

// createNotifiers sends link problems to Pushover only; the chime joins in
// when a scheduled cleaning starts.
func createNotifiers(cfg *config.Config, logger *slog.Logger) notifiers {
	var link, schedule application.MultiNotifier
	if cfg.Pushover.Enabled {
		push := pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey)
		link = append(link, push)
		schedule = append(schedule, push)
	}
	if cfg.Chime.Enabled {
		schedule = append(schedule, chime.NewPlayer(cfg.Chime.SampleRate, cfg.Chime.Volume, logger.With("component", "chime")))
	}
	return notifiers{link: orNoop(link), schedule: orNoop(schedule)}
}

func orNoop(m application.MultiNotifier) application.Notifier {
	if len(m) == 0 {
		return &application.NoopNotifier{}
	}
	return m
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
