package application

import (
	"log/slog"

	"cleanxpert/internal/domain"
)

type CommandSender interface {
	Send(payload []byte)
}

// Dispatcher maps user intents to command codes. It keeps no device state.
type Dispatcher struct {
	sender CommandSender
	logger *slog.Logger
}

func NewDispatcher(sender CommandSender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, logger: logger}
}

func (d *Dispatcher) Start() {
	d.Dispatch(domain.CommandStart)
}

func (d *Dispatcher) Stop() {
	d.Dispatch(domain.CommandStop)
}

func (d *Dispatcher) Dispatch(cmd domain.Command) {
	d.logger.Info("dispatching command", "command", cmd.String())
	d.sender.Send(cmd.Payload())
}
