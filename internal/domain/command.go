package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownCommand = errors.New("unknown command")

// Command is a single-byte code understood by the robot firmware.
type Command byte

const (
	CommandStart Command = 'S'
	CommandStop  Command = 'X'
)

func (c Command) Payload() []byte {
	return []byte{byte(c)}
}

func (c Command) String() string {
	switch c {
	case CommandStart:
		return "start"
	case CommandStop:
		return "stop"
	default:
		return fmt.Sprintf("0x%02x", byte(c))
	}
}

// ParseCommand maps a user-facing intent name to its command code.
func ParseCommand(name string) (Command, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "start":
		return CommandStart, nil
	case "stop":
		return CommandStop, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
}
