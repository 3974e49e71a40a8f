//go:build !portaudio
// +build !portaudio

package chime

import (
	"context"
	"fmt"
	"log/slog"
)

// Player stub when portaudio is not available
type Player struct {
	logger *slog.Logger
}

func NewPlayer(sampleRate int, volume float32, logger *slog.Logger) *Player {
	return &Player{logger: logger}
}

func (p *Player) Notify(_ context.Context, _ string) error {
	return fmt.Errorf("chime not available: rebuild with -tags portaudio")
}
