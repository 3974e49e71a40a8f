//go:build portaudio
// +build portaudio

package chime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 512

type Player struct {
	sampleRate int
	volume     float32
	logger     *slog.Logger
	mu         sync.Mutex
}

func NewPlayer(sampleRate int, volume float32, logger *slog.Logger) *Player {
	return &Player{sampleRate: sampleRate, volume: volume, logger: logger}
}

// Notify plays the start melody on the default output device. The message
// itself is only logged.
func (p *Player) Notify(ctx context.Context, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}
	defer portaudio.Terminate()

	buffer := make([]float32, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(p.sampleRate), len(buffer), buffer)
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	defer stream.Stop()

	p.logger.Debug("playing chime", "message", message)

	samples := synthesize(startMelody, p.sampleRate, p.volume)
	for off := 0; off < len(samples); off += len(buffer) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n := copy(buffer, samples[off:])
		clear(buffer[n:])
		if err := stream.Write(); err != nil {
			return fmt.Errorf("writing to stream: %w", err)
		}
	}
	return nil
}
