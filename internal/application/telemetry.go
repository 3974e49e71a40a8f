package application

import (
	"context"
	"iter"
	"log/slog"

	"cleanxpert/internal/domain"
)

type ChunkSource interface {
	Receive(ctx context.Context) iter.Seq[[]byte]
}

type LogAppender interface {
	AppendLine(text string) bool
}

// TelemetrySink drains the serial channel into the display log, one line
// per transport read.
type TelemetrySink struct {
	source ChunkSource
	log    LogAppender
	logger *slog.Logger
}

func NewTelemetrySink(source ChunkSource, log LogAppender, logger *slog.Logger) *TelemetrySink {
	return &TelemetrySink{source: source, log: log, logger: logger}
}

// Run returns when the channel stops producing data or ctx is cancelled.
// It never restarts.
func (t *TelemetrySink) Run(ctx context.Context) {
	t.logger.Debug("telemetry sink started")
	for chunk := range t.source.Receive(ctx) {
		text := domain.DecodeChunk(chunk)
		if text == "" {
			continue
		}
		t.logger.Debug("received data", "bytes", len(chunk))
		if !t.log.AppendLine(text) {
			break
		}
	}
	t.logger.Info("telemetry sink stopped")
}
