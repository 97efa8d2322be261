package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/memscope/internal/progress"
)

// LogSink emits structured logs for each rendered progress frame. It is
// useful when the console is not a terminal, for example under a supervisor.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs the snapshot using structured fields.
func (s *LogSink) Consume(_ context.Context, snap progress.Snapshot) error {
	fields := []zap.Field{
		zap.String("id", snap.ID),
		zap.String("action", snap.Action),
		zap.Uint64("address", snap.Address),
		zap.Uint64("pages_read", snap.Success),
		zap.Uint64("pages_failed", snap.Fail),
		zap.Int("memmap_runs", len(snap.Runs)),
		zap.Duration("elapsed", snap.Elapsed),
	}
	if !snap.Unknown() {
		fields = append(fields,
			zap.Uint64("pages_total", snap.Total),
			zap.Uint64("percent", snap.PercentTotal()))
	}
	s.logger.Info("page progress", fields...)
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
