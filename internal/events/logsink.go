package events

import (
	"go.uber.org/zap"

	"github.com/mikeyg42/plantwatch/internal/report"
)

// LogSink writes every event to a zap logger.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.L().Named("events")
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(e Event) error {
	fields := []zap.Field{
		zap.String("kind", string(e.Kind)),
		zap.String("run_id", e.RunID),
	}

	switch p := e.Payload.(type) {
	case string:
		fields = append(fields, zap.String("message", p))
	case bool:
		fields = append(fields, zap.Bool("active", p))
	case []string:
		fields = append(fields, zap.Strings("triggers", p))
	case []report.Result:
		fields = append(fields, zap.Int("results", len(p)))
	}

	if e.Kind == Error {
		s.logger.Error("Monitoring event", fields...)
		return nil
	}
	s.logger.Info("Monitoring event", fields...)
	return nil
}
