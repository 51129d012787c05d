package schedule

import (
	"context"

	"go.uber.org/zap"
)

// Sender delivers a due message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender simulates delivery by logging the message.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender builds a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger.Named("sender")}
}

// Send logs msg and always succeeds.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info("dispatching scheduled message",
		zap.String("id", msg.ID),
		zap.String("message", msg.Message),
		zap.Time("scheduled_date", msg.ScheduledDate))
	return nil
}
