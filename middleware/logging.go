package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/nimbusflow/relay/queue"
	"github.com/nimbusflow/relay/trigger"
)

// Logging returns middleware that logs message processing start and outcome.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, m *queue.Message, next Handler) error {
		logger.Info("message received",
			slog.String("message_id", m.ID),
			slog.String("workflow_id", m.Attributes[trigger.AttrWorkflowID]),
			slog.Int("receive_count", m.ReceiveCount),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("message processing failed",
				slog.String("message_id", m.ID),
				slog.String("workflow_id", m.Attributes[trigger.AttrWorkflowID]),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("message handled",
				slog.String("message_id", m.ID),
				slog.String("workflow_id", m.Attributes[trigger.AttrWorkflowID]),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
