package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/nimbusflow/relay/queue"
)

// Recover returns middleware that recovers from panics in the handler
// chain. Panics are converted to errors and logged with a stack trace, so a
// panicking message is retried via lease expiry instead of killing the
// executor loop.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, m *queue.Message, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("message handler panicked",
					slog.String("message_id", m.ID),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic processing message %s: %v", m.ID, r)
			}
		}()
		return next(ctx)
	}
}
