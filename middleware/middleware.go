// Package middleware provides composable middleware for queue message
// processing. Middleware wraps the executor's per-message handler
// synchronously and can modify processing (recover from panics, log,
// record metrics).
package middleware

import (
	"context"

	"github.com/nimbusflow/relay/queue"
)

// Handler is the terminal function that processes a message. A nil return
// means the message was handled and will be acknowledged; an error leaves
// it on the queue for redelivery.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It receives the
// current context, the message being processed, and the next handler to
// call. Middleware MUST call next to continue the chain (unless
// short-circuiting on error).
type Middleware func(ctx context.Context, m *queue.Message, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the list is
// the outermost wrapper.
//
// Example: Chain(logging, recover) executes as:
//
//	logging → recover → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, m *queue.Message, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, m, prev)
			}
		}
		return h(ctx)
	}
}
