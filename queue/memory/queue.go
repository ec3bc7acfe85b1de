// Package memory implements queue.Queue entirely in memory.
// Safe for concurrent use. Intended for unit testing and local development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nimbusflow/relay"
	"github.com/nimbusflow/relay/id"
	"github.com/nimbusflow/relay/queue"
)

// Compile-time interface check.
var _ queue.Queue = (*Queue)(nil)

// pollTick is how often a blocked Receive re-checks for visible messages.
const pollTick = 25 * time.Millisecond

// message is the internal stored form. A message is leased (in flight) when
// visibleAt is in the future and receipt is non-empty.
type message struct {
	id           string
	body         []byte
	attrs        map[string]string
	receiveCount int
	visibleAt    time.Time
	receipt      string
}

// Option configures the Queue.
type Option func(*Queue)

// WithClock replaces the time source. Useful for lease-expiry tests.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// Queue is an in-memory visibility-timeout queue.
type Queue struct {
	mu       sync.Mutex
	messages []*message
	closed   bool
	now      func() time.Time
}

// New returns a new empty Queue.
func New(opts ...Option) *Queue {
	q := &Queue{now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Send enqueues a message body with attributes.
func (q *Queue) Send(_ context.Context, body []byte, attrs map[string]string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return relay.ErrQueueClosed
	}

	b := make([]byte, len(body))
	copy(b, body)
	a := make(map[string]string, len(attrs))
	for k, v := range attrs {
		a[k] = v
	}

	q.messages = append(q.messages, &message{
		id:        id.NewMessageID().String(),
		body:      b,
		attrs:     a,
		visibleAt: q.now(),
	})
	return nil
}

// Receive long-polls for visible messages, leasing each for the visibility
// timeout. It returns early as soon as at least one message is available.
func (q *Queue) Receive(ctx context.Context, opts queue.ReceiveOptions) ([]*queue.Message, error) {
	opts = opts.Normalize()
	// The poll deadline always uses wall time: an injected clock controls
	// message visibility, not how long Receive blocks.
	deadline := time.Now().Add(opts.WaitTime)

	for {
		batch, err := q.claim(opts.MaxMessages, opts.VisibilityTimeout)
		if err != nil {
			return nil, err
		}
		if len(batch) > 0 {
			return batch, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		wait := pollTick
		if remaining < wait {
			wait = remaining
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// claim leases up to max visible messages.
func (q *Queue) claim(max int, visibility time.Duration) ([]*queue.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, relay.ErrQueueClosed
	}

	now := q.now()
	var batch []*queue.Message
	for _, m := range q.messages {
		if len(batch) >= max {
			break
		}
		if m.visibleAt.After(now) {
			continue
		}

		m.receiveCount++
		m.visibleAt = now.Add(visibility)
		m.receipt = id.NewDeliveryID().String()

		body := make([]byte, len(m.body))
		copy(body, m.body)
		attrs := make(map[string]string, len(m.attrs))
		for k, v := range m.attrs {
			attrs[k] = v
		}
		batch = append(batch, &queue.Message{
			ID:            m.id,
			Body:          body,
			Attributes:    attrs,
			ReceiptHandle: m.receipt,
			ReceiveCount:  m.receiveCount,
		})
	}
	return batch, nil
}

// Delete acknowledges a message by receipt handle. The handle is only valid
// while the delivery's lease is still held.
func (q *Queue) Delete(_ context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return relay.ErrQueueClosed
	}

	now := q.now()
	for i, m := range q.messages {
		if m.receipt != receiptHandle {
			continue
		}
		if m.visibleAt.Before(now) || m.visibleAt.Equal(now) {
			// Lease expired; the handle is stale.
			return relay.ErrReceiptNotFound
		}
		q.messages = append(q.messages[:i], q.messages[i+1:]...)
		return nil
	}
	return relay.ErrReceiptNotFound
}

// Close marks the queue closed. Subsequent operations fail with
// relay.ErrQueueClosed.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

// Len reports how many messages are stored, leased or not. Test helper.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}
