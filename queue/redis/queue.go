// Package redis implements queue.Queue on Redis. The pending set is a
// Sorted Set scored by visible-at time, message payloads live in per-message
// Hashes, and leasing a message simply pushes its score past the visibility
// timeout.
//
// Claiming is not atomic across consumers: two racing Receive calls can
// lease the same message. That degrades to duplicate delivery, which the
// at-least-once contract already requires every consumer to tolerate.
//
// Usage:
//
//	q, err := redisqueue.New("redis://localhost:6379/0", "workflow-triggers")
//	if err != nil { ... }
//	defer q.Close()
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/nimbusflow/relay"
	"github.com/nimbusflow/relay/id"
	"github.com/nimbusflow/relay/queue"
)

// Compile-time interface check.
var _ queue.Queue = (*Queue)(nil)

// pollTick is how often a blocked Receive re-polls the pending set.
const pollTick = 100 * time.Millisecond

const keyPrefix = "relay:"

// pendingKey returns the Sorted Set key for a queue: relay:queue:{name}
func pendingKey(name string) string { return keyPrefix + "queue:" + name }

// messageKey returns the Hash key for a message: relay:msg:{id}
func messageKey(msgID string) string { return keyPrefix + "msg:" + msgID }

// Option configures the Queue.
type Option func(*Queue)

// WithClock replaces the time source. Useful for lease tests against
// miniredis-style fakes.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// Queue is a Redis-backed visibility-timeout queue.
type Queue struct {
	client    goredis.Cmdable
	name      string
	now       func() time.Time
	ownClient *goredis.Client
}

// New connects to Redis at the given URL and returns a queue with the given
// name. The queue owns the connection and closes it on Close.
func New(url, name string, opts ...Option) (*Queue, error) {
	redisOpts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("relay/redis: parse queue url: %w", err)
	}
	client := goredis.NewClient(redisOpts)
	q := NewFromClient(client, name, opts...)
	q.ownClient = client
	return q, nil
}

// NewFromClient wraps an existing Redis client. The caller owns the client
// lifecycle; Close is a no-op.
func NewFromClient(client goredis.Cmdable, name string, opts ...Option) *Queue {
	q := &Queue{client: client, name: name, now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Ping verifies the Redis connection is alive.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Send stores the message Hash and adds it to the pending set, visible
// immediately.
func (q *Queue) Send(ctx context.Context, body []byte, attrs map[string]string) error {
	msgID := id.NewMessageID().String()
	now := q.now().UTC()

	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("relay/redis: marshal attributes: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, messageKey(msgID), map[string]interface{}{
		"body":          string(body),
		"attrs":         string(attrsJSON),
		"receive_count": "0",
		"receipt":       "",
		"enqueued_at":   now.Format(time.RFC3339Nano),
	})
	pipe.ZAdd(ctx, pendingKey(q.name), goredis.Z{
		Score:  float64(now.UnixMilli()),
		Member: msgID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("relay/redis: send message: %w", err)
	}
	return nil
}

// Receive long-polls the pending set and leases up to MaxMessages visible
// messages for the visibility timeout.
func (q *Queue) Receive(ctx context.Context, opts queue.ReceiveOptions) ([]*queue.Message, error) {
	opts = opts.Normalize()
	deadline := q.now().Add(opts.WaitTime)

	for {
		batch, err := q.claim(ctx, opts.MaxMessages, opts.VisibilityTimeout)
		if err != nil {
			return nil, err
		}
		if len(batch) > 0 {
			return batch, nil
		}

		remaining := deadline.Sub(q.now())
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

// claim leases up to max currently-visible messages.
func (q *Queue) claim(ctx context.Context, max int, visibility time.Duration) ([]*queue.Message, error) {
	now := q.now().UTC()

	ids, err := q.client.ZRangeByScore(ctx, pendingKey(q.name), &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(max),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("relay/redis: poll pending: %w", err)
	}

	var batch []*queue.Message
	for _, msgID := range ids {
		receipt := id.NewDeliveryID().String()
		key := messageKey(msgID)

		// Lease: push the score past the visibility window and stamp the
		// delivery receipt.
		pipe := q.client.TxPipeline()
		pipe.ZAdd(ctx, pendingKey(q.name), goredis.Z{
			Score:  float64(now.Add(visibility).UnixMilli()),
			Member: msgID,
		})
		pipe.HIncrBy(ctx, key, "receive_count", 1)
		pipe.HSet(ctx, key, "receipt", receipt)
		if _, pErr := pipe.Exec(ctx); pErr != nil {
			return nil, fmt.Errorf("relay/redis: lease message: %w", pErr)
		}

		msg, getErr := q.getMessage(ctx, msgID)
		if getErr != nil {
			// Hash vanished between poll and read; skip the orphan.
			continue
		}
		msg.ReceiptHandle = joinHandle(msgID, receipt)
		batch = append(batch, msg)
	}
	return batch, nil
}

// Delete acknowledges a message. The receipt must match the latest delivery
// or the handle is considered stale.
func (q *Queue) Delete(ctx context.Context, receiptHandle string) error {
	// Handles from this backend are "msgID:receipt" so deletion is a direct
	// key lookup instead of a scan over leased entries.
	msgID, receipt, ok := splitHandle(receiptHandle)
	if !ok {
		return relay.ErrReceiptNotFound
	}

	current, err := q.client.HGet(ctx, messageKey(msgID), "receipt").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return relay.ErrReceiptNotFound
		}
		return fmt.Errorf("relay/redis: delete lookup: %w", err)
	}
	if current != receipt {
		return relay.ErrReceiptNotFound
	}

	pipe := q.client.TxPipeline()
	pipe.Del(ctx, messageKey(msgID))
	pipe.ZRem(ctx, pendingKey(q.name), msgID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("relay/redis: delete message: %w", err)
	}
	return nil
}

// Close closes the Redis client if this queue owns it.
func (q *Queue) Close() error {
	if q.ownClient != nil {
		return q.ownClient.Close()
	}
	return nil
}

func (q *Queue) getMessage(ctx context.Context, msgID string) (*queue.Message, error) {
	vals, err := q.client.HGetAll(ctx, messageKey(msgID)).Result()
	if err != nil {
		return nil, fmt.Errorf("relay/redis: get message: %w", err)
	}
	if len(vals) == 0 {
		return nil, relay.ErrReceiptNotFound
	}

	var attrs map[string]string
	if raw := vals["attrs"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
			return nil, fmt.Errorf("relay/redis: decode attributes: %w", err)
		}
	}
	count, _ := strconv.Atoi(vals["receive_count"])

	return &queue.Message{
		ID:            msgID,
		Body:          []byte(vals["body"]),
		Attributes:    attrs,
		ReceiptHandle: joinHandle(msgID, vals["receipt"]),
		ReceiveCount:  count,
	}, nil
}

func joinHandle(msgID, receipt string) string { return msgID + ":" + receipt }

func splitHandle(handle string) (msgID, receipt string, ok bool) {
	for i := len(handle) - 1; i >= 0; i-- {
		if handle[i] == ':' {
			return handle[:i], handle[i+1:], true
		}
	}
	return "", "", false
}
