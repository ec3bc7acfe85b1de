// Package queue defines the at-least-once message transport between the
// dispatcher and the executor.
//
// The contract mirrors a visibility-timeout queue: Receive long-polls for a
// bounded wait, returned messages are leased (hidden from other consumers)
// for the visibility timeout, and Delete by receipt handle is the
// acknowledgment primitive. A message that is never deleted becomes visible
// again when its lease expires — that redelivery is the system's only retry
// mechanism.
//
// Backends: queue/redis for production, queue/memory for tests and local
// development.
package queue

import (
	"context"
	"time"
)

// Default receive parameters, matching the expected queue service limits.
const (
	DefaultMaxMessages       = 10
	DefaultWaitTime          = 20 * time.Second
	DefaultVisibilityTimeout = 300 * time.Second
)

// Message is a received queue message. ReceiptHandle is minted per delivery
// and is only valid until the lease expires.
type Message struct {
	ID            string
	Body          []byte
	Attributes    map[string]string
	ReceiptHandle string
	ReceiveCount  int
}

// ReceiveOptions controls a single Receive call.
type ReceiveOptions struct {
	// MaxMessages caps the batch size. Zero means DefaultMaxMessages.
	MaxMessages int
	// WaitTime bounds how long Receive blocks waiting for messages.
	// Zero means DefaultWaitTime.
	WaitTime time.Duration
	// VisibilityTimeout is the lease duration for returned messages.
	// Zero means DefaultVisibilityTimeout.
	VisibilityTimeout time.Duration
}

// Normalize fills zero fields with the package defaults.
func (o ReceiveOptions) Normalize() ReceiveOptions {
	if o.MaxMessages <= 0 {
		o.MaxMessages = DefaultMaxMessages
	}
	if o.WaitTime <= 0 {
		o.WaitTime = DefaultWaitTime
	}
	if o.VisibilityTimeout <= 0 {
		o.VisibilityTimeout = DefaultVisibilityTimeout
	}
	return o
}

// Queue is the transport contract.
type Queue interface {
	// Send enqueues a message body with filterable attributes.
	Send(ctx context.Context, body []byte, attrs map[string]string) error

	// Receive long-polls for up to opts.WaitTime and returns at most
	// opts.MaxMessages visible messages, leasing each for
	// opts.VisibilityTimeout. An empty slice is a normal outcome.
	Receive(ctx context.Context, opts ReceiveOptions) ([]*Message, error)

	// Delete acknowledges a message by its receipt handle. Returns
	// relay.ErrReceiptNotFound if the handle is unknown or the lease has
	// already expired.
	Delete(ctx context.Context, receiptHandle string) error

	// Close releases the queue's resources.
	Close() error
}
