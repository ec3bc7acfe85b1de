package relay

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("relay: no store configured")
	ErrStoreClosed = errors.New("relay: store closed")

	// Not found errors.
	ErrWorkflowNotFound  = errors.New("relay: workflow not found")
	ErrScheduleNotFound  = errors.New("relay: schedule not found")
	ErrExecutionNotFound = errors.New("relay: execution not found")

	// Conflict errors.
	ErrWorkflowAlreadyExists  = errors.New("relay: workflow already exists")
	ErrScheduleAlreadyExists  = errors.New("relay: schedule already exists")
	ErrExecutionAlreadyExists = errors.New("relay: execution already exists")

	// Queue errors.
	ErrQueueClosed     = errors.New("relay: queue closed")
	ErrReceiptNotFound = errors.New("relay: receipt handle not found or expired")
)
