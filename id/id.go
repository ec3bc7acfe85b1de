// Package id defines TypeID-based identity types for all Relay entities.
//
// Every entity uses a single ID struct whose prefix identifies the entity
// type. IDs are K-sortable (UUIDv7-based), globally unique, and URL-safe in
// the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all Relay entity types.
const (
	PrefixWorkflow  Prefix = "wf"
	PrefixSchedule  Prefix = "sched"
	PrefixExecution Prefix = "exec"
	PrefixMessage   Prefix = "msg"
	PrefixDelivery  Prefix = "dlv"
)

// ID is the primary identifier type for all Relay entities. It wraps a
// TypeID providing a prefix-qualified, globally unique, sortable, URL-safe
// identifier in the format "prefix_suffix".
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "sched_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return parsed
}

// ──────────────────────────────────────────────────
// Convenience constructors and parsers
// ──────────────────────────────────────────────────

// WorkflowID is a type-safe identifier for workflows (prefix: "wf").
type WorkflowID = ID

// ScheduleID is a type-safe identifier for workflow schedules (prefix: "sched").
type ScheduleID = ID

// ExecutionID is a type-safe identifier for workflow executions (prefix: "exec").
type ExecutionID = ID

// MessageID is a type-safe identifier for queue messages (prefix: "msg").
type MessageID = ID

// DeliveryID is a type-safe identifier for message deliveries (prefix: "dlv").
// A new delivery ID is minted every time a message is received, and serves
// as the receipt handle for acknowledgment.
type DeliveryID = ID

// NewWorkflowID generates a new unique workflow ID.
func NewWorkflowID() ID { return New(PrefixWorkflow) }

// NewScheduleID generates a new unique schedule ID.
func NewScheduleID() ID { return New(PrefixSchedule) }

// NewExecutionID generates a new unique execution ID.
func NewExecutionID() ID { return New(PrefixExecution) }

// NewMessageID generates a new unique message ID.
func NewMessageID() ID { return New(PrefixMessage) }

// NewDeliveryID generates a new unique delivery (receipt) ID.
func NewDeliveryID() ID { return New(PrefixDelivery) }

// ParseWorkflowID parses a string and validates the "wf" prefix.
func ParseWorkflowID(s string) (ID, error) { return ParseWithPrefix(s, PrefixWorkflow) }

// ParseScheduleID parses a string and validates the "sched" prefix.
func ParseScheduleID(s string) (ID, error) { return ParseWithPrefix(s, PrefixSchedule) }

// ParseExecutionID parses a string and validates the "exec" prefix.
func ParseExecutionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixExecution) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool { return !i.valid }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}
	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}
	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil
		return nil
	}
	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil
			return nil
		}
		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil
			return nil
		}
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
