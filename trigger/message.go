// Package trigger defines the wire-only message exchanged between the
// dispatcher and the executor. It is never persisted; it exists only on the
// queue.
package trigger

import (
	"encoding/json"
	"fmt"
	"time"
)

// TypeSchedule is the trigger type carried by cron-fired messages.
const TypeSchedule = "schedule"

// Message attribute keys, carried alongside the body so consumers can
// filter without deserializing it.
const (
	AttrTriggerType = "TriggerType"
	AttrWorkflowID  = "WorkflowId"
)

// ScheduleMessage asks the executor to run one workflow for one cron tick.
// Field names and the ISO8601 trigger time are a fixed external contract.
type ScheduleMessage struct {
	WorkflowID  string    `json:"workflowId"`
	ScheduleID  string    `json:"scheduleId"`
	TriggerTime time.Time `json:"triggerTime"`
	TriggerType string    `json:"triggerType"`
}

// NewScheduleMessage builds a message for the given tick.
func NewScheduleMessage(workflowID, scheduleID string, triggerTime time.Time) *ScheduleMessage {
	return &ScheduleMessage{
		WorkflowID:  workflowID,
		ScheduleID:  scheduleID,
		TriggerTime: triggerTime.UTC(),
		TriggerType: TypeSchedule,
	}
}

// Attributes returns the filterable message attributes for this message.
func (m *ScheduleMessage) Attributes() map[string]string {
	return map[string]string{
		AttrTriggerType: m.TriggerType,
		AttrWorkflowID:  m.WorkflowID,
	}
}

// Encode serializes the message body as JSON.
func (m *ScheduleMessage) Encode() ([]byte, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("trigger: encode message: %w", err)
	}
	return b, nil
}

// Decode parses and validates a message body. Malformed bodies can never
// succeed, so callers drop (acknowledge) the message on error.
func Decode(body []byte) (*ScheduleMessage, error) {
	var m ScheduleMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("trigger: decode message: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *ScheduleMessage) validate() error {
	if m.TriggerType != TypeSchedule {
		return fmt.Errorf("trigger: unexpected trigger type %q", m.TriggerType)
	}
	if m.WorkflowID == "" {
		return fmt.Errorf("trigger: message missing workflowId")
	}
	if m.ScheduleID == "" {
		return fmt.Errorf("trigger: message missing scheduleId")
	}
	if m.TriggerTime.IsZero() {
		return fmt.Errorf("trigger: message missing triggerTime")
	}
	return nil
}
