package workflow

import (
	"time"

	"github.com/nimbusflow/relay"
	"github.com/nimbusflow/relay/id"
)

// ExecutionStatus represents the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	// StatusPending means the execution has been requested but not started.
	StatusPending ExecutionStatus = "pending"
	// StatusRunning means the execution engine is (or is about to be)
	// running the workflow.
	StatusRunning ExecutionStatus = "running"
	// StatusSuccess means the workflow finished successfully.
	StatusSuccess ExecutionStatus = "success"
	// StatusError means the workflow failed terminally.
	StatusError ExecutionStatus = "error"
	// StatusCancelled means the execution was cancelled by a user.
	StatusCancelled ExecutionStatus = "cancelled"
)

// Execution is a single run of a workflow. The executor creates it in
// running status and owns only the failure transition; success and
// cancellation are written by the external execution engine.
type Execution struct {
	relay.Entity

	ID          id.ExecutionID  `json:"id"`
	WorkflowID  id.WorkflowID   `json:"workflow_id"`
	UserID      string          `json:"user_id"`
	Status      ExecutionStatus `json:"status"`
	Input       []byte          `json:"input,omitempty"`
	Output      []byte          `json:"output,omitempty"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Duration    time.Duration   `json:"duration,omitempty"`
}

// MarkError records a terminal failure at now, stamping CompletedAt and
// Duration. The message ends up user-visible on the execution detail page.
func (e *Execution) MarkError(msg string, now time.Time) {
	e.Status = StatusError
	e.Error = msg
	n := now
	e.CompletedAt = &n
	e.Duration = now.Sub(e.StartedAt)
}
