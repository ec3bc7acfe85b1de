package workflow

import (
	"context"

	"github.com/nimbusflow/relay/id"
)

// ListOpts controls pagination for execution list queries.
type ListOpts struct {
	// Limit is the maximum number of rows to return. Zero means no limit.
	Limit int
	// Offset is the number of rows to skip.
	Offset int
}

// Store defines the persistence contract for workflows and executions.
type Store interface {
	// CreateWorkflow persists a new workflow.
	CreateWorkflow(ctx context.Context, w *Workflow) error

	// GetWorkflow retrieves a workflow by ID.
	GetWorkflow(ctx context.Context, workflowID id.WorkflowID) (*Workflow, error)

	// UpdateWorkflow persists changes to an existing workflow.
	UpdateWorkflow(ctx context.Context, w *Workflow) error

	// CreateExecution persists a new execution record.
	CreateExecution(ctx context.Context, e *Execution) error

	// GetExecution retrieves an execution by ID.
	GetExecution(ctx context.Context, executionID id.ExecutionID) (*Execution, error)

	// UpdateExecution persists changes to an existing execution.
	UpdateExecution(ctx context.Context, e *Execution) error

	// ListExecutions returns the executions of a workflow, most recent
	// first.
	ListExecutions(ctx context.Context, workflowID id.WorkflowID, opts ListOpts) ([]*Execution, error)
}
